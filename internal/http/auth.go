package http

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"complaints-backend-go/internal/apperr"
)

type tokensResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// POST /api/v1/auth/send-otp
func (s *Server) sendOtp(c *gin.Context) {
	var input struct {
		PhoneNumber string `json:"phone_number" form:"phone_number"`
	}
	if err := c.ShouldBind(&input); err != nil {
		s.fail(c, apperr.Validation("phone_number", "request body is malformed"))
		return
	}

	ch, err := s.identity.RequestOtp(c.Request.Context(), input.PhoneNumber)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := gin.H{
		"message":            "OTP sent successfully",
		"expires_in":         humanDuration(ch.ExpiresIn),
		"expires_in_seconds": int(ch.ExpiresIn.Seconds()),
	}
	if s.cfg.OTPReturnToClient {
		resp["otp_code"] = ch.Code
	}
	c.JSON(200, resp)
}

// POST /api/v1/auth/verify-otp
func (s *Server) verifyOtp(c *gin.Context) {
	var input struct {
		PhoneNumber string `json:"phone_number" form:"phone_number"`
		OtpCode     string `json:"otp_code" form:"otp_code"`
	}
	if err := c.ShouldBind(&input); err != nil {
		s.fail(c, apperr.Validation("", "request body is malformed"))
		return
	}

	sess, err := s.identity.VerifyOtp(c.Request.Context(), input.PhoneNumber, input.OtpCode)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(200, gin.H{
		"message": "Login successful",
		"tokens":  tokensResponse{Access: sess.Tokens.Access, Refresh: sess.Tokens.Refresh},
		"user":    sess.User,
	})
}

// POST /api/v1/auth/refresh-token
func (s *Server) refreshToken(c *gin.Context) {
	var input struct {
		Refresh string `json:"refresh" form:"refresh"`
	}
	if err := c.ShouldBind(&input); err != nil {
		s.fail(c, apperr.Validation("refresh", "request body is malformed"))
		return
	}

	pair, err := s.identity.RefreshToken(c.Request.Context(), input.Refresh)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(200, tokensResponse{Access: pair.Access, Refresh: pair.Refresh})
}

// GET /api/v1/auth/profile
func (s *Server) profile(c *gin.Context) {
	c.JSON(200, currentUser(c))
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Minute:
		return "1 minute"
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
}
