// Package identity issues and verifies phone OTPs, resolves users and mints
// session tokens.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"complaints-backend-go/internal/apperr"
	"complaints-backend-go/internal/metrics"
	"complaints-backend-go/internal/models"
	"complaints-backend-go/internal/notifier"
	"complaints-backend-go/internal/repository"
	"complaints-backend-go/internal/security"
)

const (
	minPhoneLength = 10
	maxPhoneLength = 20
)

// DefaultOTPTTL is how long an issued code stays valid.
const DefaultOTPTTL = 5 * time.Minute

type Options struct {
	// OTPTTL defaults to DefaultOTPTTL.
	OTPTTL time.Duration
	// FixedCode, when set, replaces the random code. Testing flows only.
	FixedCode string
}

type Service struct {
	users    repository.UserRepository
	otps     repository.OtpRepository
	notifier notifier.Notifier
	tokens   *security.TokenIssuer
	log      *logrus.Entry

	otpTTL    time.Duration
	fixedCode string
	nowF      func() time.Time
	generate  func() (string, error)
}

func NewService(
	users repository.UserRepository,
	otps repository.OtpRepository,
	n notifier.Notifier,
	tokens *security.TokenIssuer,
	log *logrus.Entry,
	opts Options,
) *Service {
	ttl := opts.OTPTTL
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	return &Service{
		users:     users,
		otps:      otps,
		notifier:  n,
		tokens:    tokens,
		log:       log,
		otpTTL:    ttl,
		fixedCode: opts.FixedCode,
		nowF:      func() time.Time { return time.Now().UTC() },
		generate:  security.GenerateOTP,
	}
}

// Challenge describes an issued OTP. Code is only for the dev echo.
type Challenge struct {
	PhoneNumber string
	Code        string
	ExpiresAt   time.Time
	ExpiresIn   time.Duration
}

// Session is the result of a successful verification.
type Session struct {
	User    *models.User
	Tokens  *security.TokenPair
	Created bool
}

// NormalizePhone trims surrounding whitespace and checks the number starts
// with + and has between 10 and 20 characters.
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	switch {
	case phone == "":
		return "", apperr.Validation("phone_number", "phone number is required")
	case !strings.HasPrefix(phone, "+"):
		return "", apperr.Validation("phone_number", "phone number must start with +")
	case len(phone) < minPhoneLength:
		return "", apperr.Validation("phone_number", "phone number is too short")
	case len(phone) > maxPhoneLength:
		return "", apperr.Validation("phone_number", "phone number is too long")
	}
	return phone, nil
}

// RequestOtp stores a fresh code for phone, replacing any pending one, then
// hands it to the notifier. A delivery failure leaves the credential in
// place; asking again overwrites it.
func (s *Service) RequestOtp(ctx context.Context, phone string) (*Challenge, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		metrics.OTPRequests.WithLabelValues("invalid").Inc()
		return nil, err
	}

	code := s.fixedCode
	if code == "" {
		if code, err = s.generate(); err != nil {
			metrics.OTPRequests.WithLabelValues("error").Inc()
			return nil, apperr.Internal(err)
		}
	}

	expiresAt := s.nowF().Add(s.otpTTL)
	cred := &models.OtpCredential{
		PhoneNumber: phone,
		HashedCode:  security.HashOTP(code),
		ExpiresAt:   expiresAt,
	}
	if err := s.otps.Upsert(ctx, cred); err != nil {
		metrics.OTPRequests.WithLabelValues("error").Inc()
		s.log.WithError(err).WithField("phone_number", phone).Error("store otp credential")
		return nil, apperr.Internal(err)
	}

	if err := s.notifier.Send(ctx, phone, code); err != nil {
		metrics.OTPRequests.WithLabelValues("delivery_failed").Inc()
		s.log.WithError(err).WithField("phone_number", phone).Error("otp delivery failed")
		return nil, apperr.Delivery(err)
	}

	metrics.OTPRequests.WithLabelValues("sent").Inc()
	return &Challenge{
		PhoneNumber: phone,
		Code:        code,
		ExpiresAt:   expiresAt,
		ExpiresIn:   s.otpTTL,
	}, nil
}

// VerifyOtp consumes the pending credential for phone if code matches and it
// has not expired, then resolves (or creates) the user and issues tokens.
// Wrong, expired and already-used codes all fail the same way.
func (s *Service) VerifyOtp(ctx context.Context, phone, code string) (*Session, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, apperr.Validation("phone_number", "phone number is required")
	}
	if len(phone) > maxPhoneLength {
		return nil, apperr.Validation("phone_number", "phone number is too long")
	}
	code = strings.TrimSpace(code)
	if len(code) != security.OTPDigits {
		return nil, apperr.Validation("otp_code", "otp code must be exactly 6 characters")
	}

	ok, err := s.otps.Consume(ctx, phone, security.HashOTP(code), s.nowF())
	if err != nil {
		metrics.OTPVerifications.WithLabelValues("error").Inc()
		s.log.WithError(err).WithField("phone_number", phone).Error("consume otp credential")
		return nil, apperr.Internal(err)
	}
	if !ok {
		metrics.OTPVerifications.WithLabelValues("rejected").Inc()
		return nil, apperr.InvalidOrExpiredCode()
	}

	user, created, err := s.users.GetOrCreateByPhone(ctx, phone)
	if err != nil {
		metrics.OTPVerifications.WithLabelValues("error").Inc()
		s.log.WithError(err).WithField("phone_number", phone).Error("resolve user")
		return nil, apperr.Internal(err)
	}
	if created {
		metrics.UsersCreated.Inc()
		s.log.WithField("user_id", user.ID).Info("user registered")
	}

	pair, err := s.tokens.Issue(user.ID)
	if err != nil {
		metrics.OTPVerifications.WithLabelValues("error").Inc()
		return nil, apperr.Internal(err)
	}
	metrics.OTPVerifications.WithLabelValues("ok").Inc()
	return &Session{User: user, Tokens: pair, Created: created}, nil
}

// RefreshToken exchanges a valid refresh token for a new pair.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*security.TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, apperr.Validation("refresh", "refresh token is required")
	}
	userID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, apperr.InvalidToken(err)
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.InvalidToken(err)
		}
		return nil, apperr.Internal(err)
	}
	pair, err := s.tokens.Issue(userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return pair, nil
}

// Authenticate resolves the user behind an access token.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	userID, err := s.tokens.ValidateAccess(accessToken)
	if err != nil {
		return nil, apperr.InvalidToken(err)
	}
	return s.Profile(ctx, userID)
}

// Profile returns the user record for userID.
func (s *Service) Profile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Unauthenticated("user not found")
		}
		return nil, apperr.Internal(err)
	}
	return user, nil
}
