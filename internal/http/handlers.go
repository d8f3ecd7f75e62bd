package http

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"

	"complaints-backend-go/internal/apperr"
	"complaints-backend-go/internal/category"
	"complaints-backend-go/internal/config"
	"complaints-backend-go/internal/identity"
	"complaints-backend-go/internal/submission"
)

type Server struct {
	cfg          *config.Config
	log          *logrus.Entry
	identity     *identity.Service
	categories   *category.Directory
	submissions  *submission.Service
	createSchema *gojsonschema.Schema
	updateSchema *gojsonschema.Schema
}

// Deps are the services the router dispatches to.
type Deps struct {
	Config      *config.Config
	Log         *logrus.Entry
	Identity    *identity.Service
	Categories  *category.Directory
	Submissions *submission.Service
}

func NewServer(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors(d.Config))
	r.Use(logging(d.Log))

	s := &Server{
		cfg:          d.Config,
		log:          d.Log,
		identity:     d.Identity,
		categories:   d.Categories,
		submissions:  d.Submissions,
		createSchema: mustSchema("submission_create.schema.json"),
		updateSchema: mustSchema("submission_update.schema.json"),
	}

	v1 := r.Group("/api/v1")
	v1.POST("/auth/send-otp", s.sendOtp)
	v1.POST("/auth/verify-otp", s.verifyOtp)
	v1.GET("/categories", s.listCategories)

	authorized := v1.Group("")
	authorized.Use(AuthMiddleware(d.Identity))
	{
		authorized.POST("/auth/refresh-token", s.refreshToken)
		authorized.GET("/auth/profile", s.profile)
		authorized.GET("/submissions", s.listSubmissions)
		authorized.POST("/submissions", s.createSubmission)
		authorized.GET("/submissions/:id", s.getSubmission)
		authorized.PUT("/submissions/:id", s.updateSubmission)
		authorized.PATCH("/submissions/:id", s.updateSubmission)
		authorized.DELETE("/submissions/:id", s.deleteSubmission)
	}

	if d.Config.FileStore == "local" {
		r.Static("/uploads", d.Config.UploadDir)
	}
	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// fail renders err as {"error", "message", "field"} with the status of its kind.
func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, errBodyTooLarge) {
		c.AbortWithStatusJSON(413, gin.H{"error": "file_too_large", "message": "request body exceeds the upload limit"})
		return
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal(err)
	}
	if ae.Kind == apperr.KindInternal {
		s.log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
	}
	body := gin.H{"error": ae.Kind.String(), "message": ae.Message}
	if ae.Field != "" {
		body["field"] = ae.Field
	}
	c.AbortWithStatusJSON(ae.Kind.Status(), body)
}

func (s *Server) maxBody() int64 {
	return s.cfg.MaxUploadMB << 20
}

// submissionID parses :id. Malformed ids read as missing records.
func submissionID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, apperr.NotFound("submission not found")
	}
	return uint(id), nil
}

// GET /api/v1/categories
func (s *Server) listCategories(c *gin.Context) {
	list, err := s.categories.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(200, list)
}

// GET /api/v1/submissions
func (s *Server) listSubmissions(c *gin.Context) {
	userID := currentUser(c).ID
	if c.Query("format") == "geojson" {
		fc, err := s.submissions.ListOwnGeoJSON(c.Request.Context(), userID)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(200, fc)
		return
	}

	list, err := s.submissions.ListOwn(c.Request.Context(), userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(200, list)
}

// POST /api/v1/submissions
func (s *Server) createSubmission(c *gin.Context) {
	doc, err := readDocument(c, s.maxBody())
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := validate(s.createSchema, doc); err != nil {
		s.fail(c, err)
		return
	}
	in, closeFiles, err := doc.createInput()
	defer closeFiles()
	if err != nil {
		s.fail(c, err)
		return
	}

	sub, err := s.submissions.Create(c.Request.Context(), currentUser(c).ID, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(201, sub)
}

// GET /api/v1/submissions/:id
func (s *Server) getSubmission(c *gin.Context) {
	id, err := submissionID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	sub, err := s.submissions.RetrieveOwn(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(200, sub)
}

// PUT/PATCH /api/v1/submissions/:id
func (s *Server) updateSubmission(c *gin.Context) {
	id, err := submissionID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	doc, err := readDocument(c, s.maxBody())
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := validate(s.updateSchema, doc); err != nil {
		s.fail(c, err)
		return
	}
	in, closeFiles, err := doc.updateInput()
	defer closeFiles()
	if err != nil {
		s.fail(c, err)
		return
	}

	sub, err := s.submissions.UpdateOwn(c.Request.Context(), currentUser(c).ID, id, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(200, sub)
}

// DELETE /api/v1/submissions/:id
func (s *Server) deleteSubmission(c *gin.Context) {
	id, err := submissionID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.submissions.DeleteOwn(c.Request.Context(), currentUser(c).ID, id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(204)
}
