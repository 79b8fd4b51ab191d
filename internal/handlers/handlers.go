package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imyashpatil/Fake-Logo-Detection/internal/auth"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/logging"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/repository"
	"github.com/imyashpatil/Fake-Logo-Detection/internal/usecase"
)

// MaxUploadSize bounds the multipart request body.
const MaxUploadSize = 10 << 20

// UploadField is the multipart field carrying the logo.
const UploadField = "logo_image"

// Classifier runs and lists classifications for a session.
type Classifier interface {
	Classify(ctx context.Context, session auth.SessionContext, filename string, data []byte) (*usecase.ClassificationOutcome, error)
	History(ctx context.Context, session auth.SessionContext) ([]usecase.HistoryEntry, error)
}

// Accounts covers registration, login and password recovery.
type Accounts interface {
	Register(ctx context.Context, name, email, password string) (*repository.User, error)
	Login(ctx context.Context, email, password string) (string, *repository.User, error)
	AdminLogin(ctx context.Context, email, password string) (string, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, password string) error
	CurrentUser(ctx context.Context, session auth.SessionContext) (*repository.User, error)
}

// Admin covers the administrator views.
type Admin interface {
	ListUsers(ctx context.Context, search string, page int) (*usecase.UserPage, error)
	DeleteUser(ctx context.Context, id uint) error
	ListClassifications(ctx context.Context, limit int) ([]repository.OwnedClassification, error)
	GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
}

// Dependencies are the collaborators wired into the router.
// Empty static directories disable artifact serving.
type Dependencies struct {
	Classifier   Classifier
	Accounts     Accounts
	Admin        Admin
	Tokens       *auth.TokenManager
	UploadDir    string
	ProcessedDir string
	Logger       *zap.Logger
}

type handler struct {
	deps   Dependencies
	logger *zap.Logger
}

type credentialsRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type registerRequest struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type forgotRequest struct {
	Email string `json:"email" form:"email" binding:"required"`
}

type resetRequest struct {
	Token    string `json:"token" form:"token" binding:"required"`
	Password string `json:"password" form:"password"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{deps: deps, logger: logger.Named("http")}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if deps.UploadDir != "" {
		router.Static("/static/uploads", deps.UploadDir)
	}
	if deps.ProcessedDir != "" {
		router.Static("/static/processed", deps.ProcessedDir)
	}

	authGroup := router.Group("/auth")
	authGroup.POST("/register", h.register)
	authGroup.POST("/login", h.login)
	authGroup.POST("/forgot-password", h.forgotPassword)
	authGroup.POST("/reset-password", h.resetPassword)

	router.POST("/admin/login", h.adminLogin)

	user := router.Group("", auth.JWTMiddleware(deps.Tokens), auth.RequireUser())
	user.GET("/me", h.me)
	user.GET("/classifications", h.history)
	user.POST("/classifications", h.classify)

	admin := router.Group("/admin", auth.JWTMiddleware(deps.Tokens), auth.RequireAdmin())
	admin.GET("/users", h.listUsers)
	admin.DELETE("/users/:id", h.deleteUser)
	admin.GET("/classifications", h.listClassifications)
	admin.GET("/metrics", h.metrics)
}

func (h *handler) classify(c *gin.Context) {
	session, _ := auth.SessionFromContext(c.Request.Context())
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)

	file, err := c.FormFile(UploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds upload limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": usecase.ErrNoFile.Error()})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return
	}

	outcome, err := h.deps.Classifier.Classify(c.Request.Context(), session, file.Filename, data)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *handler) history(c *gin.Context) {
	session, _ := auth.SessionFromContext(c.Request.Context())
	history, err := h.deps.Classifier.History(c.Request.Context(), session)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.deps.Accounts.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	token, user, err := h.deps.Accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (h *handler) adminLogin(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	token, err := h.deps.Accounts.AdminLogin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *handler) forgotPassword(c *gin.Context) {
	var req forgotRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	token, err := h.deps.Accounts.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset_token": token})
}

func (h *handler) resetPassword(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	if err := h.deps.Accounts.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password updated"})
}

func (h *handler) me(c *gin.Context) {
	session, _ := auth.SessionFromContext(c.Request.Context())
	user, err := h.deps.Accounts.CurrentUser(c.Request.Context(), session)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *handler) listUsers(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
		return
	}
	result, err := h.deps.Admin.ListUsers(c.Request.Context(), c.Query("search"), page)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) deleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if err := h.deps.Admin.DeleteUser(c.Request.Context(), uint(id)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) listClassifications(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}
	records, err := h.deps.Admin.ListClassifications(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classifications": records})
}

func (h *handler) metrics(c *gin.Context) {
	summary, err := h.deps.Admin.GetMetricsSummary(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// writeError maps domain errors to status codes. Unexpected errors are logged
// and reported without detail.
func (h *handler) writeError(c *gin.Context, err error) {
	var vErr *usecase.ValidationError
	switch {
	case errors.As(err, &vErr):
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, usecase.ErrUnsupportedFileType):
			status = http.StatusUnsupportedMediaType
		case errors.Is(err, repository.ErrEmailTaken):
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": vErr.Error()})
	case errors.Is(err, repository.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, usecase.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrInvalidResetToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		}
		if op, requestID, ok := logging.OperationOf(err); ok {
			fields = append(fields, zap.String("operation", op), zap.String("request_id", requestID))
		}
		h.logger.Error("request failed", fields...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
