// Package handler exposes the attendance engine over HTTP.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/yayasanmisboel/QRcodeSiswa/internal/auth"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/directory"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/ledger"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/metrics"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/model"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/qr"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/scanner"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/session"
	"github.com/yayasanmisboel/QRcodeSiswa/internal/storage"
)

// Handler wires the core components to gin routes.
type Handler struct {
	auth     *auth.Service
	dir      *directory.Directory
	sessions *session.Holder
	ledger   *ledger.Ledger
	encoder  qr.Encoder

	// The pipeline is one scan session at a time; HTTP requests arrive
	// concurrently, so serialize access here.
	scanMu sync.Mutex
	scan   *scanner.Scanner
}

// New creates a handler around the given components.
func New(authSvc *auth.Service, dir *directory.Directory, sessions *session.Holder, led *ledger.Ledger, encoder qr.Encoder) *Handler {
	return &Handler{
		auth:     authSvc,
		dir:      dir,
		sessions: sessions,
		ledger:   led,
		encoder:  encoder,
		scan:     scanner.New(dir, led, sessions),
	}
}

// Mount registers all API routes on the engine.
func (h *Handler) Mount(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/healthz", h.Healthz)

		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
		api.POST("/logout", h.Logout)
		api.GET("/me", h.Me)

		api.GET("/users", h.ListUsers)
		api.GET("/users/:id", h.GetUser)
		api.PUT("/users/:id", h.UpdateUser)
		api.GET("/users/:id/qr", h.UserQR)

		scan := api.Group("/scan", h.requireOperator)
		{
			scan.GET("", h.ScanState)
			scan.POST("", h.Scan)
			scan.POST("/camera-error", h.CameraError)
			scan.POST("/reset", h.ScanReset)
		}

		api.GET("/attendance", h.ListAttendance)
		api.GET("/attendance/today", h.TodayAttendance)
		api.GET("/attendance/user/:id", h.UserAttendance)
	}
}

// publicUser is the wire form of a user, without the stored credential.
type publicUser struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         model.Role `json:"role"`
	ProfileImage string     `json:"profileImage,omitempty"`
	QRCode       string     `json:"qrCode"`
	CreatedAt    int64      `json:"createdAt"`
}

func toPublic(u model.User) publicUser {
	return publicUser{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		ProfileImage: u.ProfileImage,
		QRCode:       u.QRCode,
		CreatedAt:    u.CreatedAt,
	}
}

func toPublicList(users []model.User) []publicUser {
	out := make([]publicUser, 0, len(users))
	for _, u := range users {
		out = append(out, toPublic(u))
	}
	return out
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type registerRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required"`
	Role         string `json:"role" binding:"required"`
	ProfileImage string `json:"profileImage"`
}

// Register creates a new user account.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.auth.Register(c.Request.Context(), auth.RegisterInput{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		Role:         model.Role(req.Role),
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	metrics.Registrations.Inc()
	c.JSON(http.StatusCreated, toPublic(user))
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates and opens the session.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	metrics.Logins.Inc()
	c.JSON(http.StatusOK, toPublic(user))
}

// Logout clears the session.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Me returns the current session user.
func (h *Handler) Me(c *gin.Context) {
	user, err := h.sessions.Current(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toPublic(user))
}

// ListUsers returns all users, optionally filtered by role.
func (h *Handler) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()
	if role := c.Query("role"); role != "" {
		if !model.Role(role).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		users, err := h.dir.ListByRole(ctx, model.Role(role))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, toPublicList(users))
		return
	}
	users, err := h.dir.List(ctx)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toPublicList(users))
}

// GetUser returns a single user by id.
func (h *Handler) GetUser(c *gin.Context) {
	user, err := h.dir.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toPublic(user))
}

type updateRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	ProfileImage string `json:"profileImage"`
}

// UpdateUser applies profile edits to an existing user.
func (h *Handler) UpdateUser(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.auth.UpdateProfile(c.Request.Context(), c.Param("id"), req.Name, req.Email, req.Password, req.ProfileImage)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toPublic(user))
}

// UserQR renders the user's scannable payload as a PNG.
func (h *Handler) UserQR(c *gin.Context) {
	user, err := h.dir.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(qr.DefaultSize)))
	png, err := h.encoder.Encode(user.QRCode, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr encode failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// requireOperator gates the scan endpoints on an active teacher or admin
// session.
func (h *Handler) requireOperator(c *gin.Context) {
	user, err := h.sessions.Current(c.Request.Context())
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !user.Role.CanScan() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "scanning requires a teacher or admin account"})
		return
	}
	c.Next()
}

type scanRequest struct {
	Payload string `json:"payload"`
}

// Scan feeds one decoded payload into the pipeline and reports the outcome.
func (h *Handler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.scanMu.Lock()
	defer h.scanMu.Unlock()
	before := h.scan.State()
	state := h.scan.Handle(c.Request.Context(), scanner.Decoded{Payload: req.Payload})
	if before == scanner.StateScanning {
		switch state {
		case scanner.StateRecorded:
			metrics.ScansRecorded.Inc()
		case scanner.StateError:
			metrics.ScanErrors.WithLabelValues("resolve").Inc()
		}
	}
	h.writeScanState(c)
}

// ScanState reports the pipeline state without feeding an event.
func (h *Handler) ScanState(c *gin.Context) {
	h.scanMu.Lock()
	defer h.scanMu.Unlock()
	h.writeScanState(c)
}

type cameraErrorRequest struct {
	Message string `json:"message" binding:"required"`
}

// CameraError reports a device failure from the scanning client.
func (h *Handler) CameraError(c *gin.Context) {
	var req cameraErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.scanMu.Lock()
	defer h.scanMu.Unlock()
	h.scan.Handle(c.Request.Context(), scanner.CameraError{Message: req.Message})
	metrics.ScanErrors.WithLabelValues("camera").Inc()
	h.writeScanState(c)
}

// ScanReset returns the pipeline to scanning for the next subject.
func (h *Handler) ScanReset(c *gin.Context) {
	h.scanMu.Lock()
	defer h.scanMu.Unlock()
	h.scan.Handle(c.Request.Context(), scanner.Reset{})
	h.writeScanState(c)
}

// writeScanState renders the pipeline state. Callers hold scanMu.
func (h *Handler) writeScanState(c *gin.Context) {
	resp := gin.H{"state": h.scan.State().String()}
	if res, ok := h.scan.Result(); ok {
		resp["user"] = toPublic(res.User)
		resp["record"] = res.Record
	}
	if msg := h.scan.ErrMessage(); msg != "" {
		resp["error"] = msg
	}
	c.JSON(http.StatusOK, resp)
}

// ListAttendance returns every record ever appended.
func (h *Handler) ListAttendance(c *gin.Context) {
	records, err := h.ledger.All(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

// TodayAttendance returns the records from the current local calendar day.
func (h *Handler) TodayAttendance(c *gin.Context) {
	records, err := h.ledger.Today(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

// UserAttendance returns one user's records.
func (h *Handler) UserAttendance(c *gin.Context) {
	records, err := h.ledger.ByUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	var de *storage.DeserializationError
	switch {
	case errors.Is(err, directory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoSession), errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidRole), errors.Is(err, auth.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.As(err, &de):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
