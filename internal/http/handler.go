package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ticket-scanner/internal/camera"
	"ticket-scanner/internal/presenter"
	"ticket-scanner/internal/scanner"
	"ticket-scanner/internal/service"
)

var errJournalDisabled = errors.New("scan journal is disabled")

type Handler struct {
	scanner *scanner.Controller
	overlay *presenter.Overlay
	journal *service.JournalService
	log     zerolog.Logger
}

// NewHandler wires the control API. journal may be nil when the database is
// disabled; the listing endpoint then answers 503.
func NewHandler(
	ctrl *scanner.Controller,
	overlay *presenter.Overlay,
	journal *service.JournalService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		scanner: ctrl,
		overlay: overlay,
		journal: journal,
		log:     log.With().Str("component", "http").Logger(),
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/healthz", h.health)

	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.GET("/scanner/status", h.status)
		protected.GET("/scanner/devices", h.listDevices)
		protected.POST("/scanner/devices/refresh", h.refreshDevices)
		protected.POST("/scanner/device", h.selectDevice)
		protected.POST("/scanner/start", h.start)
		protected.POST("/scanner/stop", h.stop)
		protected.POST("/scanner/flip", h.flip)
		protected.GET("/scanner/overlay", h.getOverlay)
		protected.POST("/scanner/overlay/dismiss", h.dismissOverlay)
		protected.GET("/scans", h.listScans)
		protected.GET("/scans/:id", h.getScan)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"scanner": h.scanner.State().String(),
	})
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.scanner.Status()))
}

func (h *Handler) listDevices(c *gin.Context) {
	snap := h.scanner.Status()
	c.JSON(http.StatusOK, successResponse(gin.H{
		"devices": snap.Devices,
		"current": snap.CurrentDevice,
	}))
}

func (h *Handler) refreshDevices(c *gin.Context) {
	if err := h.scanner.RefreshDevices(c.Request.Context()); err != nil {
		h.handleError(c, err)
		return
	}
	h.listDevices(c)
}

type deviceRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

func (h *Handler) selectDevice(c *gin.Context) {
	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if err := h.scanner.SelectDevice(req.DeviceID); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(h.scanner.Status()))
}

type startRequest struct {
	DeviceID string `json:"device_id"`
}

func (h *Handler) start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	if err := h.scanner.Start(c.Request.Context(), strings.TrimSpace(req.DeviceID)); err != nil {
		if isCameraError(err) {
			h.handleError(c, err)
			return
		}
		h.log.Warn().Err(err).Str("device_id", req.DeviceID).Msg("camera start failed")
		c.JSON(http.StatusBadGateway, errorResponse(h.scanner.Status().Message))
		return
	}
	c.JSON(http.StatusOK, successResponse(h.scanner.Status()))
}

func (h *Handler) stop(c *gin.Context) {
	h.scanner.Stop()
	c.JSON(http.StatusOK, successResponse(h.scanner.Status()))
}

func (h *Handler) flip(c *gin.Context) {
	if err := h.scanner.Flip(c.Request.Context()); err != nil {
		if isCameraError(err) {
			h.handleError(c, err)
			return
		}
		h.log.Warn().Err(err).Msg("camera flip failed")
		c.JSON(http.StatusBadGateway, errorResponse(h.scanner.Status().Message))
		return
	}
	c.JSON(http.StatusOK, successResponse(h.scanner.Status()))
}

// getOverlay lists undismissed results, oldest first.
func (h *Handler) getOverlay(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.overlay.Stack()))
}

type dismissRequest struct {
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason" binding:"omitempty,oneof=close backdrop"`
}

func (h *Handler) dismissOverlay(c *gin.Context) {
	var req dismissRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if req.Reason == "" {
		req.Reason = presenter.DismissClose
	}

	if err := h.overlay.Dismiss(req.Seq); err != nil {
		h.handleError(c, err)
		return
	}
	h.log.Debug().Uint64("seq", req.Seq).Str("reason", req.Reason).Msg("overlay dismissed")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listScans(c *gin.Context) {
	if h.journal == nil {
		h.handleError(c, errJournalDisabled)
		return
	}

	var q service.ScanQuery
	if p := strings.TrimSpace(c.Query("payload")); p != "" {
		q.Payload = &p
	}
	if v := c.Query("valid"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("valid must be true or false"))
			return
		}
		q.Valid = &parsed
	}
	if f := strings.TrimSpace(c.Query("from")); f != "" {
		q.From = &f
	}
	if t := strings.TrimSpace(c.Query("to")); t != "" {
		q.To = &t
	}

	q.Limit = 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := parseInt(l); err == nil && parsed > 0 {
			q.Limit = parsed
		}
	}
	if o := c.Query("offset"); o != "" {
		if parsed, err := parseInt(o); err == nil && parsed >= 0 {
			q.Offset = parsed
		}
	}

	scans, err := h.journal.FindScans(c.Request.Context(), q)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(scans))
}

func (h *Handler) getScan(c *gin.Context) {
	if h.journal == nil {
		h.handleError(c, errJournalDisabled)
		return
	}

	scan, err := h.journal.GetScan(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(scan))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, camera.ErrDeviceNotFound),
		errors.Is(err, presenter.ErrNoOverlay):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, camera.ErrNoDevices),
		errors.Is(err, camera.ErrFlipUnavailable):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, camera.ErrUnsupported),
		errors.Is(err, errJournalDisabled):
		c.JSON(http.StatusServiceUnavailable, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func isCameraError(err error) bool {
	return errors.Is(err, camera.ErrUnsupported) ||
		errors.Is(err, camera.ErrDeviceNotFound) ||
		errors.Is(err, camera.ErrNoDevices) ||
		errors.Is(err, camera.ErrFlipUnavailable)
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
