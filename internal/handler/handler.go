// Package handler serves the registration pages, staff pages and image
// endpoints over gin.
package handler

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"checkin/internal/metrics"
	"checkin/internal/participant"
	"checkin/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// LoadTemplates parses the embedded page templates.
func LoadTemplates() (*template.Template, error) {
	return template.New("").ParseFS(templateFS, "templates/*.html")
}

// Options configures a Handler. Zero values disable the optional parts.
type Options struct {
	MaxUploadBytes int64
	Metrics        *metrics.Metrics
	Redis          *store.Redis
	Logger         *zap.Logger
}

type Handler struct {
	svc       *participant.Service
	metrics   *metrics.Metrics
	redis     *store.Redis
	log       *zap.Logger
	maxUpload int64
}

func New(svc *participant.Service, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &Handler{
		svc:       svc,
		metrics:   opts.Metrics,
		redis:     opts.Redis,
		log:       opts.Logger,
		maxUpload: opts.MaxUploadBytes,
	}
}

// Mount installs the templates and every route on r. uploadGuard runs in
// front of POST /upload only.
func (h *Handler) Mount(r *gin.Engine, uploadGuard ...gin.HandlerFunc) error {
	tmpl, err := LoadTemplates()
	if err != nil {
		return err
	}
	r.SetHTMLTemplate(tmpl)

	r.GET("/healthz", h.Healthz)

	r.GET("/", h.UploadForm)
	r.POST("/upload", append(uploadGuard, h.Upload)...)
	r.GET("/user_added/:id", h.UserAdded)

	r.GET("/participant/:id", h.ParticipantDetails)
	r.POST("/update_status/:id", h.UpdateStatus)
	r.GET("/status/:status", h.StatusPage)

	r.GET("/get_image/:id", h.Image)
	r.GET("/image/:id", h.Image)
	r.GET("/qr/:id", h.QRCode)

	r.GET("/wipe", h.WipePage)
	r.POST("/wipe", h.Wipe)

	r.GET("/dashboard", h.Dashboard)
	return nil
}

// ---------- Errors ----------

// fail maps service errors onto status codes and the JSON error body.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, participant.ErrMalformedID), errors.Is(err, participant.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, participant.ErrNotFound), errors.Is(err, participant.ErrNoImage), errors.Is(err, participant.ErrQRDisabled):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	storeHealthy := h.svc.Ping(ctx) == nil
	body := gin.H{"status": "ok", "store": storeHealthy}
	healthy := storeHealthy
	if h.redis.Configured() {
		redisHealthy := h.redis.Healthy(ctx)
		body["redis"] = redisHealthy
		healthy = healthy && redisHealthy
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

// ---------- Registration ----------

func (h *Handler) UploadForm(c *gin.Context) {
	c.HTML(http.StatusOK, "upload_form.html", nil)
}

// Upload expects a multipart form with name, email, phone and file.
func (h *Handler) Upload(c *gin.Context) {
	if c.Request.ContentLength > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file: " + err.Error()})
		return
	}

	p, err := h.svc.Register(c.Request.Context(), participant.Registration{
		Name:     c.PostForm("name"),
		Email:    c.PostForm("email"),
		Phone:    c.PostForm("phone"),
		Filename: header.Filename,
		Data:     data,
	})
	if err != nil {
		h.countRegistration("error")
		h.fail(c, err)
		return
	}
	h.countRegistration("ok")
	c.Redirect(http.StatusSeeOther, "/user_added/"+p.ID)
}

func (h *Handler) countRegistration(outcome string) {
	if h.metrics != nil {
		h.metrics.Registrations.WithLabelValues(outcome).Inc()
	}
}

// UserAdded confirms a registration. A stale or bad id still renders the
// page, without the QR code.
func (h *Handler) UserAdded(c *gin.Context) {
	id := c.Param("id")
	data := gin.H{"ID": id}
	p, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.log.Debug("confirmation for unknown participant", zap.String("id", id), zap.Error(err))
	} else {
		data["Participant"] = p
		if p.QRCode != "" {
			data["QRCode"] = template.URL("data:image/png;base64," + p.QRCode)
		}
	}
	c.HTML(http.StatusOK, "user_added.html", data)
}

// ---------- Staff ----------

func (h *Handler) ParticipantDetails(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "participant_details.html", gin.H{
		"Participant": p,
		"HasImage":    p.HasImage(),
		"QREnabled":   h.svc.QREnabled(),
		"Statuses":    []participant.Status{participant.StatusInCampus, participant.StatusOutsideCampus},
	})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	status := c.PostForm("status")
	if err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), status); err != nil {
		h.fail(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.StatusUpdates.WithLabelValues(status).Inc()
	}
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

func (h *Handler) StatusPage(c *gin.Context) {
	c.HTML(http.StatusOK, "status_page.html", gin.H{"Status": c.Param("status")})
}

func (h *Handler) Dashboard(c *gin.Context) {
	view, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "dashboard.html", view)
}

func (h *Handler) WipePage(c *gin.Context) {
	c.HTML(http.StatusOK, "wipe_page.html", gin.H{"Error": nil})
}

func (h *Handler) Wipe(c *gin.Context) {
	if _, err := h.svc.Wipe(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.Wipes.Inc()
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// ---------- Images ----------

func (h *Handler) Image(c *gin.Context) {
	img, err := h.svc.Image(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, img.ContentType, img.Data)
}

func (h *Handler) QRCode(c *gin.Context) {
	png, err := h.svc.QRCode(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
