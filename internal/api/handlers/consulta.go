package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nexconsult/adres-api/internal/captcha"
	"github.com/nexconsult/adres-api/internal/models"
	"github.com/nexconsult/adres-api/internal/services"
)

// ConsultaHandler handles BDUA lookup requests
type ConsultaHandler struct {
	consultaService services.ConsultaServiceInterface
	logger          *logrus.Logger
}

// NewConsultaHandler creates a new consulta handler
func NewConsultaHandler(consultaService services.ConsultaServiceInterface, logger *logrus.Logger) *ConsultaHandler {
	return &ConsultaHandler{
		consultaService: consultaService,
		logger:          logger,
	}
}

// Start handles a new lookup
// @Summary Start a BDUA lookup
// @Description Starts an affiliation lookup in the background. Poll the returned consulta until its status is completed; while it is awaiting_captcha, fetch the image and post the answer. A cached result is returned already completed.
// @Tags Consultas
// @Accept json
// @Produce json
// @Param request body models.ConsultaRequest true "Document to look up"
// @Success 200 {object} models.Consulta "Served from cache"
// @Success 202 {object} models.Consulta
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /api/v1/consultas [post]
func (h *ConsultaHandler) Start(c *gin.Context) {
	requestID := c.GetString("request_id")

	var req models.ConsultaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Invalid consulta request body")

		abortWithError(c, http.StatusBadRequest, "Invalid request", err.Error(), "INVALID_REQUEST")
		return
	}

	consulta, err := h.consultaService.Start(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id":  requestID,
		"consulta_id": consulta.ID,
		"cache":       consulta.Cache,
	}).Info("Consulta accepted")

	if consulta.Cache {
		c.JSON(http.StatusOK, consulta)
		return
	}
	c.Header("Location", "/api/v1/consultas/"+consulta.ID)
	c.JSON(http.StatusAccepted, consulta)
}

// Get handles a lookup status request
// @Summary Get a lookup
// @Description Returns the status, stage and, once completed, the outcome of a lookup
// @Tags Consultas
// @Produce json
// @Param id path string true "Consulta ID"
// @Success 200 {object} models.Consulta
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/consultas/{id} [get]
func (h *ConsultaHandler) Get(c *gin.Context) {
	consulta, err := h.consultaService.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, consulta)
}

// Last handles the latest result request
// @Summary Get the latest result
// @Description Returns the most recently finished lookup, or the persisted result file after a restart
// @Tags Consultas
// @Produce json
// @Success 200 {object} models.Consulta
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/consultas/ultima [get]
func (h *ConsultaHandler) Last(c *gin.Context) {
	consulta, err := h.consultaService.Last()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, consulta)
}

// CaptchaImage handles the CAPTCHA image request
// @Summary Get the CAPTCHA image
// @Description Returns the PNG the lookup is waiting on
// @Tags Consultas
// @Produce png
// @Param id path string true "Consulta ID"
// @Success 200 {file} binary
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/consultas/{id}/captcha [get]
func (h *ConsultaHandler) CaptchaImage(c *gin.Context) {
	image, err := h.consultaService.CaptchaImage(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", image)
}

// AnswerCaptcha handles the CAPTCHA answer
// @Summary Answer the CAPTCHA
// @Description Delivers the text read from the CAPTCHA image to the waiting lookup
// @Tags Consultas
// @Accept json
// @Produce json
// @Param id path string true "Consulta ID"
// @Param request body models.CaptchaAnswerRequest true "CAPTCHA text"
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/v1/consultas/{id}/captcha [post]
func (h *ConsultaHandler) AnswerCaptcha(c *gin.Context) {
	id := c.Param("id")

	var req models.CaptchaAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid request", err.Error(), "INVALID_REQUEST")
		return
	}

	if err := h.consultaService.AnswerCaptcha(id, req.Respuesta); err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"request_id":  c.GetString("request_id"),
		"consulta_id": id,
	}).Info("Captcha answer received")

	c.JSON(http.StatusAccepted, gin.H{
		"id":        id,
		"message":   "Captcha answer accepted",
		"timestamp": time.Now(),
	})
}

// respondError maps service errors to HTTP responses
func (h *ConsultaHandler) respondError(c *gin.Context, err error) {
	status, title, code := http.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR"

	switch {
	case errors.Is(err, models.ErrInvalidDocumentType):
		status, title, code = http.StatusBadRequest, "Invalid document type", "INVALID_DOCUMENT_TYPE"
	case errors.Is(err, models.ErrInvalidDocumentNumber):
		status, title, code = http.StatusBadRequest, "Invalid document number", "INVALID_DOCUMENT_NUMBER"
	case errors.Is(err, captcha.ErrEmptyAnswer):
		status, title, code = http.StatusBadRequest, "Empty answer", "EMPTY_CAPTCHA_ANSWER"
	case errors.Is(err, services.ErrConsultaNotFound):
		status, title, code = http.StatusNotFound, "Not found", "CONSULTA_NOT_FOUND"
	case errors.Is(err, services.ErrCaptchaNotManual):
		status, title, code = http.StatusConflict, "Captcha not manual", "CAPTCHA_NOT_MANUAL"
	case errors.Is(err, services.ErrCaptchaNotReady):
		status, title, code = http.StatusConflict, "Captcha not ready", "CAPTCHA_NOT_READY"
	case errors.Is(err, captcha.ErrNotWaiting):
		status, title, code = http.StatusConflict, "Captcha not waiting", "CAPTCHA_NOT_WAITING"
	case errors.Is(err, captcha.ErrAlreadyAnswered):
		status, title, code = http.StatusConflict, "Captcha already answered", "CAPTCHA_ALREADY_ANSWERED"
	case errors.Is(err, services.ErrServiceClosed):
		status, title, code = http.StatusServiceUnavailable, "Service unavailable", "SERVICE_CLOSED"
	}

	entry := h.logger.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
		"error":      err.Error(),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Consulta request failed")
	} else {
		entry.Debug("Consulta request rejected")
	}

	abortWithError(c, status, title, err.Error(), code)
}

func abortWithError(c *gin.Context, status int, title, message, code string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error:     title,
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
		Path:      c.Request.URL.Path,
	})
}
