package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"getpaid-p24/internal/infrastructure/przelewy24"
	"getpaid-p24/internal/repo"
	"getpaid-p24/internal/service"
)

// Handler serves the gateway callbacks and the checkout endpoint.
type Handler struct {
	payments      service.PaymentService
	notifications *service.NotificationService
	logger        *zap.Logger
}

func NewHandler(payments service.PaymentService, notifications *service.NotificationService, logger *zap.Logger) *Handler {
	return &Handler{
		payments:      payments,
		notifications: notifications,
		logger:        logger.Named("handler"),
	}
}

// PostStatus handles POST /przelewy24/online.
func (h *Handler) PostStatus(c *gin.Context) {
	ip := c.ClientIP()
	if !h.notifications.Allowed(ip) {
		h.logger.Warn("notification from unexpected address", zap.String("ip", ip))
		c.Status(http.StatusForbidden)
		return
	}

	if err := c.Request.ParseForm(); err != nil {
		h.logger.Warn("unreadable notification", zap.Error(err))
		c.String(http.StatusBadRequest, "MALFORMED")
		return
	}
	n, err := service.NotificationFromForm(c.Request.PostForm)
	if err != nil {
		h.logger.Warn("got malformed notification", zap.Error(err))
		c.String(http.StatusBadRequest, "MALFORMED")
		return
	}

	_, err = h.notifications.OnStatusChange(c.Request.Context(), n)
	switch {
	case err == nil:
		c.String(http.StatusOK, "OK")
	case errors.Is(err, service.ErrSignatureMismatch):
		c.String(http.StatusOK, "CRC ERR")
	case errors.Is(err, service.ErrMalformed):
		c.String(http.StatusBadRequest, "MALFORMED")
	default:
		c.String(http.StatusServiceUnavailable, "RETRY")
	}
}

// Return handles the browser coming back from the hosted payment page.
// Whatever the browser sends is ignored; the notification decides the status.
func (h *Handler) Return(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	if _, err := h.payments.GetPayment(c.Request.Context(), id); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			h.logger.Error("cannot load payment", zap.String("payment_id", id.String()), zap.Error(err))
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNotFound)
		return
	}
	c.Redirect(http.StatusFound, przelewy24.InProgressPath(id.String()))
}

type checkoutResponse struct {
	URL    string              `json:"url"`
	Method string              `json:"method"`
	Params map[string][]string `json:"params,omitempty"`
}

// Checkout handles POST /payments/:id/checkout.
func (h *Handler) Checkout(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return
	}

	reg, err := h.payments.Checkout(c.Request.Context(), id)
	var cfgErr *przelewy24.ConfigurationError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, checkoutResponse{URL: reg.URL, Method: reg.Method, Params: reg.Params})
	case errors.Is(err, repo.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
	case errors.Is(err, service.ErrPaymentNotNew):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrGatewayUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.As(err, &cfgErr):
		h.logger.Error("gateway misconfigured", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment backend misconfigured"})
	default:
		h.logger.Error("checkout failed", zap.String("payment_id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout failed"})
	}
}
