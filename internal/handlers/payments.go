package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"carebook-server/internal/booking"
	"carebook-server/internal/logging"
	"carebook-server/internal/middleware"
	"carebook-server/internal/payments"
	"carebook-server/internal/utils"
)

// PaymentHandler exposes intent creation and the processor webhook.
type PaymentHandler struct {
	Coordinator *payments.Coordinator
	Reconciler  *payments.Reconciler
	Log         *logging.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(coordinator *payments.Coordinator, reconciler *payments.Reconciler, log *logging.Logger) *PaymentHandler {
	if log == nil {
		log = logging.Default()
	}
	return &PaymentHandler{Coordinator: coordinator, Reconciler: reconciler, Log: log}
}

// CreateIntentRequest represents the request body for creating a payment intent.
type CreateIntentRequest struct {
	AppointmentID string `json:"appointmentId" binding:"required,uuid"`
}

// CreateIntent creates a payment intent for one of the caller's appointments
// and returns the client secret used to complete payment client-side.
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	var req CreateIntentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	clientSecret, err := h.Coordinator.CreateIntent(c.Request.Context(), req.AppointmentID, userID)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrNotFound):
			utils.NotFound(c, "Appointment not found")
		case errors.Is(err, booking.ErrValidation):
			utils.BadRequest(c, err.Error())
		case errors.Is(err, payments.ErrUpstream):
			h.Log.Errorw("payment intent creation failed upstream", "appointment_id", req.AppointmentID, "error", err)
			utils.BadGateway(c, "Payment processor is unavailable. Please try again.")
		default:
			h.Log.Errorw("payment intent creation failed", "appointment_id", req.AppointmentID, "error", err)
			utils.InternalServerError(c, "Internal server error")
		}
		return
	}

	utils.Success(c, "Payment intent created", gin.H{"clientSecret": clientSecret})
}

// Webhook receives signed processor events. Verified events are always
// acknowledged with {"received":true}, even when nothing was applied; only
// signature failures are rejected.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		utils.BadRequest(c, "Unable to read request body")
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := h.Reconciler.HandleEvent(c.Request.Context(), payload, signature); err != nil {
		if errors.Is(err, payments.ErrSignature) {
			utils.BadRequest(c, "Webhook signature verification failed")
			return
		}
		h.Log.Errorw("webhook processing failed", "error", err)
		utils.InternalServerError(c, "Webhook handler failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
