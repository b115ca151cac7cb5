package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"carebook-server/internal/booking"
	"carebook-server/internal/logging"
	"carebook-server/internal/middleware"
	"carebook-server/internal/models"
	"carebook-server/internal/utils"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Store *booking.Store
	Log   *logging.Logger
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(store *booking.Store, log *logging.Logger) *AppointmentHandler {
	if log == nil {
		log = logging.Default()
	}
	return &AppointmentHandler{Store: store, Log: log}
}

// CreateAppointmentRequest represents the request body for creating an appointment.
type CreateAppointmentRequest struct {
	SpecialistID string    `json:"specialistId" binding:"required,uuid"`
	Service      string    `json:"service" binding:"required"`
	Date         time.Time `json:"date" binding:"required"`
	Time         string    `json:"time" binding:"required"`
	Mode         string    `json:"mode" binding:"required,oneof=in-person online"`
	Location     string    `json:"location"`
	MeetingLink  string    `json:"meetingLink"`
	Reason       string    `json:"reason" binding:"required"`
	Cost         float64   `json:"cost" binding:"required,gt=0"`
}

// CreateAppointment handles booking a new appointment for the caller.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	appointment, err := h.Store.Create(c.Request.Context(), userID, booking.CreateInput{
		SpecialistID: req.SpecialistID,
		Service:      models.ServiceCategory(req.Service),
		Date:         req.Date,
		TimeOfDay:    req.Time,
		Mode:         models.ConsultationMode(req.Mode),
		Location:     req.Location,
		MeetingLink:  req.MeetingLink,
		Reason:       req.Reason,
		Cost:         decimal.NewFromFloat(req.Cost),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.Created(c, "Appointment created successfully", appointment)
}

// GetAppointmentsForUser handles fetching the caller's appointments,
// newest date first.
func (h *AppointmentHandler) GetAppointmentsForUser(c *gin.Context) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	appointments, err := h.Store.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.Success(c, "Appointments fetched successfully", appointments)
}

func (h *AppointmentHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation):
		utils.BadRequest(c, err.Error())
	case errors.Is(err, booking.ErrSpecialistNotFound):
		utils.NotFound(c, "Specialist not found")
	case errors.Is(err, booking.ErrSlotTaken):
		utils.Conflict(c, "This time slot is no longer available. Please choose another.")
	case errors.Is(err, booking.ErrNotFound):
		utils.NotFound(c, "Appointment not found")
	default:
		h.Log.Errorw("appointment request failed", "error", err)
		utils.InternalServerError(c, "Internal server error")
	}
}
