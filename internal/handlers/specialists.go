package handlers

import (
	"errors"
	"math"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"carebook-server/internal/logging"
	"carebook-server/internal/middleware"
	"carebook-server/internal/models"
	"carebook-server/internal/reviews"
	"carebook-server/internal/utils"
)

// SpecialistHandler handles the specialist directory and its reviews.
type SpecialistHandler struct {
	DB      *gorm.DB
	Reviews *reviews.Aggregator
	Log     *logging.Logger
}

// NewSpecialistHandler creates a new SpecialistHandler.
func NewSpecialistHandler(db *gorm.DB, aggregator *reviews.Aggregator, log *logging.Logger) *SpecialistHandler {
	if log == nil {
		log = logging.Default()
	}
	return &SpecialistHandler{DB: db, Reviews: aggregator, Log: log}
}

// specialistResponse is a Specialist with its rating rounded for display.
// Full precision stays in storage.
type specialistResponse struct {
	models.Specialist
	Rating float64 `json:"rating"`
}

func displayRating(rating float64) float64 {
	return math.Round(rating*10) / 10
}

func toSpecialistResponse(s models.Specialist) specialistResponse {
	return specialistResponse{Specialist: s, Rating: displayRating(s.Rating)}
}

// GetSpecialists lists the directory, optionally filtered by service category.
func (h *SpecialistHandler) GetSpecialists(c *gin.Context) {
	query := h.DB.WithContext(c.Request.Context()).Order("name asc")
	if service := c.Query("service"); service != "" {
		if !models.ServiceCategory(service).Valid() {
			utils.BadRequest(c, "Unknown service category: "+service)
			return
		}
		query = query.Where("service = ?", service)
	}

	var specialists []models.Specialist
	if err := query.Find(&specialists).Error; err != nil {
		h.Log.Errorw("specialist listing failed", "error", err)
		utils.InternalServerError(c, "Internal server error")
		return
	}

	responses := make([]specialistResponse, 0, len(specialists))
	for _, s := range specialists {
		responses = append(responses, toSpecialistResponse(s))
	}
	utils.Success(c, "Specialists fetched successfully", responses)
}

// GetSpecialistByID fetches one directory entry.
func (h *SpecialistHandler) GetSpecialistByID(c *gin.Context) {
	var specialist models.Specialist
	if err := h.DB.WithContext(c.Request.Context()).First(&specialist, "id = ?", c.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.NotFound(c, "Specialist not found")
		} else {
			h.Log.Errorw("specialist lookup failed", "error", err)
			utils.InternalServerError(c, "Internal server error")
		}
		return
	}

	utils.Success(c, "Specialist fetched successfully", toSpecialistResponse(specialist))
}

// CreateSpecialistRequest represents the request body for adding a directory entry.
type CreateSpecialistRequest struct {
	Name         string `json:"name" binding:"required"`
	Title        string `json:"title" binding:"required"`
	Service      string `json:"service" binding:"required"`
	Availability string `json:"availability" binding:"required"`
	Bio          string `json:"bio"`
	ImageURL     string `json:"imageUrl"`
}

// CreateSpecialist adds a directory entry. Admin only (enforced in routing).
func (h *SpecialistHandler) CreateSpecialist(c *gin.Context) {
	var req CreateSpecialistRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	if !models.ServiceCategory(req.Service).Valid() {
		utils.BadRequest(c, "Unknown service category: "+req.Service)
		return
	}

	specialist := models.Specialist{
		Name:         req.Name,
		Title:        req.Title,
		Service:      models.ServiceCategory(req.Service),
		Availability: req.Availability,
		Bio:          req.Bio,
		ImageURL:     req.ImageURL,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&specialist).Error; err != nil {
		h.Log.Errorw("specialist creation failed", "error", err)
		utils.InternalServerError(c, "Internal server error")
		return
	}

	utils.Created(c, "Specialist created successfully", toSpecialistResponse(specialist))
}

// GetReviews lists a specialist's reviews with reviewer names resolved.
func (h *SpecialistHandler) GetReviews(c *gin.Context) {
	summaries, err := h.Reviews.ListForSpecialist(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondReviewError(c, err)
		return
	}

	for i := range summaries {
		summaries[i].SpecialistRating = displayRating(summaries[i].SpecialistRating)
	}
	utils.Success(c, "Reviews fetched successfully", summaries)
}

// CreateReviewRequest represents the request body for reviewing a specialist.
type CreateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"required"`
}

// CreateReview appends a review and recomputes the specialist's rating.
func (h *SpecialistHandler) CreateReview(c *gin.Context) {
	var req CreateReviewRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	summary, err := h.Reviews.AddReview(c.Request.Context(), c.Param("id"), userID, req.Rating, req.Comment)
	if err != nil {
		h.respondReviewError(c, err)
		return
	}

	summary.SpecialistRating = displayRating(summary.SpecialistRating)
	utils.Created(c, "Review added successfully", summary)
}

func (h *SpecialistHandler) respondReviewError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reviews.ErrValidation):
		utils.BadRequest(c, err.Error())
	case errors.Is(err, reviews.ErrSpecialistNotFound):
		utils.NotFound(c, "Specialist not found")
	case errors.Is(err, reviews.ErrDuplicateReview):
		utils.Conflict(c, "You have already reviewed this specialist")
	default:
		h.Log.Errorw("review request failed", "error", err)
		utils.InternalServerError(c, "Internal server error")
	}
}
