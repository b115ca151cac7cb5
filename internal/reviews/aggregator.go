package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"carebook-server/internal/logging"
	"carebook-server/internal/models"
)

var (
	// ErrValidation is returned when review input is missing or out of range.
	ErrValidation = errors.New("invalid review input")

	// ErrSpecialistNotFound is returned when the specialist does not exist.
	ErrSpecialistNotFound = errors.New("specialist not found")

	// ErrDuplicateReview is returned when the user has already reviewed
	// this specialist.
	ErrDuplicateReview = errors.New("user has already reviewed this specialist")
)

// ReviewSummary is a review with the reviewer's display name resolved and
// the specialist's recomputed rating attached.
type ReviewSummary struct {
	ID               string    `json:"id"`
	SpecialistID     string    `json:"specialistId"`
	Rating           int       `json:"rating"`
	Comment          string    `json:"comment"`
	Reviewer         string    `json:"reviewer"`
	CreatedAt        time.Time `json:"createdAt"`
	SpecialistRating float64   `json:"specialistRating"`
}

// Aggregator owns specialist rating recomputation. It is the only writer of
// Specialist.Rating.
type Aggregator struct {
	db  *gorm.DB
	log *logging.Logger

	// mu guards locks; each per-specialist mutex serializes the
	// duplicate check, insert and rating recompute for that specialist.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAggregator creates a review aggregator.
func NewAggregator(db *gorm.DB, log *logging.Logger) *Aggregator {
	if log == nil {
		log = logging.Default()
	}
	return &Aggregator{db: db, log: log, locks: make(map[string]*sync.Mutex)}
}

func (a *Aggregator) specialistLock(specialistID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	mu, ok := a.locks[specialistID]
	if !ok {
		mu = &sync.Mutex{}
		a.locks[specialistID] = mu
	}
	return mu
}

// AddReview appends a review and recomputes the specialist's rating as the
// arithmetic mean over all reviews, inside one transaction. Full precision
// is kept in storage; rounding happens only at the response boundary.
func (a *Aggregator) AddReview(ctx context.Context, specialistID, userID string, rating int, comment string) (*ReviewSummary, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	if strings.TrimSpace(comment) == "" {
		return nil, fmt.Errorf("%w: comment is required", ErrValidation)
	}

	lock := a.specialistLock(specialistID)
	lock.Lock()
	defer lock.Unlock()

	var summary ReviewSummary
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var specialist models.Specialist
		if err := tx.First(&specialist, "id = ?", specialistID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrSpecialistNotFound
			}
			return fmt.Errorf("reviews: load specialist: %w", err)
		}

		var existing int64
		if err := tx.Model(&models.Review{}).
			Where("specialist_id = ? AND user_id = ?", specialistID, userID).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("reviews: duplicate check: %w", err)
		}
		if existing > 0 {
			return ErrDuplicateReview
		}

		review := models.Review{
			SpecialistID: specialistID,
			UserID:       userID,
			Rating:       rating,
			Comment:      strings.TrimSpace(comment),
		}
		if err := tx.Create(&review).Error; err != nil {
			return fmt.Errorf("reviews: create review: %w", err)
		}

		// Recompute, not incrementally track, so the aggregate cannot drift.
		var mean float64
		if err := tx.Model(&models.Review{}).
			Where("specialist_id = ?", specialistID).
			Select("AVG(rating)").
			Scan(&mean).Error; err != nil {
			return fmt.Errorf("reviews: recompute rating: %w", err)
		}
		if err := tx.Model(&models.Specialist{}).
			Where("id = ?", specialistID).
			Update("rating", mean).Error; err != nil {
			return fmt.Errorf("reviews: update rating: %w", err)
		}

		var reviewer models.User
		if err := tx.First(&reviewer, "id = ?", userID).Error; err != nil {
			return fmt.Errorf("reviews: load reviewer: %w", err)
		}

		summary = ReviewSummary{
			ID:               review.ID,
			SpecialistID:     specialistID,
			Rating:           review.Rating,
			Comment:          review.Comment,
			Reviewer:         reviewer.Name,
			CreatedAt:        review.CreatedAt,
			SpecialistRating: mean,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.log.Infow("review added",
		"specialist_id", specialistID,
		"user_id", userID,
		"rating", rating,
		"specialist_rating", summary.SpecialistRating,
	)
	return &summary, nil
}

// ListForSpecialist returns all reviews of a specialist, newest first, with
// reviewer names resolved.
func (a *Aggregator) ListForSpecialist(ctx context.Context, specialistID string) ([]ReviewSummary, error) {
	var specialist models.Specialist
	if err := a.db.WithContext(ctx).First(&specialist, "id = ?", specialistID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrSpecialistNotFound
		}
		return nil, fmt.Errorf("reviews: load specialist: %w", err)
	}

	var rows []models.Review
	if err := a.db.WithContext(ctx).
		Preload("User").
		Where("specialist_id = ?", specialistID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("reviews: list reviews: %w", err)
	}

	summaries := make([]ReviewSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, ReviewSummary{
			ID:               row.ID,
			SpecialistID:     row.SpecialistID,
			Rating:           row.Rating,
			Comment:          row.Comment,
			Reviewer:         row.User.Name,
			CreatedAt:        row.CreatedAt,
			SpecialistRating: specialist.Rating,
		})
	}
	return summaries, nil
}
