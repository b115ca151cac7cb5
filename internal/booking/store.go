package booking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"carebook-server/internal/logging"
	"carebook-server/internal/models"
)

// minReasonLength is the minimum length of the reason-for-visit text.
const minReasonLength = 10

// CreateInput carries the validated fields for a new appointment.
type CreateInput struct {
	SpecialistID string
	Service      models.ServiceCategory
	Date         time.Time
	TimeOfDay    string
	Mode         models.ConsultationMode
	Location     string
	MeetingLink  string
	Reason       string
	Cost         decimal.Decimal
}

// Store owns appointment persistence and the appointment state machine.
// It is the only writer of appointment status and payment fields.
type Store struct {
	db  *gorm.DB
	log *logging.Logger

	// slotMu guards slots; each slot mutex is held across the
	// availability check and the insert for that slot.
	slotMu sync.Mutex
	slots  map[string]*sync.Mutex
}

// NewStore creates an appointment store.
func NewStore(db *gorm.DB, log *logging.Logger) *Store {
	if log == nil {
		log = logging.Default()
	}
	return &Store{
		db:    db,
		log:   log,
		slots: make(map[string]*sync.Mutex),
	}
}

func (in *CreateInput) validate() error {
	switch {
	case in.SpecialistID == "":
		return fmt.Errorf("%w: specialistId is required", ErrValidation)
	case !in.Service.Valid():
		return fmt.Errorf("%w: unknown service %q", ErrValidation, in.Service)
	case in.Date.IsZero():
		return fmt.Errorf("%w: date is required", ErrValidation)
	case strings.TrimSpace(in.TimeOfDay) == "":
		return fmt.Errorf("%w: time is required", ErrValidation)
	case !in.Mode.Valid():
		return fmt.Errorf("%w: unknown consultation mode %q", ErrValidation, in.Mode)
	case len(strings.TrimSpace(in.Reason)) < minReasonLength:
		return fmt.Errorf("%w: reason must be at least %d characters", ErrValidation, minReasonLength)
	case !in.Cost.IsPositive():
		return fmt.Errorf("%w: cost must be positive", ErrValidation)
	}

	// Exactly one of location/meetingLink, matching the mode.
	switch in.Mode {
	case models.ModeInPerson:
		if strings.TrimSpace(in.Location) == "" {
			return fmt.Errorf("%w: location is required for in-person appointments", ErrValidation)
		}
		if in.MeetingLink != "" {
			return fmt.Errorf("%w: meetingLink is not allowed for in-person appointments", ErrValidation)
		}
	case models.ModeOnline:
		if strings.TrimSpace(in.MeetingLink) == "" {
			return fmt.Errorf("%w: meetingLink is required for online appointments", ErrValidation)
		}
		if in.Location != "" {
			return fmt.Errorf("%w: location is not allowed for online appointments", ErrValidation)
		}
	}
	return nil
}

// NormalizeDate truncates a timestamp to its UTC calendar day, the
// granularity slots are keyed on.
func NormalizeDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func slotKey(specialistID string, date time.Time, timeOfDay string) string {
	return specialistID + "|" + date.Format("2006-01-02") + "|" + timeOfDay
}

// slotLock returns the mutex guarding the given slot, creating it on first use.
func (s *Store) slotLock(key string) *sync.Mutex {
	s.slotMu.Lock()
	defer s.slotMu.Unlock()
	mu, ok := s.slots[key]
	if !ok {
		mu = &sync.Mutex{}
		s.slots[key] = mu
	}
	return mu
}

// Create validates the input, checks slot availability and persists a new
// pending appointment with a pending payment. The availability check and the
// insert run under the slot's critical section, so two concurrent bookings
// for the same slot cannot both succeed.
func (s *Store) Create(ctx context.Context, userID string, in CreateInput) (*models.Appointment, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var specialist models.Specialist
	if err := s.db.WithContext(ctx).First(&specialist, "id = ?", in.SpecialistID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrSpecialistNotFound
		}
		return nil, fmt.Errorf("booking: load specialist: %w", err)
	}

	day := NormalizeDate(in.Date)

	lock := s.slotLock(slotKey(in.SpecialistID, day, in.TimeOfDay))
	lock.Lock()
	defer lock.Unlock()

	available, err := s.IsSlotAvailable(ctx, in.SpecialistID, day, in.TimeOfDay, "")
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, ErrSlotTaken
	}

	appointment := models.Appointment{
		UserID:       userID,
		SpecialistID: in.SpecialistID,
		Service:      in.Service,
		Date:         day,
		TimeOfDay:    in.TimeOfDay,
		Mode:         in.Mode,
		Location:     in.Location,
		MeetingLink:  in.MeetingLink,
		Reason:       strings.TrimSpace(in.Reason),
		Cost:         in.Cost,
		Status:       models.StatusPending,
		Payment: models.Payment{
			Amount: in.Cost,
			Status: models.PaymentPending,
		},
	}

	if err := s.db.WithContext(ctx).Create(&appointment).Error; err != nil {
		return nil, fmt.Errorf("booking: create appointment: %w", err)
	}

	appointment.Specialist = specialist
	return &appointment, nil
}

// IsSlotAvailable reports whether no non-cancelled appointment occupies the
// (specialist, date, time) tuple. excludeID, when non-empty, skips that
// appointment (used when rechecking an existing booking).
func (s *Store) IsSlotAvailable(ctx context.Context, specialistID string, date time.Time, timeOfDay string, excludeID string) (bool, error) {
	query := s.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("specialist_id = ? AND date = ? AND time_of_day = ?", specialistID, NormalizeDate(date), timeOfDay).
		Where("status <> ?", models.StatusCancelled)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("booking: check slot: %w", err)
	}
	return count == 0, nil
}

// ListForUser returns all appointments belonging to a user, newest date
// first, with specialist summary data preloaded.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]models.Appointment, error) {
	var appointments []models.Appointment
	err := s.db.WithContext(ctx).
		Preload("Specialist").
		Where("user_id = ?", userID).
		Order("date DESC, created_at DESC").
		Find(&appointments).Error
	if err != nil {
		return nil, fmt.Errorf("booking: list appointments: %w", err)
	}
	return appointments, nil
}

// Get loads an appointment by id.
func (s *Store) Get(ctx context.Context, id string) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := s.db.WithContext(ctx).First(&appointment, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("booking: load appointment: %w", err)
	}
	return &appointment, nil
}

// GetForUser loads an appointment and checks ownership. A mismatch is
// reported as not found so callers cannot probe other users' bookings.
func (s *Store) GetForUser(ctx context.Context, id, userID string) (*models.Appointment, error) {
	appointment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.UserID != userID {
		return nil, ErrNotFound
	}
	return appointment, nil
}

// AttachIntent records the processor's intent id on the appointment once the
// intent has been created upstream.
func (s *Store) AttachIntent(ctx context.Context, id, intentID string) error {
	result := s.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("id = ?", id).
		Update("payment_intent_id", intentID)
	if result.Error != nil {
		return fmt.Errorf("booking: attach intent: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyPaymentSucceeded transitions pending -> confirmed and marks the
// payment completed. Redelivery of the same outcome is a no-op; an intent id
// other than the stored one fails with ErrIntentMismatch; transitions from
// completed or cancelled fail with ErrInvalidTransition.
func (s *Store) ApplyPaymentSucceeded(ctx context.Context, id, intentID string) error {
	return s.applyPaymentOutcome(ctx, id, intentID, true)
}

// ApplyPaymentFailed transitions pending -> cancelled and marks the payment
// failed, with the same idempotency and matching rules as ApplyPaymentSucceeded.
func (s *Store) ApplyPaymentFailed(ctx context.Context, id, intentID string) error {
	return s.applyPaymentOutcome(ctx, id, intentID, false)
}

func (s *Store) applyPaymentOutcome(ctx context.Context, id, intentID string, succeeded bool) error {
	appointment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if appointment.Payment.IntentID == "" || appointment.Payment.IntentID != intentID {
		return ErrIntentMismatch
	}

	target := models.StatusConfirmed
	paymentTarget := models.PaymentCompleted
	if !succeeded {
		target = models.StatusCancelled
		paymentTarget = models.PaymentFailed
	}

	switch appointment.Status {
	case target:
		// Duplicate delivery of an outcome already applied.
		return nil
	case models.StatusPending:
		// Conditional update: only one concurrent delivery can win the
		// pending -> terminal transition.
		result := s.db.WithContext(ctx).Model(&models.Appointment{}).
			Where("id = ? AND status = ?", id, models.StatusPending).
			Updates(map[string]interface{}{
				"status":         target,
				"payment_status": paymentTarget,
			})
		if result.Error != nil {
			return fmt.Errorf("booking: apply payment outcome: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Lost the race; reload and re-evaluate.
			current, err := s.Get(ctx, id)
			if err != nil {
				return err
			}
			if current.Status == target {
				return nil
			}
			return ErrInvalidTransition
		}
		s.log.Infow("appointment transition applied",
			"appointment_id", id,
			"intent_id", intentID,
			"status", target,
		)
		return nil
	default:
		return ErrInvalidTransition
	}
}
