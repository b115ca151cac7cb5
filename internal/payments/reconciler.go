package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"carebook-server/internal/booking"
	"carebook-server/internal/logging"
	"carebook-server/internal/models"
)

// Event kinds delivered by the processor that this reconciler acts on.
const (
	eventIntentSucceeded = "payment_intent.succeeded"
	eventIntentFailed    = "payment_intent.payment_failed"
)

// webhookEvent is the subset of the processor's event envelope we consume.
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// Reconciler consumes asynchronous payment-status events and applies
// idempotent state transitions to appointments. Delivery is at-least-once
// and may be duplicated or reordered; correctness rests on the event-id
// ledger, the store's conditional transitions and intent-id matching.
type Reconciler struct {
	db     *gorm.DB
	store  *booking.Store
	secret string
	log    *logging.Logger
}

// NewReconciler creates a webhook reconciler. secret is the shared webhook
// signing secret.
func NewReconciler(db *gorm.DB, store *booking.Store, secret string, log *logging.Logger) *Reconciler {
	if log == nil {
		log = logging.Default()
	}
	return &Reconciler{db: db, store: store, secret: secret, log: log}
}

// HandleEvent verifies and applies one webhook delivery. It returns
// ErrSignature when verification fails (the caller answers 400 and the event
// is discarded). Application-level mismatches — unknown appointment, stale or
// foreign intent id, impossible transition — are logged and swallowed so the
// caller acknowledges and the processor stops retrying; only infrastructure
// errors propagate.
func (r *Reconciler) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	if !VerifyWebhookSignature(r.secret, payload, signatureHeader) {
		return ErrSignature
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		// Signed but unparseable; nothing we can apply. Acknowledge.
		r.log.Warnw("webhook payload not decodable", "error", err)
		return nil
	}

	switch event.Type {
	case eventIntentSucceeded, eventIntentFailed:
	default:
		// Forward compatibility: unrecognized kinds are acknowledged as no-ops.
		return nil
	}

	if event.ID != "" {
		processed, err := r.alreadyProcessed(ctx, event.ID)
		if err != nil {
			return err
		}
		if processed {
			return nil
		}
	}

	appointmentID := event.Data.Object.Metadata["appointmentId"]
	intentID := event.Data.Object.ID
	if appointmentID == "" || intentID == "" {
		r.log.Warnw("webhook event missing appointment metadata", "event_id", event.ID, "type", event.Type)
		return nil
	}

	var applyErr error
	if event.Type == eventIntentSucceeded {
		applyErr = r.store.ApplyPaymentSucceeded(ctx, appointmentID, intentID)
	} else {
		applyErr = r.store.ApplyPaymentFailed(ctx, appointmentID, intentID)
	}

	switch {
	case applyErr == nil:
	case errors.Is(applyErr, booking.ErrNotFound),
		errors.Is(applyErr, booking.ErrIntentMismatch),
		errors.Is(applyErr, booking.ErrInvalidTransition):
		// Not the processor's problem; log and acknowledge without
		// touching the appointment.
		r.log.Warnw("webhook event not applied",
			"event_id", event.ID,
			"type", event.Type,
			"appointment_id", appointmentID,
			"intent_id", intentID,
			"reason", applyErr,
		)
		return nil
	default:
		return applyErr
	}

	if event.ID != "" {
		r.markProcessed(ctx, event)
	}
	return nil
}

func (r *Reconciler) alreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("payments: processed lookup: %w", err)
	}
	return count > 0, nil
}

func (r *Reconciler) markProcessed(ctx context.Context, event webhookEvent) {
	record := models.WebhookEvent{EventID: event.ID, Kind: event.Type}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		// A concurrent delivery may have recorded it first; the state
		// machine already made the second application a no-op.
		r.log.Debugw("webhook event ledger insert skipped", "event_id", event.ID, "error", err)
	}
}
