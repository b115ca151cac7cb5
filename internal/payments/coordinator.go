package payments

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"carebook-server/internal/booking"
	"carebook-server/internal/logging"
	"carebook-server/internal/models"
)

// minorUnitFactor converts a USD amount to cents.
var minorUnitFactor = decimal.NewFromInt(100)

// Coordinator creates payment intents scoped to a single appointment and
// records the resulting intent id on it.
type Coordinator struct {
	store  *booking.Store
	client IntentClient
	log    *logging.Logger
}

// NewCoordinator creates a payment intent coordinator.
func NewCoordinator(store *booking.Store, client IntentClient, log *logging.Logger) *Coordinator {
	if log == nil {
		log = logging.Default()
	}
	return &Coordinator{store: store, client: client, log: log}
}

// CreateIntent loads the caller's appointment, creates a processor intent
// for its cost in minor units with {appointmentId, userId} metadata, persists
// the intent id and returns the client secret. A processor failure leaves the
// appointment unchanged and is reported as ErrUpstream, safe to retry.
func (co *Coordinator) CreateIntent(ctx context.Context, appointmentID, userID string) (string, error) {
	appointment, err := co.store.GetForUser(ctx, appointmentID, userID)
	if err != nil {
		return "", err
	}
	if appointment.Status != models.StatusPending {
		return "", fmt.Errorf("%w: appointment is %s", booking.ErrValidation, appointment.Status)
	}

	amountMinor := appointment.Cost.Mul(minorUnitFactor).IntPart()

	intent, err := co.client.CreateIntent(ctx, amountMinor, "usd", map[string]string{
		"appointmentId": appointment.ID,
		"userId":        userID,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if err := co.store.AttachIntent(ctx, appointment.ID, intent.ID); err != nil {
		return "", err
	}

	co.log.Infow("payment intent created",
		"appointment_id", appointment.ID,
		"intent_id", intent.ID,
		"amount_minor", amountMinor,
	)
	return intent.ClientSecret, nil
}
