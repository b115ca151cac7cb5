package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"carebook-server/internal/booking"
	"carebook-server/internal/logging"
	"carebook-server/internal/models"
)

// fakeIntentClient substitutes the payment processor in tests.
type fakeIntentClient struct {
	intent   *Intent
	err      error
	calls    int
	lastAmt  int64
	lastMeta map[string]string
}

func (f *fakeIntentClient) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error) {
	f.calls++
	f.lastAmt = amountMinor
	f.lastMeta = metadata
	if f.err != nil {
		return nil, f.err
	}
	return f.intent, nil
}

func newPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.Migrate(db))
	return db
}

func seedAppointment(t *testing.T, db *gorm.DB, store *booking.Store) (models.User, *models.Appointment) {
	t.Helper()
	user := models.User{Name: "Jane Doe", Email: "jane@example.com", Role: models.RoleUser}
	require.NoError(t, user.SetPassword("test-password"))
	require.NoError(t, db.Create(&user).Error)

	specialist := models.Specialist{Name: "Dr. Meyer", Title: "MD", Service: models.ServiceCardiology, Availability: "Mon-Fri"}
	require.NoError(t, db.Create(&specialist).Error)

	appointment, err := store.Create(context.Background(), user.ID, booking.CreateInput{
		SpecialistID: specialist.ID,
		Service:      models.ServiceCardiology,
		Date:         time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		TimeOfDay:    "10:00 AM",
		Mode:         models.ModeInPerson,
		Location:     "CareBook Clinic, Suite 4",
		Reason:       "Recurring chest discomfort during exercise",
		Cost:         decimal.NewFromFloat(150.00),
	})
	require.NoError(t, err)
	return user, appointment
}

func TestCreateIntent(t *testing.T) {
	db := newPaymentsTestDB(t)
	store := booking.NewStore(db, logging.Nop())
	user, appointment := seedAppointment(t, db, store)

	client := &fakeIntentClient{intent: &Intent{ID: "pi_123", ClientSecret: "pi_123_secret_abc"}}
	coordinator := NewCoordinator(store, client, logging.Nop())

	secret, err := coordinator.CreateIntent(context.Background(), appointment.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_123_secret_abc", secret)
	assert.Equal(t, int64(15000), client.lastAmt)
	assert.Equal(t, appointment.ID, client.lastMeta["appointmentId"])
	assert.Equal(t, user.ID, client.lastMeta["userId"])

	got, err := store.Get(context.Background(), appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_123", got.Payment.IntentID)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestCreateIntentNotOwned(t *testing.T) {
	db := newPaymentsTestDB(t)
	store := booking.NewStore(db, logging.Nop())
	_, appointment := seedAppointment(t, db, store)

	stranger := models.User{Name: "John Roe", Email: "john@example.com", Role: models.RoleUser}
	require.NoError(t, stranger.SetPassword("test-password"))
	require.NoError(t, db.Create(&stranger).Error)

	client := &fakeIntentClient{intent: &Intent{ID: "pi_123", ClientSecret: "s"}}
	coordinator := NewCoordinator(store, client, logging.Nop())

	_, err := coordinator.CreateIntent(context.Background(), appointment.ID, stranger.ID)
	assert.ErrorIs(t, err, booking.ErrNotFound)
	assert.Zero(t, client.calls)
}

func TestCreateIntentUpstreamFailure(t *testing.T) {
	db := newPaymentsTestDB(t)
	store := booking.NewStore(db, logging.Nop())
	user, appointment := seedAppointment(t, db, store)

	client := &fakeIntentClient{err: errors.New("connection reset")}
	coordinator := NewCoordinator(store, client, logging.Nop())

	_, err := coordinator.CreateIntent(context.Background(), appointment.ID, user.ID)
	assert.ErrorIs(t, err, ErrUpstream)

	// No partial state: the appointment is untouched and safe to retry.
	got, err := store.Get(context.Background(), appointment.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Payment.IntentID)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, models.PaymentPending, got.Payment.Status)
}

func TestCreateIntentNonPendingAppointment(t *testing.T) {
	db := newPaymentsTestDB(t)
	store := booking.NewStore(db, logging.Nop())
	user, appointment := seedAppointment(t, db, store)

	client := &fakeIntentClient{intent: &Intent{ID: "pi_123", ClientSecret: "s"}}
	coordinator := NewCoordinator(store, client, logging.Nop())

	_, err := coordinator.CreateIntent(context.Background(), appointment.ID, user.ID)
	require.NoError(t, err)
	require.NoError(t, store.ApplyPaymentSucceeded(context.Background(), appointment.ID, "pi_123"))

	_, err = coordinator.CreateIntent(context.Background(), appointment.ID, user.ID)
	assert.ErrorIs(t, err, booking.ErrValidation)
}
