package routes

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"carebook-server/internal/config"
	"carebook-server/internal/logging"
	"carebook-server/internal/models"
	"carebook-server/internal/payments"
)

const testWebhookSecret = "whsec_test123"

type fakeIntentClient struct {
	calls    int
	lastAmt  int64
	lastMeta map[string]string
}

func (f *fakeIntentClient) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*payments.Intent, error) {
	f.calls++
	f.lastAmt = amountMinor
	f.lastMeta = metadata
	return &payments.Intent{ID: "pi_test_123", ClientSecret: "pi_test_123_secret"}, nil
}

func newTestApp(t *testing.T) (*gin.Engine, *gorm.DB, *fakeIntentClient) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.Migrate(db))

	cfg := &config.Config{
		Environment:               "development",
		JWTSecret:                 "test_jwt_secret",
		JWTRefreshSecret:          "test_refresh_secret",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 168,
		Stripe: config.StripeConfig{
			SecretKey:     "sk_test_123",
			WebhookSecret: testWebhookSecret,
		},
	}

	client := &fakeIntentClient{}
	router := gin.New()
	SetupRoutes(router, db, cfg, Dependencies{IntentClient: client, Logger: logging.Nop()})
	return router, db, client
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func registerAndLogin(t *testing.T, router *gin.Engine, email string) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name":     "Test Patient",
		"email":    email,
		"password": "secret12345",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    email,
		"password": "secret12345",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	token, _ := decodeData(t, rec)["accessToken"].(string)
	require.NotEmpty(t, token)
	return token
}

func seedDirectorySpecialist(t *testing.T, db *gorm.DB) models.Specialist {
	t.Helper()
	specialist := models.Specialist{
		Name:    "Dr. Lena Fischer",
		Title:   "MD, Cardiologist",
		Service: models.ServiceCardiology,
	}
	require.NoError(t, db.Create(&specialist).Error)
	return specialist
}

func signWebhook(payload []byte, secret string) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func postWebhook(t *testing.T, router *gin.Engine, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestBookingPaymentFlow walks the whole happy path: register, log in, book,
// request a payment intent, then confirm via the processor's webhook.
func TestBookingPaymentFlow(t *testing.T) {
	router, db, client := newTestApp(t)
	specialist := seedDirectorySpecialist(t, db)
	token := registerAndLogin(t, router, "flow@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/appointments", token, gin.H{
		"specialistId": specialist.ID,
		"service":      "cardiology",
		"date":         "2026-09-15T00:00:00Z",
		"time":         "10:30",
		"mode":         "in-person",
		"location":     "Main Street Clinic, Room 4",
		"reason":       "Recurring chest pain during exercise",
		"cost":         150.00,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	appointmentID, _ := decodeData(t, rec)["id"].(string)
	require.NotEmpty(t, appointmentID)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/payments/intent", token, gin.H{
		"appointmentId": appointmentID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "pi_test_123_secret", decodeData(t, rec)["clientSecret"])
	assert.Equal(t, int64(15000), client.lastAmt)
	assert.Equal(t, appointmentID, client.lastMeta["appointmentId"])

	payload, err := json.Marshal(gin.H{
		"id":   "evt_flow_1",
		"type": "payment_intent.succeeded",
		"data": gin.H{
			"object": gin.H{
				"id":       "pi_test_123",
				"metadata": gin.H{"appointmentId": appointmentID},
			},
		},
	})
	require.NoError(t, err)

	rec = postWebhook(t, router, payload, signWebhook(payload, testWebhookSecret))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	var appointment models.Appointment
	require.NoError(t, db.First(&appointment, "id = ?", appointmentID).Error)
	assert.Equal(t, models.StatusConfirmed, appointment.Status)
	assert.Equal(t, models.PaymentCompleted, appointment.Payment.Status)

	// Listing shows the confirmed appointment back to the patient.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/appointments", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookInvalidSignatureRejected(t *testing.T) {
	router, db, _ := newTestApp(t)
	specialist := seedDirectorySpecialist(t, db)
	token := registerAndLogin(t, router, "sig@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/appointments", token, gin.H{
		"specialistId": specialist.ID,
		"service":      "cardiology",
		"date":         "2026-09-16T00:00:00Z",
		"time":         "11:00",
		"mode":         "online",
		"meetingLink":  "https://meet.example.com/abc",
		"reason":       "Follow up on blood pressure readings",
		"cost":         90.00,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appointmentID, _ := decodeData(t, rec)["id"].(string)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/payments/intent", token, gin.H{
		"appointmentId": appointmentID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	payload, err := json.Marshal(gin.H{
		"id":   "evt_sig_1",
		"type": "payment_intent.succeeded",
		"data": gin.H{
			"object": gin.H{
				"id":       "pi_test_123",
				"metadata": gin.H{"appointmentId": appointmentID},
			},
		},
	})
	require.NoError(t, err)

	rec = postWebhook(t, router, payload, signWebhook(payload, "whsec_forged"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var appointment models.Appointment
	require.NoError(t, db.First(&appointment, "id = ?", appointmentID).Error)
	assert.Equal(t, models.StatusPending, appointment.Status)
	assert.Equal(t, models.PaymentPending, appointment.Payment.Status)
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	router, _, _ := newTestApp(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/payments/intent", "", gin.H{
		"appointmentId": "11111111-2222-3333-4444-555555555555",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateSpecialistRequiresAdminRole(t *testing.T) {
	router, db, _ := newTestApp(t)
	token := registerAndLogin(t, router, "plain@example.com")

	body := gin.H{
		"name":         "Dr. New Hire",
		"title":        "MD, Dermatologist",
		"service":      "dermatology",
		"availability": "Mon-Fri 9:00-17:00",
	}
	rec := doJSON(t, router, http.MethodPost, "/api/v1/specialists", token, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Promote the account and the same request goes through.
	require.NoError(t, db.Model(&models.User{}).
		Where("email = ?", "plain@example.com").
		Update("role", models.RoleAdmin).Error)
	adminToken := loginOnly(t, router, "plain@example.com")

	rec = doJSON(t, router, http.MethodPost, "/api/v1/specialists", adminToken, body)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestRefreshTokenRotation(t *testing.T) {
	router, _, _ := newTestApp(t)
	registerAndLogin(t, router, "rotate@example.com")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    "rotate@example.com",
		"password": "secret12345",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	oldRefresh, _ := decodeData(t, rec)["refreshToken"].(string)
	require.NotEmpty(t, oldRefresh)

	// JWT timestamps have second resolution; tokens minted in the same
	// second would be byte-identical.
	time.Sleep(1100 * time.Millisecond)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/refresh-token", "", gin.H{
		"refreshToken": oldRefresh,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	newRefresh, _ := decodeData(t, rec)["refreshToken"].(string)
	require.NotEmpty(t, newRefresh)
	assert.NotEqual(t, oldRefresh, newRefresh)

	// The presented token was revoked during rotation.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/auth/refresh-token", "", gin.H{
		"refreshToken": oldRefresh,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func loginOnly(t *testing.T, router *gin.Engine, email string) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    email,
		"password": "secret12345",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := decodeData(t, rec)["accessToken"].(string)
	require.NotEmpty(t, token)
	return token
}
