package controller

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"coachpage_backend/internal/middleware"
	"coachpage_backend/internal/model"
	"coachpage_backend/internal/reconciler"
	"coachpage_backend/pkg/billing"
	"coachpage_backend/pkg/utils/jwt"
)

const testJWTSecret = "test-secret"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Post{}, &model.PostMedia{}))
	return db
}

// fakeProvider is an in-memory billing.Provider that records calls and serves
// canned responses.
type fakeProvider struct {
	createCustomerCalls int
	checkoutCalls       int
	cancelCalls         int

	failCreateCustomer bool
	failCheckout       bool
	failCancel         bool

	subscription *billing.Subscription
}

func (f *fakeProvider) CreateCustomer(email, name string, userID uint) (string, error) {
	f.createCustomerCalls++
	if f.failCreateCustomer {
		return "", billing.ErrProvider
	}
	return fmt.Sprintf("cus_fake_%d", userID), nil
}

func (f *fakeProvider) CreateCheckoutSession(customerID string, userID uint) (*billing.CheckoutSession, error) {
	f.checkoutCalls++
	if f.failCheckout {
		return nil, billing.ErrProvider
	}
	return &billing.CheckoutSession{
		ID:  fmt.Sprintf("cs_fake_%d", f.checkoutCalls),
		URL: "https://checkout.example.com/session",
	}, nil
}

func (f *fakeProvider) CancelAtPeriodEnd(subscriptionID string) (*billing.Subscription, error) {
	f.cancelCalls++
	if f.failCancel {
		return nil, billing.ErrProvider
	}
	return &billing.Subscription{
		ID:                subscriptionID,
		Status:            "active",
		CurrentPeriodEnd:  time.Now().Add(30 * 24 * time.Hour),
		CancelAtPeriodEnd: true,
	}, nil
}

func (f *fakeProvider) GetSubscription(subscriptionID string) (*billing.Subscription, error) {
	if f.subscription != nil {
		return f.subscription, nil
	}
	return &billing.Subscription{
		ID:               subscriptionID,
		Status:           "active",
		CurrentPeriodEnd: time.Now().Add(30 * 24 * time.Hour),
	}, nil
}

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	tokens   *jwt.Manager
	provider *fakeProvider
}

const testWebhookSecret = "whsec_test"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	tokens := jwt.NewManager(testJWTSecret)
	provider := &fakeProvider{}
	rec := reconciler.New(db, nil)

	auth := NewAuthController(db, tokens, nil)
	posts := NewPostController(db)
	subscriptions := NewSubscriptionController(db, provider, rec, testWebhookSecret, "price_test")
	stats := NewStatsController(db)

	app := fiber.New()

	api := app.Group("/api")
	api.Post("/auth/register", auth.Register)
	api.Post("/auth/login", auth.Login)
	api.Get("/me", middleware.RequireAuth(tokens), auth.GetMe)

	requireCreator := []fiber.Handler{
		middleware.RequireAuth(tokens),
		middleware.RequireRole(db, model.RoleTrainer, model.RoleAdmin),
	}

	postGroup := api.Group("/posts")
	postGroup.Get("/", middleware.OptionalAuth(tokens), posts.ListPosts)
	postGroup.Post("/", append(requireCreator, posts.CreatePost)...)
	postGroup.Get("/:id", middleware.OptionalAuth(tokens), posts.GetPost)
	postGroup.Put("/:id", append(requireCreator, posts.UpdatePost)...)
	postGroup.Delete("/:id", append(requireCreator, posts.DeletePost)...)

	api.Get("/dashboard/stats", append(requireCreator, stats.GetDashboardStats)...)

	subGroup := api.Group("/subscription")
	subGroup.Get("/pricing", subscriptions.GetPricing)
	subGroup.Post("/free", middleware.RequireAuth(tokens), subscriptions.SubscribeFree)
	subGroup.Post("/create-checkout-session", middleware.RequireAuth(tokens), subscriptions.CreateCheckoutSession)
	subGroup.Post("/cancel", middleware.RequireAuth(tokens), subscriptions.CancelSubscription)
	subGroup.Get("/status", middleware.RequireAuth(tokens), subscriptions.GetStatus)
	subGroup.Post("/webhook", subscriptions.HandleWebhook)

	return &testEnv{app: app, db: db, tokens: tokens, provider: provider}
}

func (e *testEnv) createUser(t *testing.T, user model.User) model.User {
	t.Helper()
	if user.Password == "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
		require.NoError(t, err)
		user.Password = string(hashed)
	}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

func (e *testEnv) tokenFor(t *testing.T, user model.User) string {
	t.Helper()
	token, err := e.tokens.GenerateToken(user.ID, user.Email, string(user.Role))
	require.NoError(t, err)
	return token
}

func (e *testEnv) reloadUser(t *testing.T, id uint) model.User {
	t.Helper()
	var user model.User
	require.NoError(t, e.db.First(&user, id).Error)
	return user
}

// request performs an HTTP call against the test app and decodes the JSON
// response body.
func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

// webhook posts a raw Stripe-style event with a valid signature unless a
// custom header is given.
func (e *testEnv) webhook(t *testing.T, payload []byte, signature string) (*http.Response, map[string]interface{}) {
	t.Helper()

	if signature == "" {
		signature = signStripePayload(payload, testWebhookSecret)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/subscription/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func signStripePayload(payload []byte, secret string) string {
	timestamp := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payload)
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func stripeEvent(eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_test","api_version":"2022-11-15","type":"%s","data":{"object":%s}}`, eventType, object))
}
