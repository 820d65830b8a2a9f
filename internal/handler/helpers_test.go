package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	aimock "github.com/DukeRupert/resumezen/internal/ai/mock"
	"github.com/DukeRupert/resumezen/internal/auth"
	"github.com/DukeRupert/resumezen/internal/billing"
	"github.com/DukeRupert/resumezen/internal/domain"
	ocrmock "github.com/DukeRupert/resumezen/internal/ocr/mock"
	"github.com/DukeRupert/resumezen/internal/service"
	"github.com/DukeRupert/resumezen/internal/storage"
	"github.com/DukeRupert/resumezen/internal/store"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func int32Ptr(v int32) *int32 { return &v }

func testPlans() []domain.Plan {
	return []domain.Plan{
		{ID: "starter", Name: "Starter Pack", PriceCents: 499, Currency: "usd", Credits: 1, IsActive: true, SortOrder: 10},
		{ID: "boost", Name: "Boost Pack", PriceCents: 999, Currency: "usd", Credits: 5, IsActive: true, SortOrder: 20},
		{ID: "unlimited-30", Name: "Unlimited Monthly", PriceCents: 2999, Currency: "usd", IsUnlimited: true, DurationDays: int32Ptr(30), IsActive: true, SortOrder: 40},
	}
}

// =============================================================================
// Fakes
// =============================================================================

// fakeUsers implements service.UserService over a token -> user map.
type fakeUsers struct {
	sessions    map[string]*domain.User
	customers   map[uuid.UUID]string
	registered  []domain.RegisterParams
	loggedOut   []string
	loginErr    error
	loginResult *domain.LoginResult
	registerErr error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		sessions:  make(map[string]*domain.User),
		customers: make(map[uuid.UUID]string),
	}
}

// signIn creates a user with a session token.
func (f *fakeUsers) signIn(token string) *domain.User {
	u := &domain.User{ID: uuid.New(), Email: token + "@example.com", Name: "Test " + token}
	f.sessions[token] = u
	return u
}

func (f *fakeUsers) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.registered = append(f.registered, params)
	return &domain.User{ID: uuid.New(), Email: params.Email, Name: params.Name}, nil
}

func (f *fakeUsers) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginResult, nil
}

func (f *fakeUsers) Logout(ctx context.Context, token string) error {
	f.loggedOut = append(f.loggedOut, token)
	delete(f.sessions, token)
	return nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, u := range f.sessions {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, domain.NotFound("fakeUsers.GetByID", "user", id.String())
}

func (f *fakeUsers) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	if u, ok := f.sessions[token]; ok {
		return u, nil
	}
	return nil, domain.Unauthorized("fakeUsers.GetBySessionToken", "Invalid session")
}

func (f *fakeUsers) DeleteExpiredSessions(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeUsers) UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error {
	f.customers[userID] = stripeCustomerID
	return nil
}

func (f *fakeUsers) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUsers) SessionDuration() time.Duration { return 24 * time.Hour }

// requireUser stands in for the auth middleware stack.
func (f *fakeUsers) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := f.sessions[auth.TokenFromRequest(r)]
		if !ok {
			UnauthorizedResponse(w, r, discardLogger())
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.SetUser(r.Context(), u)))
	})
}

func passThrough(next http.Handler) http.Handler { return next }

const testInternalToken = "internal-test-token"

// requireInternal stands in for the internal token middleware.
func requireInternal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Internal-Token") != testInternalToken {
			ErrorResponse(w, r, discardLogger(), domain.Forbidden("test", "internal only"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// fakeBilling implements billing.Service. VerifyWebhookSignature accepts
// payloads signed "ok" and decodes them as stripe events.
type fakeBilling struct {
	customers int
	checkouts []billing.CheckoutParams
}

func (f *fakeBilling) CreateCustomer(email, name string) (string, error) {
	f.customers++
	return "cus_test", nil
}

func (f *fakeBilling) CreateCheckoutSession(p billing.CheckoutParams) (*billing.Checkout, error) {
	f.checkouts = append(f.checkouts, p)
	return &billing.Checkout{SessionID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func (f *fakeBilling) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	if signature != "ok" {
		return stripe.Event{}, errors.New("bad signature")
	}
	var event stripe.Event
	err := json.Unmarshal(payload, &event)
	return event, err
}

// =============================================================================
// API Environment
// =============================================================================

// apiEnv serves every JSON route against in-memory services.
type apiEnv struct {
	mux     *http.ServeMux
	users   *fakeUsers
	billing *fakeBilling
	store   *store.Memory
	ocr     *ocrmock.Provider
	ai      *aimock.Provider
	credits service.CreditService
}

type apiEnvOptions struct {
	withBilling bool
}

func newAPIEnv(t *testing.T, opts apiEnvOptions) *apiEnv {
	t.Helper()
	logger := discardLogger()

	mem := store.NewMemory(testPlans()...)
	local, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, logger)
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}

	env := &apiEnv{
		mux:   http.NewServeMux(),
		users: newFakeUsers(),
		store: mem,
		ocr:   ocrmock.New(logger),
		ai:    aimock.New(logger),
	}

	catalog := service.NewPlanCatalog(mem, time.Minute, logger)
	env.credits = service.NewCreditService(mem, catalog, service.CreditServiceConfig{}, logger)
	uploads := service.NewUploadService(local, service.UploadServiceConfig{}, logger)
	history := service.NewHistoryService(mem, logger)
	analysis := service.NewAnalysisService(
		env.credits, uploads, env.ocr, env.ai,
		service.NewResumeChecker(service.DefaultResumeThreshold),
		mem,
		service.AnalysisServiceConfig{ProviderTimeout: 5 * time.Second},
		logger,
	)

	var billingService billing.Service
	if opts.withBilling {
		env.billing = &fakeBilling{}
		billingService = env.billing
	}

	NewAuthHandler(env.users, logger, false).RegisterRoutes(env.mux, passThrough, passThrough, env.users.requireUser)
	NewPlanHandler(catalog, env.credits, billingService, env.users, "https://resumezen.test/", logger).
		RegisterRoutes(env.mux, env.users.requireUser, requireInternal)
	NewResumeHandler(analysis, uploads, history, ResumeHandlerConfig{}, logger).
		RegisterRoutes(env.mux, env.users.requireUser, passThrough)
	NewWebhookHandler(billingService, env.credits, logger).RegisterRoutes(env.mux)
	return env
}

func (e *apiEnv) buy(t *testing.T, userID uuid.UUID, planID string) *domain.UserPlan {
	t.Helper()
	up, _, err := e.credits.Purchase(context.Background(), domain.PurchasePlanParams{UserID: userID, PlanID: planID})
	if err != nil {
		t.Fatalf("purchase %s: %v", planID, err)
	}
	return up
}

func (e *apiEnv) creditsLeft(t *testing.T, userPlanID uuid.UUID) int32 {
	t.Helper()
	up, err := e.store.GetUserPlan(context.Background(), userPlanID)
	if err != nil {
		t.Fatalf("get user plan: %v", err)
	}
	return up.CreditsLeft
}

// do sends a request as the user holding token ("" for anonymous).
func (e *apiEnv) do(t *testing.T, method, target, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	return e.send(t, method, target, token, body, contentType, nil)
}

func (e *apiEnv) send(t *testing.T, method, target, token string, body io.Reader, contentType string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header[k] = v
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) doJSON(t *testing.T, method, target, token string, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return e.send(t, method, target, token, jsonBody(t, v), "application/json", nil)
}

// doInternal is doJSON from a trusted service holding the internal token.
func (e *apiEnv) doInternal(t *testing.T, target, token string, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	header := http.Header{"X-Internal-Token": []string{testInternalToken}}
	return e.send(t, "POST", target, token, jsonBody(t, v), "application/json", header)
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(b)
}

// multipartFile builds a multipart body with one "file" part plus fields.
func multipartFile(t *testing.T, fileName, contentType string, data []byte, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// pdfBytes returns a minimal document that sniffs as PDF.
func pdfBytes(size int) []byte {
	head := []byte("%PDF-1.7\n")
	if size < len(head) {
		size = len(head)
	}
	b := bytes.Repeat([]byte("a"), size)
	copy(b, head)
	return b
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}
