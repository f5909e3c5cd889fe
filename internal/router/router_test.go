package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hireloop/config"
	"hireloop/internal/auth"
	"hireloop/internal/domain"
	"hireloop/internal/models"
	"hireloop/internal/repository"
	"hireloop/internal/service"
	"hireloop/internal/testutil"
	"hireloop/internal/ws"
	"hireloop/pkg/payment"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_test"

func init() {
	gin.SetMode(gin.TestMode)
}

type apiClient struct {
	t      *testing.T
	engine *gin.Engine
	cfg    *config.Config
	db     *gorm.DB
}

func (a *apiClient) token(u models.User) string {
	a.t.Helper()
	tok, err := auth.GenerateAccessToken(&a.cfg.JWT, u.ID, u.Email, u.Role)
	if err != nil {
		a.t.Fatalf("token: %v", err)
	}
	return tok
}

func (a *apiClient) do(method, path string, as *models.User, body interface{}, out interface{}) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(*as))
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	if out != nil && w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code
}

func (a *apiClient) webhook(evt payment.StubWebhook, sign bool) (int, string) {
	a.t.Helper()
	payload, _ := json.Marshal(evt)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(payload))
	if sign {
		req.Header.Set(a.cfg.Payment.SignatureHeader, payment.SignPayload(testWebhookSecret, payload))
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w.Code, w.Body.String()
}

func setup(t *testing.T) (*apiClient, *testutil.Fixture) {
	t.Helper()
	db := testutil.OpenDB(t)
	fx := testutil.Seed(t, db)
	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test"},
		JWT:    config.JWTConfig{AccessSecret: "test-secret", AccessExpiry: time.Hour, Issuer: "hireloop"},
		Payment: config.PaymentConfig{
			WebhookSecret:   testWebhookSecret,
			SignatureHeader: "X-Signature",
			SuccessURL:      "https://app.example/contracts/{contract_id}",
			CancelURL:       "https://app.example/contracts/{contract_id}",
		},
		Escrow: config.EscrowConfig{PlatformFeePercent: 10, DefaultCurrency: "USD"},
		Redis:  config.RedisConfig{RequestsPerMin: 10000},
	}
	hub := ws.NewHub()
	notifier := service.NewNotificationService(repository.NewNotificationRepository(db), repository.NewUserRepository(db), nil, hub)
	engine := Setup(cfg, db, Deps{
		Gateway:  payment.NewStubGateway(testWebhookSecret, ""),
		Notifier: notifier,
		Hub:      hub,
	})
	return &apiClient{t: t, engine: engine, cfg: cfg, db: db}, fx
}

type contractBody struct {
	Contract models.Contract `json:"contract"`
}

func TestEscrowOverHTTP(t *testing.T) {
	api, fx := setup(t)

	var created contractBody
	code := api.do(http.MethodPost, "/api/v1/contracts", &fx.Owner, map[string]interface{}{
		"target_type":      domain.TargetFreelancer,
		"payee_profile_id": fx.FreelancerProf.ID,
		"title":            "Mobile app",
		"amount":           1000,
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}
	id := created.Contract.ID
	base := fmt.Sprintf("/api/v1/contracts/%d", id)

	if code := api.do(http.MethodPost, "/api/v1/contracts", &fx.Freelancer, map[string]interface{}{
		"target_type": domain.TargetFreelancer, "payee_profile_id": fx.FreelancerProf.ID, "title": "x", "amount": 1,
	}, nil); code != http.StatusForbidden {
		t.Fatalf("payee create status = %d, want 403", code)
	}

	var checkout struct {
		SessionID string `json:"session_id"`
		Fees      struct {
			Total int64 `json:"total"`
		} `json:"fees"`
	}
	if code := api.do(http.MethodPost, base+"/checkout", &fx.Owner, nil, &checkout); code != http.StatusOK {
		t.Fatalf("checkout status = %d", code)
	}
	if checkout.Fees.Total != 110000 || checkout.SessionID == "" {
		t.Fatalf("unexpected checkout %+v", checkout)
	}

	evt := payment.StubWebhook{ID: "evt_1", Type: payment.EventCheckoutCompleted, ContractID: id, CheckoutSessionID: checkout.SessionID, ChargeRef: "pi_http"}
	if code, _ := api.webhook(evt, false); code != http.StatusBadRequest {
		t.Fatalf("unsigned webhook status = %d, want 400", code)
	}
	for i := 0; i < 2; i++ {
		code, body := api.webhook(evt, true)
		if code != http.StatusOK || body != `{"received":true}` {
			t.Fatalf("webhook #%d = %d %s", i+1, code, body)
		}
	}
	conflicting := evt
	conflicting.ID, conflicting.ChargeRef = "evt_2", "pi_other"
	if code, _ := api.webhook(conflicting, true); code != http.StatusOK {
		t.Fatalf("conflicting webhook status = %d, want 200", code)
	}
	ignored := payment.StubWebhook{ID: "evt_3", Type: "charge.updated"}
	if code, _ := api.webhook(ignored, true); code != http.StatusOK {
		t.Fatalf("ignored webhook status = %d", code)
	}

	var got contractBody
	if code := api.do(http.MethodGet, base, &fx.Freelancer, nil, &got); code != http.StatusOK {
		t.Fatalf("payee get status = %d", code)
	}
	if got.Contract.PaymentStatus != domain.PaymentHeld || got.Contract.PaymentIntentID != "pi_http" {
		t.Fatalf("contract after webhooks = %s/%s", got.Contract.PaymentStatus, got.Contract.PaymentIntentID)
	}
	if code := api.do(http.MethodGet, base, &fx.Stranger, nil, nil); code != http.StatusForbidden {
		t.Fatalf("stranger get status = %d, want 403", code)
	}

	if code := api.do(http.MethodPost, base+"/request-release", &fx.Freelancer, nil, nil); code != http.StatusOK {
		t.Fatalf("request release status = %d", code)
	}
	if code := api.do(http.MethodPost, base+"/release", &fx.Freelancer, nil, nil); code != http.StatusForbidden {
		t.Fatalf("payee release status = %d, want 403", code)
	}
	var released contractBody
	if code := api.do(http.MethodPost, base+"/release", &fx.Owner, nil, &released); code != http.StatusOK {
		t.Fatalf("release status = %d", code)
	}
	if released.Contract.PaymentStatus != domain.PaymentReleased || released.Contract.PayeeRequestedRelease {
		t.Fatalf("unexpected released contract %+v", released.Contract)
	}
	if code := api.do(http.MethodPost, base+"/release", &fx.Owner, nil, nil); code != http.StatusConflict {
		t.Fatalf("second release status = %d, want 409", code)
	}
	if code := api.do(http.MethodPost, "/api/v1/admin/contracts/"+fmt.Sprint(id)+"/refund", &fx.Owner, nil, nil); code != http.StatusForbidden {
		t.Fatalf("owner refund status = %d, want 403", code)
	}
	if code := api.do(http.MethodPost, "/api/v1/admin/contracts/"+fmt.Sprint(id)+"/refund", &fx.Admin, nil, nil); code != http.StatusConflict {
		t.Fatalf("refund after release status = %d, want 409", code)
	}

	var trail struct {
		Events []models.ContractAuditEvent `json:"events"`
	}
	if code := api.do(http.MethodGet, base+"/audit", &fx.Owner, nil, &trail); code != http.StatusOK {
		t.Fatalf("audit status = %d", code)
	}
	held := 0
	for _, e := range trail.Events {
		if e.EventType == domain.EventPaymentHeld {
			held++
		}
	}
	if held != 1 {
		t.Fatalf("payment_held audit events = %d, want 1", held)
	}

	var inbox struct {
		Notifications []models.Notification `json:"notifications"`
		Unread        int64                 `json:"unread"`
	}
	if code := api.do(http.MethodGet, "/api/v1/me/notifications", &fx.Freelancer, nil, &inbox); code != http.StatusOK {
		t.Fatalf("notifications status = %d", code)
	}
	if len(inbox.Notifications) == 0 || inbox.Unread != int64(len(inbox.Notifications)) {
		t.Fatalf("unexpected inbox %+v", inbox)
	}
}

func TestErrorStatuses(t *testing.T) {
	api, fx := setup(t)

	if code := api.do(http.MethodGet, "/api/v1/contracts/999", &fx.Owner, nil, nil); code != http.StatusNotFound {
		t.Fatalf("missing contract status = %d, want 404", code)
	}
	if code := api.do(http.MethodGet, "/api/v1/contracts/abc", &fx.Owner, nil, nil); code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d, want 400", code)
	}
	if code := api.do(http.MethodGet, "/api/v1/contracts", nil, nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous list status = %d, want 401", code)
	}

	var created contractBody
	api.do(http.MethodPost, "/api/v1/contracts", &fx.Owner, map[string]interface{}{
		"target_type":      domain.TargetServiceProvider,
		"payee_profile_id": fx.ProviderProf.ID,
		"title":            "Repairs",
		"amount":           50,
	}, &created)
	id := created.Contract.ID
	base := fmt.Sprintf("/api/v1/contracts/%d", id)

	if code := api.do(http.MethodPost, "/api/v1/admin/contracts/"+fmt.Sprint(id)+"/refund", &fx.Admin, nil, nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("refund unpaid status = %d, want 422", code)
	}
	if code, _ := api.webhook(payment.StubWebhook{ID: "evt_p", Type: payment.EventCheckoutCompleted, ContractID: id, ChargeRef: "pi_p"}, true); code != http.StatusOK {
		t.Fatalf("webhook status = %d", code)
	}
	if code := api.do(http.MethodPost, base+"/release", &fx.Owner, nil, nil); code != http.StatusUnprocessableEntity {
		t.Fatalf("release to provider without payout status = %d, want 422", code)
	}
	if code := api.do(http.MethodPost, base+"/dispute", &fx.Owner, map[string]string{"reason": "late"}, nil); code != http.StatusOK {
		t.Fatalf("dispute status = %d", code)
	}
	if code := api.do(http.MethodPost, base+"/request-release", &fx.Provider, nil, nil); code != http.StatusConflict {
		t.Fatalf("request release while disputed status = %d, want 409", code)
	}
	var resolved contractBody
	if code := api.do(http.MethodPost, "/api/v1/admin/contracts/"+fmt.Sprint(id)+"/resolve-dispute", &fx.Admin, map[string]string{"note": "ok"}, &resolved); code != http.StatusOK {
		t.Fatalf("resolve status = %d", code)
	}
	if resolved.Contract.PaymentStatus != domain.PaymentHeld {
		t.Fatalf("status after resolve = %s", resolved.Contract.PaymentStatus)
	}

	var quote struct {
		Fees struct {
			Base, Fee, Total int64
		} `json:"fees"`
	}
	if code := api.do(http.MethodGet, "/api/v1/fees/quote?amount=5000", nil, nil, &quote); code != http.StatusOK {
		t.Fatalf("quote status = %d", code)
	}
	if quote.Fees.Base != 500000 || quote.Fees.Fee != 50000 || quote.Fees.Total != 550000 {
		t.Fatalf("quote = %+v", quote.Fees)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	api.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("escrow_transitions_total")) {
		t.Fatalf("metrics status = %d", w.Code)
	}
}

func TestAmountsOutOfRange(t *testing.T) {
	api, fx := setup(t)

	if code := api.do(http.MethodGet, "/api/v1/fees/quote?amount=1e17", nil, nil, nil); code != http.StatusBadRequest {
		t.Fatalf("overflowing quote status = %d, want 400", code)
	}
	if code := api.do(http.MethodPost, "/api/v1/contracts", &fx.Owner, map[string]interface{}{
		"target_type":      domain.TargetFreelancer,
		"payee_profile_id": fx.FreelancerProf.ID,
		"title":            "Too big",
		"amount":           9e16,
	}, nil); code != http.StatusBadRequest {
		t.Fatalf("overflowing create status = %d, want 400", code)
	}

	// a stored base whose total no longer fits is still readable, without fees
	c := fx.FreelancerContract(math.MaxInt64 - 10)
	if err := repository.NewContractRepository(api.db).Create(context.Background(), c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	var got map[string]json.RawMessage
	if code := api.do(http.MethodGet, fmt.Sprintf("/api/v1/contracts/%d", c.ID), &fx.Owner, nil, &got); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if _, ok := got["fees"]; ok {
		t.Fatalf("expected no fee breakdown, got %s", got["fees"])
	}
	if code := api.do(http.MethodPost, fmt.Sprintf("/api/v1/contracts/%d/checkout", c.ID), &fx.Owner, nil, nil); code != http.StatusBadRequest {
		t.Fatalf("overflowing checkout status = %d, want 400", code)
	}
}
