// README: Handler tests: auth wiring, request validation, and domain error mapping.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"leafline/internal/http/handlers"
	httpmiddleware "leafline/internal/http/middleware"
	"leafline/internal/infra"
	"leafline/internal/modules/driver"
	"leafline/internal/modules/order"
	"leafline/internal/orchestrator"
	"leafline/internal/types"
)

// fakeOrchestrator returns canned results per command.
type fakeOrchestrator struct {
	order *order.Order
	err   error
}

func (f *fakeOrchestrator) PlaceOrder(context.Context, types.Actor, orchestrator.PlaceOrderCommand) (*order.Order, error) {
	return f.order, f.err
}

func (f *fakeOrchestrator) ListOrders(context.Context, types.Actor, order.Status, int, int) ([]*order.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*order.Order{f.order}, nil
}

func (f *fakeOrchestrator) GetOrder(context.Context, types.Actor, types.ID) (*order.Order, error) {
	return f.order, f.err
}

func (f *fakeOrchestrator) UpdateStatus(context.Context, types.Actor, types.ID, order.Status, string) (*order.Order, error) {
	return f.order, f.err
}

func (f *fakeOrchestrator) CancelOrder(context.Context, types.Actor, types.ID, string) error {
	return f.err
}

func (f *fakeOrchestrator) AssignDriver(context.Context, types.Actor, types.ID, types.ID) (*order.Order, error) {
	return f.order, f.err
}

func (f *fakeOrchestrator) AcceptOrder(context.Context, types.Actor, types.ID) (*order.Order, error) {
	return f.order, f.err
}

func (f *fakeOrchestrator) ReportDriverLocation(context.Context, types.Actor, driver.Location) error {
	return f.err
}

func (f *fakeOrchestrator) SetDriverOnline(context.Context, types.Actor, bool, *types.Point) error {
	return f.err
}

// stubTokenVerifier is a test double for infra.TokenVerifier.
type stubTokenVerifier struct {
	token *infra.IdentityToken
	err   error
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.IdentityToken, error) {
	return s.token, s.err
}

func makeVerifier(uid, role string) *stubTokenVerifier {
	claims := map[string]interface{}{}
	if role != "" {
		claims["role"] = role
	}
	return &stubTokenVerifier{token: &infra.IdentityToken{UID: uid, Claims: claims}}
}

func buildTestRouter(oc handlers.Orchestrator, verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(httpmiddleware.Auth(verifier))
	h := handlers.NewOrderHandler(oc)
	r.POST("/api/orders", h.Place)
	r.GET("/api/orders/:id", h.Get)
	r.PATCH("/api/orders/:id/status", h.UpdateStatus)
	r.POST("/api/orders/:id/cancel", h.Cancel)
	return r
}

func doRequest(r *gin.Engine, method, path string, body interface{}, authHeader string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleOrder() *order.Order {
	return &order.Order{
		ID:         "o1",
		Number:     "LL-20260831-ABCDEF",
		CustomerID: "c1",
		Status:     order.StatusPending,
		Subtotal:   types.Cents(3500),
		Tax:        types.Cents(306),
		Total:      types.Cents(4405),
	}
}

func TestPlace_Unauthenticated(t *testing.T) {
	r := buildTestRouter(&fakeOrchestrator{}, &stubTokenVerifier{err: http.ErrNoCookie})
	w := doRequest(r, http.MethodPost, "/api/orders", map[string]any{
		"items":   []map[string]any{{"product_id": "p1", "quantity": 1}},
		"address": "1 Elm St",
	}, "Bearer badtoken")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestPlace_Created(t *testing.T) {
	r := buildTestRouter(&fakeOrchestrator{order: sampleOrder()}, makeVerifier("c1", "customer"))
	w := doRequest(r, http.MethodPost, "/api/orders", map[string]any{
		"items":   []map[string]any{{"product_id": "p1", "quantity": 1}},
		"address": "1 Elm St",
	}, "Bearer tok")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["number"] != "LL-20260831-ABCDEF" {
		t.Errorf("number = %v", resp["number"])
	}
}

func TestPlace_MissingFields(t *testing.T) {
	r := buildTestRouter(&fakeOrchestrator{order: sampleOrder()}, makeVerifier("c1", "customer"))
	w := doRequest(r, http.MethodPost, "/api/orders", map[string]any{"address": "1 Elm St"}, "Bearer tok")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestGet_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"forbidden", order.ErrForbidden, http.StatusForbidden},
		{"not found", order.ErrNotFound, http.StatusNotFound},
		{"internal", orchestrator.ErrInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := buildTestRouter(&fakeOrchestrator{err: tc.err}, makeVerifier("c1", "customer"))
		w := doRequest(r, http.MethodGet, "/api/orders/o1", nil, "Bearer tok")
		if w.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
		}
	}
}

func TestUpdateStatus_InvalidTransitionConflict(t *testing.T) {
	r := buildTestRouter(&fakeOrchestrator{err: order.ErrInvalidTransition}, makeVerifier("d1", "driver"))
	w := doRequest(r, http.MethodPatch, "/api/orders/o1/status", map[string]any{"status": "delivered"}, "Bearer tok")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestUpdateStatus_MissingStatus(t *testing.T) {
	r := buildTestRouter(&fakeOrchestrator{order: sampleOrder()}, makeVerifier("d1", "driver"))
	w := doRequest(r, http.MethodPatch, "/api/orders/o1/status", map[string]any{}, "Bearer tok")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCancel_OK(t *testing.T) {
	r := buildTestRouter(&fakeOrchestrator{}, makeVerifier("c1", "customer"))
	w := doRequest(r, http.MethodPost, "/api/orders/o1/cancel", map[string]any{"reason": "changed plans"}, "Bearer tok")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAccept_AlreadyAssignedConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(httpmiddleware.Auth(makeVerifier("d1", "driver")))
	h := handlers.NewDriverHandler(&fakeOrchestrator{err: order.ErrAlreadyAssigned}, nil, nil)
	r.POST("/api/orders/:id/accept", h.Accept)

	w := doRequest(r, http.MethodPost, "/api/orders/o1/accept", nil, "Bearer tok")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}
