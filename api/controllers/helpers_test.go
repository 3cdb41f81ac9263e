package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/etherloops/ether-backend/api/middleware"
	"github.com/etherloops/ether-backend/internal/checkout"
	"github.com/etherloops/ether-backend/internal/orders"
	"github.com/etherloops/ether-backend/internal/shopper"
	"github.com/etherloops/ether-backend/pkg/auth"
	"github.com/etherloops/ether-backend/pkg/db/models"
	"github.com/etherloops/ether-backend/pkg/enums"
	pkgerrors "github.com/etherloops/ether-backend/pkg/errors"
)

type recordingOrders struct {
	created []orders.CreateOrderInput
}

func (o *recordingOrders) CreateOrder(_ context.Context, in orders.CreateOrderInput) (*models.Order, error) {
	o.created = append(o.created, in)
	return &models.Order{ID: uuid.New(), BuyerID: in.BuyerID, TotalAmount: in.Total, Status: enums.OrderStatusProcessing}, nil
}

func (o *recordingOrders) CompleteOrder(_ context.Context, id uuid.UUID, ref string) (*models.Order, error) {
	return &models.Order{ID: id, Status: enums.OrderStatusCompleted, PaymentIntentID: &ref}, nil
}

func (o *recordingOrders) FailOrder(context.Context, uuid.UUID, string) error { return nil }

type stubProducts struct {
	rows map[uuid.UUID]models.Product
}

func newStubProducts(rows ...models.Product) *stubProducts {
	s := &stubProducts{rows: map[uuid.UUID]models.Product{}}
	for _, p := range rows {
		s.rows[p.ID] = p
	}
	return s
}

func (s *stubProducts) GetPurchasable(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := s.rows[id]
	if !ok || p.Status != enums.ProductStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return &p, nil
}

func (s *stubProducts) Get(_ context.Context, id uuid.UUID, viewer auth.Identity) (*models.Product, error) {
	p, ok := s.rows[id]
	if !ok || (p.Status != enums.ProductStatusApproved && !viewer.IsAdmin()) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return &p, nil
}

func (s *stubProducts) ListByVendor(_ context.Context, vendorID uuid.UUID) ([]models.Product, error) {
	var out []models.Product
	for _, p := range s.rows {
		if p.VendorID == vendorID {
			out = append(out, p)
		}
	}
	return out, nil
}

func loop(title, price string, status enums.ProductStatus) models.Product {
	return models.Product{
		ID:         uuid.New(),
		VendorID:   uuid.New(),
		Title:      title,
		Price:      decimal.RequireFromString(price),
		Resolution: "4K",
		FPS:        60,
		Codec:      "ProRes",
		Tags:       []string{"abstract"},
		Status:     status,
	}
}

func newSessions(t *testing.T, creator checkout.OrderCreator) *shopper.Manager {
	t.Helper()
	m, err := shopper.NewManager(shopper.ManagerParams{
		Processor: checkout.NewSimulatedProcessor(0),
		Orders:    creator,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

// request builds a request carrying identity and chi URL params.
func request(method, target, body string, identity auth.Identity, params map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := req.Context()
	if !identity.IsZero() {
		ctx = middleware.WithIdentity(ctx, identity)
	}
	if len(params) > 0 {
		rc := chi.NewRouteContext()
		for k, v := range params {
			rc.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rc)
	}
	return req.WithContext(ctx)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data any `json:"data"`
	}{Data: dest}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return envelope.Error.Code
}

func buyer() auth.Identity {
	return auth.NewIdentity(uuid.New(), enums.UserRoleUser)
}
