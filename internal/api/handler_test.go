package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is a minimal in-memory service.Store for routing tests; the
// full storage semantics are covered in the service and store packages.
type memStore struct {
	products    map[int64]models.Product
	sales       map[string]*models.Sale
	items       map[int64][]models.SaleItem
	scanEnabled bool
	nextID      int64
}

func newMemStore() *memStore {
	return &memStore{
		products:    map[int64]models.Product{1: {ID: 1, Price: 1000, Active: true}},
		sales:       make(map[string]*models.Sale),
		items:       make(map[int64][]models.SaleItem),
		scanEnabled: true,
	}
}

func (m *memStore) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) GetScanEnabled(ctx context.Context) (bool, error) {
	return m.scanEnabled, nil
}

func (m *memStore) CreateSaleWithItems(ctx context.Context, sale *models.Sale, items []models.SaleItem) error {
	if existing, ok := m.sales[sale.PublicCode]; ok && existing.Status == models.SaleStatusPending {
		return store.ErrCodeTaken
	}
	m.nextID++
	sale.ID = m.nextID
	sale.CreatedAt = time.Now()
	stored := *sale
	m.sales[sale.PublicCode] = &stored
	copied := make([]models.SaleItem, len(items))
	copy(copied, items)
	for i := range copied {
		copied[i].SaleID = sale.ID
	}
	m.items[sale.ID] = copied
	return nil
}

func (m *memStore) GetSaleByCode(ctx context.Context, code string) (*models.Sale, error) {
	sale, ok := m.sales[code]
	if !ok {
		return nil, store.ErrSaleNotFound
	}
	out := *sale
	return &out, nil
}

func (m *memStore) GetSaleItems(ctx context.Context, saleID int64) ([]models.SaleItem, error) {
	return m.items[saleID], nil
}

func (m *memStore) ConfirmSale(ctx context.Context, code string, staffID int64) (*models.Sale, error) {
	sale, ok := m.sales[code]
	if !ok {
		return nil, store.ErrSaleNotFound
	}
	if sale.Source != models.SaleSourceCustomerScan {
		return nil, store.ErrNotScanSource
	}
	if sale.Status != models.SaleStatusPending {
		return nil, store.ErrSaleFinalized
	}
	sale.Status = models.SaleStatusPaid
	sale.StaffID.Int64 = staffID
	sale.StaffID.Valid = true
	out := *sale
	return &out, nil
}

type noopCache struct{}

func (noopCache) GetSale(ctx context.Context, code string) (*service.SaleView, error) {
	return nil, nil
}
func (noopCache) SetSale(ctx context.Context, code string, view *service.SaleView) error {
	return nil
}
func (noopCache) InvalidateSale(ctx context.Context, code string) error { return nil }
func (noopCache) GetScanEnabled(ctx context.Context) (bool, bool, error) {
	return false, false, nil
}
func (noopCache) SetScanEnabled(ctx context.Context, enabled bool) error { return nil }

type noopPublisher struct{}

func (noopPublisher) PublishSaleCreated(ctx context.Context, e *models.SaleCreatedEvent) error {
	return nil
}
func (noopPublisher) PublishSalePaid(ctx context.Context, e *models.SalePaidEvent) error { return nil }
func (noopPublisher) PublishSaleCancelled(ctx context.Context, e *models.SaleCancelledEvent) error {
	return nil
}

func setupRouter(t *testing.T, ms *memStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := service.NewCheckoutService(ms, noopCache{}, noopPublisher{}, 6)
	r := gin.New()
	NewHandler(svc).SetupRoutes(r)
	return r
}

func httpDo(r *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validCart() service.CreateSaleRequest {
	return service.CreateSaleRequest{
		PaymentMethod: models.PaymentMethodCash,
		Items:         []service.SaleItemRequest{{ProductID: 1, Qty: 2}},
	}
}

func TestScanCheckoutFlow(t *testing.T) {
	r := setupRouter(t, newMemStore())

	w := httpDo(r, "POST", "/api/v1/checkout", validCart(), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var created service.CreateSaleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Len(t, created.PublicCode, 6)
	assert.Equal(t, models.SaleStatusPending, created.Status)
	assert.Equal(t, int64(2000), created.TotalAmount)

	// Customer polls the code.
	w = httpDo(r, "GET", "/api/v1/sales/"+created.PublicCode, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var view service.SaleView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.False(t, view.Paid)
	require.Len(t, view.Items, 1)
	assert.Equal(t, int64(2000), view.Items[0].LineTotal)

	// Staff redeems the code.
	staff := map[string]string{"X-Staff-ID": "42"}
	w = httpDo(r, "POST", "/api/v1/sales/"+created.PublicCode+"/confirm", nil, staff)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.True(t, view.Paid)
	assert.Equal(t, models.SaleStatusPaid, view.Status)

	// Double-tap on confirm conflicts.
	w = httpDo(r, "POST", "/api/v1/sales/"+created.PublicCode+"/confirm", nil, staff)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestConfirmRequiresStaffIdentity(t *testing.T) {
	r := setupRouter(t, newMemStore())

	w := httpDo(r, "POST", "/api/v1/sales/123456/confirm", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httpDo(r, "POST", "/api/v1/sales/123456/confirm", nil, map[string]string{"X-Staff-ID": "abc"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestManualSaleIsCreatedPaid(t *testing.T) {
	r := setupRouter(t, newMemStore())

	w := httpDo(r, "POST", "/api/v1/sales", validCart(), map[string]string{"X-Staff-ID": "7"})
	require.Equal(t, http.StatusCreated, w.Code)

	var created service.CreateSaleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, models.SaleStatusPaid, created.Status)
}

func TestScanCheckoutBlockedWhenDisabled(t *testing.T) {
	ms := newMemStore()
	ms.scanEnabled = false
	r := setupRouter(t, ms)

	w := httpDo(r, "POST", "/api/v1/checkout", validCart(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Manual staff entry keeps working.
	w = httpDo(r, "POST", "/api/v1/sales", validCart(), map[string]string{"X-Staff-ID": "7"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestLookupUnknownCodeIs404(t *testing.T) {
	r := setupRouter(t, newMemStore())

	w := httpDo(r, "GET", "/api/v1/sales/0000", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckoutRejectsMalformedBody(t *testing.T) {
	r := setupRouter(t, newMemStore())

	w := httpDo(r, "POST", "/api/v1/checkout", map[string]string{"payment_method": "CASH"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutRejectsUnknownProduct(t *testing.T) {
	r := setupRouter(t, newMemStore())

	cart := service.CreateSaleRequest{
		PaymentMethod: models.PaymentMethodCash,
		Items:         []service.SaleItemRequest{{ProductID: 99, Qty: 1}},
	}
	w := httpDo(r, "POST", "/api/v1/checkout", cart, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
