package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flexyframe/artbot/core/database"
	"github.com/flexyframe/artbot/internal/catalog"
	"github.com/flexyframe/artbot/internal/domain"
	"github.com/flexyframe/artbot/internal/payment"
	"github.com/flexyframe/artbot/internal/repository"
	"github.com/flexyframe/artbot/internal/service"
)

type fakeOrders struct {
	orders    map[int64]domain.Order
	placed    []service.PlaceRequest
	paidCalls int
	events    []payment.Event
	applyErr  error
}

func (f *fakeOrders) Get(_ context.Context, id int64) (domain.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeOrders) Place(_ context.Context, req service.PlaceRequest) (service.Checkout, error) {
	if req.PaintingID != 1 {
		return service.Checkout{}, service.ErrUnknownPainting
	}
	f.placed = append(f.placed, req)
	return service.Checkout{Order: domain.Order{ID: 10, Number: 3, Price: 4200, Token: "tok"}, Manual: true}, nil
}

func (f *fakeOrders) ConfirmPaid(_ context.Context, id int64) (bool, error) {
	o, ok := f.orders[id]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	f.paidCalls++
	if o.Status == domain.StatusPaid {
		return false, nil
	}
	o.Status = domain.StatusPaid
	f.orders[id] = o
	return true, nil
}

func (f *fakeOrders) ApplyGatewayEvent(_ context.Context, ev payment.Event) (service.EventOutcome, error) {
	f.events = append(f.events, ev)
	if f.applyErr != nil {
		return service.EventOutcome{}, f.applyErr
	}
	return service.EventOutcome{OrderID: ev.OrderID, Changed: true}, nil
}

func (f *fakeOrders) GatewayConfigured() bool { return false }

type staticCatalog []catalog.Painting

func (c staticCatalog) All() []catalog.Painting { return c }

func newTestServer(t *testing.T, orders OrderService) http.Handler {
	t.Helper()
	allow, err := payment.NewAllowlist([]string{"185.71.76.0/27", "77.75.156.11"}, false)
	require.NoError(t, err)
	cat := staticCatalog{{ID: 1, Title: "Закат", Category: "Пейзаж", Price: 4200, File: "sunset.jpg"}}
	return New(orders, cat, nil, allow, Options{SiteURL: "https://shop.example", BotUsername: "artbot"}).Routes()
}

func do(t *testing.T, h http.Handler, method, path, body, remote string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if remote != "" {
		req.RemoteAddr = remote
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestGetOrder(t *testing.T) {
	orders := &fakeOrders{orders: map[int64]domain.Order{7: {ID: 7, Status: domain.StatusNew, Price: 4200, PaintingTitle: "Закат"}}}
	h := newTestServer(t, orders)

	rec := do(t, h, http.MethodGet, "/api/order/7", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 7, body["id"])
	assert.EqualValues(t, 7, body["order_number"], "legacy rows display their id")
	assert.Equal(t, "new", body["status"])

	rec = do(t, h, http.MethodGet, "/api/order/7/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new", decode(t, rec)["status"])

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/order/8", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/order/abc", "", "").Code)
}

func TestCreateOrderValidation(t *testing.T) {
	orders := &fakeOrders{}
	h := newTestServer(t, orders)

	rec := do(t, h, http.MethodPost, "/api/order/create", `{"user_id":5,"painting_id":1,"painting_title":"Закат"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decode(t, rec)["code"])
	assert.Empty(t, orders.placed)

	rec = do(t, h, http.MethodPost, "/api/order/create", `not json`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/order/create", `{"user_id":5,"painting_id":2,"painting_title":"X","price":1}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/order/create", `{"user_id":5,"painting_id":1,"painting_title":"Закат","price":1}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 3, body["order_number"])
	assert.Equal(t, "tok", body["token"])
	require.Len(t, orders.placed, 1)
	assert.Equal(t, int64(5), orders.placed[0].UserID)
}

func TestMarkPaid(t *testing.T) {
	orders := &fakeOrders{orders: map[int64]domain.Order{7: {ID: 7, Status: domain.StatusNew}}}
	h := newTestServer(t, orders)

	rec := do(t, h, http.MethodPost, "/api/order/7/paid", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["changed"])

	rec = do(t, h, http.MethodPost, "/api/order/7/paid", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["changed"])

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/order/9/paid", "", "").Code)
}

func TestWebhookOrigin(t *testing.T) {
	orders := &fakeOrders{}
	h := newTestServer(t, orders)
	body := `{"type":"notification","event":"payment.succeeded","object":{"id":"p1","status":"succeeded","metadata":{"order_id":"7"}}}`

	rec := do(t, h, http.MethodPost, "/api/webhook/yookassa", body, "203.0.113.5:4000")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, orders.events, "untrusted origin must not reach the service")

	rec = do(t, h, http.MethodPost, "/api/webhook/yookassa", body, "185.71.76.10:4000")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])
	require.Len(t, orders.events, 1)
	assert.Equal(t, payment.StateSucceeded, orders.events[0].State)
	assert.Equal(t, int64(7), orders.events[0].OrderID)
}

func TestWebhookForwardedHeaderIgnoredByDefault(t *testing.T) {
	orders := &fakeOrders{}
	h := newTestServer(t, orders)
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/yookassa", strings.NewReader(`{"event":"payment.succeeded","object":{"id":"p1"}}`))
	req.RemoteAddr = "203.0.113.5:4000"
	req.Header.Set("X-Forwarded-For", "77.75.156.11")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookErrors(t *testing.T) {
	orders := &fakeOrders{}
	h := newTestServer(t, orders)

	rec := do(t, h, http.MethodPost, "/api/webhook/yookassa", `{"object":{}}`, "77.75.156.11:443")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	orders.applyErr = errors.New("disk I/O error")
	rec = do(t, h, http.MethodPost, "/api/webhook/yookassa", `{"event":"payment.canceled","object":{"id":"p1"}}`, "77.75.156.11:443")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk")
}

func TestPaintingsStatusHealthAndCORS(t *testing.T) {
	h := newTestServer(t, &fakeOrders{})

	rec := do(t, h, http.MethodGet, "/api/paintings", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var paintings []catalog.Painting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paintings))
	require.Len(t, paintings, 1)
	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = do(t, h, http.MethodGet, "/api/bot-status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode(t, rec)
	assert.Equal(t, true, st["online"])
	assert.Equal(t, "@artbot", st["bot_username"])
	assert.Equal(t, "https://shop.example/index.html", st["miniapp_url"])
	assert.Equal(t, false, st["payment_gateway"])
	assert.Equal(t, float64(0), st["notify_failed"])

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "", "").Code)

	req := httptest.NewRequest(http.MethodOptions, "/api/order/create", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	pre := httptest.NewRecorder()
	h.ServeHTTP(pre, req)
	assert.Equal(t, http.StatusNoContent, pre.Code)
}

func TestCreateOrderMissingPriceLeavesStorageUntouched(t *testing.T) {
	migrations, err := filepath.Abs("../../migrations")
	require.NoError(t, err)
	cfg := database.Config{Path: filepath.Join(t.TempDir(), "api.db"), MigrationsDir: migrations}
	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.RunMigrations(db, cfg))

	cat, err := catalog.New([]catalog.Painting{{ID: 1, Title: "Закат", Category: "Пейзаж", Price: 4200, File: "sunset.jpg"}})
	require.NoError(t, err)
	store := repository.New(db)
	svc := service.New(store, nil, nil, cat, service.Options{})
	allow, err := payment.NewAllowlist(payment.DefaultWebhookCIDRs, false)
	require.NoError(t, err)
	h := New(svc, cat, store, allow, Options{}).Routes()

	ctx := context.Background()
	before, err := store.CounterValue(ctx)
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, "/api/order/create", `{"user_id":5,"painting_id":1,"painting_title":"Закат"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	after, err := store.CounterValue(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	recent, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)

	rec = do(t, h, http.MethodPost, "/api/order/create", `{"user_id":5,"painting_id":1,"painting_title":"Закат","price":1}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, before+1, body["order_number"])
	assert.Equal(t, true, body["manual_payment"])

	recent, err = store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, int64(4200), recent[0].Price, "catalog price wins")
}

func TestRequestIDFromCallerIsEchoed(t *testing.T) {
	h := newTestServer(t, &fakeOrders{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "shop-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "shop-42", rec.Header().Get("X-Request-Id"))
}
