package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"order-gateway/internal/auth"
	"order-gateway/internal/models"
	"order-gateway/internal/redisclient"
	"order-gateway/internal/service"
	"order-gateway/internal/sms"
	"order-gateway/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPhone = "+71234567890"

// memStore backs every service with maps. Catalog methods the tests never
// reach fall through to the nil embedded interface.
type memStore struct {
	service.CatalogRepository

	mu        sync.Mutex
	users     map[string]*models.User
	sessions  []models.ActiveSession
	shops     map[int64]*models.Shop
	orders    map[int64]*models.Order
	addresses map[uuid.UUID][]models.Address
	cards     map[uuid.UUID][]models.Card
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[string]*models.User{},
		shops:     map[int64]*models.Shop{1: {ID: 1, Name: "Shop", IsActive: true}},
		orders:    map[int64]*models.Order{},
		addresses: map[uuid.UUID][]models.Address{},
		cards:     map[uuid.UUID][]models.Card{},
	}
}

func (m *memStore) GetOrCreateUserByPhone(_ context.Context, phone string) (*models.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[phone]; ok {
		return u, false, nil
	}
	u := &models.User{ID: uuid.New(), Phone: phone}
	m.users[phone] = u
	return u, true, nil
}

func (m *memStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) CreateSession(_ context.Context, session *models.ActiveSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session.ID = int64(len(m.sessions) + 1)
	m.sessions = append(m.sessions, *session)
	return nil
}

func (m *memStore) ListSessions(_ context.Context, userID uuid.UUID, nowUnix int64) ([]models.ActiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ActiveSession
	for _, s := range m.sessions {
		if s.UserID == userID && s.RefreshExpiresAt > nowUnix {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) findSession(match func(models.ActiveSession) bool) (*models.ActiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if match(s) {
			cp := s
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetSessionByRefreshID(_ context.Context, userID uuid.UUID, refreshID string) (*models.ActiveSession, error) {
	return m.findSession(func(s models.ActiveSession) bool { return s.UserID == userID && s.RefreshID == refreshID })
}

func (m *memStore) GetSessionByAccessID(_ context.Context, userID uuid.UUID, accessID string) (*models.ActiveSession, error) {
	return m.findSession(func(s models.ActiveSession) bool { return s.UserID == userID && s.AccessID == accessID })
}

func (m *memStore) GetShop(_ context.Context, id int64) (*models.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.shops[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetOrCreateOrderShell(_ context.Context, order *models.Order) (*models.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.UserID == order.UserID && o.Number == order.Number {
			cp := *o
			return &cp, false, nil
		}
	}
	cp := *order
	cp.ID = int64(len(m.orders) + 1)
	cp.Status = models.OrderStatusNew
	m.orders[cp.ID] = &cp
	out := cp
	return &out, true, nil
}

func (m *memStore) GetOrder(_ context.Context, userID uuid.UUID, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok && o.UserID == userID {
		cp := *o
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListOrders(_ context.Context, f store.OrderFilter) ([]models.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.UserID == f.UserID {
			out = append(out, *o)
		}
	}
	return out, len(out), nil
}

func (m *memStore) CountUserOrders(ctx context.Context, userID uuid.UUID) (int, error) {
	_, n, err := m.ListOrders(ctx, store.OrderFilter{UserID: userID})
	return n, err
}

func (m *memStore) ListAddresses(_ context.Context, userID uuid.UUID) ([]models.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Address{}, m.addresses[userID]...), nil
}

func (m *memStore) CreateAddress(_ context.Context, address *models.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	address.ID = int64(len(m.addresses[address.UserID]) + 1)
	m.addresses[address.UserID] = append(m.addresses[address.UserID], *address)
	return nil
}

func (m *memStore) GetAddress(_ context.Context, userID uuid.UUID, id int64) (*models.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.addresses[userID] {
		if a.ID == id {
			cp := a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetDefaultAddress(_ context.Context, userID uuid.UUID) (*models.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.addresses[userID] {
		if a.IsDefault {
			cp := a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) CreateCard(_ context.Context, card *models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	card.ID = int64(len(m.cards[card.UserID]) + 1)
	m.cards[card.UserID] = append(m.cards[card.UserID], *card)
	return nil
}

func (m *memStore) GetCard(_ context.Context, userID uuid.UUID, id int64) (*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards[userID] {
		if c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetDefaultCard(_ context.Context, userID uuid.UUID) (*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards[userID] {
		if c.IsDefault {
			cp := c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

type recordingTasks struct {
	mu      sync.Mutex
	creates []*models.CreateOrderPayload
	cancels []*models.CancelOrderPayload
}

func (r *recordingTasks) PublishCreateOrder(_ context.Context, p *models.CreateOrderPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates = append(r.creates, p)
	return nil
}

func (r *recordingTasks) PublishSettleOrder(context.Context, *models.SettleOrderPayload) error {
	return nil
}

func (r *recordingTasks) PublishUpdateOrder(context.Context, *models.UpdateOrderPayload) error {
	return nil
}

func (r *recordingTasks) PublishCancelOrder(_ context.Context, p *models.CancelOrderPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels = append(r.cancels, p)
	return nil
}

type testServer struct {
	router *gin.Engine
	store  *memStore
	tasks  *recordingTasks
	mr     *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	client := redisclient.Wrap(rdb)

	throttle := redisclient.NewThrottleStore(client, redisclient.ThrottleLimits{
		MaxAttempts: 3,
		Window:      5 * time.Minute,
		Cooldown:    time.Minute,
	})
	tokens := auth.NewJWTService("api-test-secret", 15*time.Minute, 360*time.Hour)
	revoker := redisclient.NewRevocationStore(client, tokens.RefreshTTL())

	ms := newMemStore()
	tasks := &recordingTasks{}
	sender := sms.NewTwilioSender("", "", "", zap.NewNop())

	h := NewHandler(
		service.NewOrderService(ms, tasks),
		service.NewAuthService(throttle, revoker, ms, tokens, sender, nil, true),
		service.NewCatalogService(ms),
		Options{Debug: true, RequestTimeout: 5 * time.Second},
		ReadinessCheck{Name: "redis", Ping: client.Ping},
	)

	router := gin.New()
	h.SetupRoutes(router)

	return &testServer{router: router, store: ms, tasks: tasks, mr: mr}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// login runs the debug SMS flow and returns the issued tokens
func (s *testServer) login(t *testing.T) (string, string) {
	t.Helper()

	w := s.do(t, http.MethodPost, "/api/v1/auth/sms-send", "", gin.H{"phone": testPhone})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"phone": testPhone, "code": "111111"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	return body["access_token"].(string), body["refresh_token"].(string)
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	s.mr.Close()
	w = s.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "redis", decode(t, w)["failed"])
}

func TestLoginSetsCookiesAndReturnsTokens(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/sms-send", "", gin.H{"phone": testPhone})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"phone": testPhone, "code": "111111"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])
	assert.NotEmpty(t, body["user_id"])

	names := map[string]bool{}
	for _, c := range w.Result().Cookies() {
		names[c.Name] = c.HttpOnly
	}
	assert.True(t, names[accessCookie])
	assert.True(t, names[refreshCookie])

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"phone": testPhone, "code": "111111"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "wrong sms code", decode(t, w)["error"])
}

func TestSendCodeRejectsBadPhone(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/sms-send", "", gin.H{"phone": "71234567890"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Detail []fieldError `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Detail, 1)
	assert.Equal(t, []string{"body", "phone"}, body.Detail[0].Loc)
	assert.Equal(t, "wrong phone format", body.Detail[0].Msg)
}

func TestSendCodeCooldown(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/sms-send", "", gin.H{"phone": testPhone})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/sms-send", "", gin.H{"phone": testPhone})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "sms can be sent again in a minute", decode(t, w)["error"])
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/addresses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode(t, w)
	assert.Equal(t, "auth required", body["error"])
	assert.NotEmpty(t, body["detail"])

	w = s.do(t, http.MethodGet, "/api/v1/addresses", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, refresh := s.login(t)
	w = s.do(t, http.MethodGet, "/api/v1/addresses", refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAccessCookieAuthenticates(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.login(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/addresses", nil)
	req.AddCookie(&http.Cookie{Name: accessCookie, Value: access})
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogoutRevokesTokens(t *testing.T) {
	s := newTestServer(t)
	access, refresh := s.login(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/logout", access, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/addresses", access, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/refresh", refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRotatesTokens(t *testing.T) {
	s := newTestServer(t)
	access, refresh := s.login(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/refresh", refresh, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	newAccess := body["access_token"].(string)

	w = s.do(t, http.MethodGet, "/api/v1/addresses", access, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/addresses", newAccess, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/refresh", refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshFallsBackToCookie(t *testing.T) {
	s := newTestServer(t)
	access, refresh := s.login(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	req.AddCookie(&http.Cookie{Name: refreshCookie, Value: refresh})
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w)["access_token"])

	w = s.do(t, http.MethodPost, "/api/v1/auth/refresh", refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionsListAndDeactivate(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.login(t)

	w := s.do(t, http.MethodGet, "/internal/v1/sessions", access, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var sessions []struct {
		RefreshID string `json:"refresh_id"`
		Online    bool   `json:"online"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Online)

	w = s.do(t, http.MethodPost, "/internal/v1/sessions/deactivate", access, gin.H{"refresh_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "session not found", decode(t, w)["error"])

	w = s.do(t, http.MethodPost, "/internal/v1/sessions/deactivate", access, gin.H{"refresh_id": sessions[0].RefreshID})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/internal/v1/sessions", access, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func orderBody(number int64) gin.H {
	return gin.H{
		"number":      number,
		"order_sum":   1000,
		"total_price": 1000,
		"shop_id":     1,
		"items": []gin.H{{
			"article":     "A-1",
			"name":        "Widget",
			"price":       500,
			"quantity":    2,
			"total_price": 1000,
		}},
	}
}

func TestCreateOrderRequiresDefaults(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.login(t)

	w := s.do(t, http.MethodPost, "/api/v1/orders/create", access, orderBody(77))
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "set a default address", body["error"])
	assert.EqualValues(t, 1, body["order_id"])
	assert.Empty(t, s.tasks.creates)
}

func TestCreateOrderEnqueuesAndIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.login(t)

	w := s.do(t, http.MethodPost, "/api/v1/addresses", access, gin.H{"city": "Moscow", "address": "Tverskaya 1", "is_default": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/api/v1/cards", access, gin.H{"number": "4111111111111111", "is_default": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/orders/create", access, orderBody(77))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode(t, w)["order_id"]

	w = s.do(t, http.MethodPost, "/api/v1/orders/create", access, orderBody(77))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, first, decode(t, w)["order_id"])
	assert.Len(t, s.tasks.creates, 2)

	w = s.do(t, http.MethodGet, "/api/v1/orders/1", access, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "NEW", decode(t, w)["status"])

	w = s.do(t, http.MethodPut, "/api/v1/orders/1", access, gin.H{"status": "CANCELED"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, s.tasks.cancels, 1)

	w = s.do(t, http.MethodPut, "/api/v1/orders/1", access, gin.H{"status": "DELIVERED"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrderValidation(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.login(t)

	w := s.do(t, http.MethodPost, "/api/v1/orders/create", access, gin.H{"number": 1})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, decode(t, w)["detail"])

	w = s.do(t, http.MethodPost, "/api/v1/orders/create", access, gin.H{"number": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body := orderBody(5)
	body["shop_id"] = 99
	w = s.do(t, http.MethodPost, "/api/v1/orders/create", access, body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetOrderNotFoundAndBadID(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.login(t)

	w := s.do(t, http.MethodGet, "/api/v1/orders/42", access, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "order not found", decode(t, w)["error"])

	w = s.do(t, http.MethodGet, "/api/v1/orders/abc", access, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListOrders(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.login(t)

	w := s.do(t, http.MethodGet, "/internal/v1/orders?page=1&per_page=5", access, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, decode(t, w)["has_orders"])

	w = s.do(t, http.MethodGet, "/internal/v1/orders?date_from=2024-01-01", access, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/internal/v1/orders?page=abc", access, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCardNumberValidation(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.login(t)

	w := s.do(t, http.MethodPost, "/api/v1/cards", access, gin.H{"number": "1234"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Detail []fieldError `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Detail, 1)
	assert.Equal(t, "wrong card number length", body.Detail[0].Msg)
}

func TestShopsAreAdminOnly(t *testing.T) {
	s := newTestServer(t)
	access, _ := s.login(t)

	w := s.do(t, http.MethodGet, "/internal/v1/shops", access, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not found", decode(t, w)["error"])
}
