package service

import (
	"context"
	"errors"
	"sync"

	"order-gateway/internal/models"
	"order-gateway/internal/store"

	"github.com/google/uuid"
)

// fakeStore is an in-memory stand-in for the relational store
type fakeStore struct {
	mu sync.Mutex

	shops     map[int64]*models.Shop
	orders    map[int64]*models.Order
	addresses map[int64]*models.Address
	cards     map[int64]*models.Card
	users     map[uuid.UUID]*models.User
	sessions  []*models.ActiveSession
	processed map[string]bool
	items     map[int64][]models.ItemData
	nextID    int64

	lastFilter store.OrderFilter
	listResult []models.Order
	listTotal  int
	failWith   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		shops:     map[int64]*models.Shop{},
		orders:    map[int64]*models.Order{},
		addresses: map[int64]*models.Address{},
		cards:     map[int64]*models.Card{},
		users:     map[uuid.UUID]*models.User{},
		processed: map[string]bool{},
		items:     map[int64][]models.ItemData{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addShop() *models.Shop {
	f.mu.Lock()
	defer f.mu.Unlock()
	shop := &models.Shop{ID: f.id(), Name: "shop", IsActive: true}
	f.shops[shop.ID] = shop
	return shop
}

func (f *fakeStore) addDefaults(userID uuid.UUID) (*models.Address, *models.Card) {
	f.mu.Lock()
	defer f.mu.Unlock()
	address := &models.Address{ID: f.id(), UserID: userID, City: "Moscow", IsDefault: true}
	card := &models.Card{ID: f.id(), UserID: userID, Number: "4111111111111111", IsDefault: true}
	f.addresses[address.ID] = address
	f.cards[card.ID] = card
	return address, card
}

func (f *fakeStore) status(id int64) models.OrderStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id].Status
}

func (f *fakeStore) GetShop(_ context.Context, id int64) (*models.Shop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	shop, ok := f.shops[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *shop
	return &cp, nil
}

func (f *fakeStore) GetOrCreateOrderShell(_ context.Context, order *models.Order) (*models.Order, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, false, f.failWith
	}
	for _, o := range f.orders {
		if o.UserID == order.UserID && o.Number == order.Number {
			cp := *o
			return &cp, false, nil
		}
	}
	created := *order
	created.ID = f.id()
	created.Status = models.OrderStatusNew
	f.orders[created.ID] = &created
	cp := created
	return &cp, true, nil
}

func (f *fakeStore) GetOrder(_ context.Context, userID uuid.UUID, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.UserID != userID {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) ListOrders(_ context.Context, filter store.OrderFilter) ([]models.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	return f.listResult, f.listTotal, nil
}

func (f *fakeStore) CountUserOrders(_ context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, o := range f.orders {
		if o.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) GetAddress(_ context.Context, userID uuid.UUID, id int64) (*models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.addresses[id]
	if !ok || a.UserID != userID {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) GetCard(_ context.Context, userID uuid.UUID, id int64) (*models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cards[id]
	if !ok || c.UserID != userID {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) GetDefaultAddress(_ context.Context, userID uuid.UUID) (*models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.addresses {
		if a.UserID == userID && a.IsDefault {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetDefaultCard(_ context.Context, userID uuid.UUID) (*models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.cards {
		if c.UserID == userID && c.IsDefault {
			cp := *c
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) FinalizeOrder(_ context.Context, fin store.Finalization) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processed[fin.TaskID] {
		return false, nil
	}
	o, ok := f.orders[fin.OrderID]
	if !ok {
		return false, store.ErrNotFound
	}
	f.processed[fin.TaskID] = true
	if o.Status != models.OrderStatusNew {
		return false, nil
	}
	addressID, cardID, date := fin.AddressID, fin.CardID, fin.Date
	o.AddressID, o.CardID, o.Date = &addressID, &cardID, &date
	f.items[o.ID] = fin.Items
	return true, nil
}

// TransitionOrder holds the lock for the whole compare-and-set, like the row lock
func (f *fakeStore) TransitionOrder(ctx context.Context, id int64, from, to models.OrderStatus, hook store.TransitionHook) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if o.Status != from {
		return false, nil
	}
	if hook != nil {
		cp := *o
		if err := hook(ctx, &cp); err != nil {
			return false, err
		}
	}
	o.Status = to
	return true, nil
}

func (f *fakeStore) UpdateOrderPayment(_ context.Context, id int64, addressID, cardID *int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if o.Status != models.OrderStatusNew {
		return false, nil
	}
	if addressID != nil {
		o.AddressID = addressID
	}
	if cardID != nil {
		o.CardID = cardID
	}
	return true, nil
}

// fakePublisher records every enqueued task
type fakePublisher struct {
	mu      sync.Mutex
	creates []*models.CreateOrderPayload
	settles []*models.SettleOrderPayload
	updates []*models.UpdateOrderPayload
	cancels []*models.CancelOrderPayload
	err     error
}

func (p *fakePublisher) PublishCreateOrder(_ context.Context, payload *models.CreateOrderPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.creates = append(p.creates, payload)
	return nil
}

func (p *fakePublisher) PublishSettleOrder(_ context.Context, payload *models.SettleOrderPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.settles = append(p.settles, payload)
	return nil
}

func (p *fakePublisher) PublishUpdateOrder(_ context.Context, payload *models.UpdateOrderPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.updates = append(p.updates, payload)
	return nil
}

func (p *fakePublisher) PublishCancelOrder(_ context.Context, payload *models.CancelOrderPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.cancels = append(p.cancels, payload)
	return nil
}

// stubCapturer fails every capture with err when set
type stubCapturer struct {
	err   error
	calls int
}

func (c *stubCapturer) Capture(context.Context, *models.Order) error {
	c.calls++
	return c.err
}

var errBoom = errors.New("boom")
