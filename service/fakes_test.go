package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"courierbot/pkg/maps"
	"courierbot/pkg/models"
	"courierbot/storage"
)

// world names every point used by a test; geocoding and distances are looked
// up by name.
type world struct {
	points map[string]models.Coordinates
	names  map[models.Coordinates]string
}

func newWorld(names ...string) *world {
	w := &world{points: map[string]models.Coordinates{}, names: map[models.Coordinates]string{}}
	for i, n := range names {
		c := models.Coordinates{Lat: -24.9 - float64(i)/100, Lng: -53.4 - float64(i)/100}
		w.points[n] = c
		w.names[c] = n
	}
	return w
}

type fakeGeocoder struct {
	w     *world
	mu    sync.Mutex
	calls []string
}

func (g *fakeGeocoder) Geocode(_ context.Context, address string) (models.Coordinates, bool) {
	g.mu.Lock()
	g.calls = append(g.calls, address)
	g.mu.Unlock()
	c, ok := g.w.points[address]
	return c, ok
}

func (g *fakeGeocoder) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type pair struct {
	from, to string
	meters   int
	seconds  int
}

type fakeDistances struct {
	w     *world
	legs  map[string]models.Leg
	quota bool
	mu    sync.Mutex
	calls int
}

func newFakeDistances(w *world, pairs ...pair) *fakeDistances {
	d := &fakeDistances{w: w, legs: map[string]models.Leg{}}
	for _, p := range pairs {
		leg := models.Leg{DistanceMeters: p.meters, DurationSeconds: p.seconds}
		d.legs[p.from+"|"+p.to] = leg
		if _, ok := d.legs[p.to+"|"+p.from]; !ok {
			d.legs[p.to+"|"+p.from] = leg
		}
	}
	return d
}

func (d *fakeDistances) Estimate(_ context.Context, from, to models.Coordinates) (models.Leg, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.quota {
		return models.Leg{}, maps.ErrQuotaExceeded
	}
	d.calls++
	leg, ok := d.legs[d.w.names[from]+"|"+d.w.names[to]]
	if !ok {
		return models.Leg{}, maps.ErrDistanceUnavailable
	}
	return leg, nil
}

func (d *fakeDistances) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// memStore keeps orders and routes in memory and mirrors the guards of the
// Postgres ledger.
type memStore struct {
	mu            sync.Mutex
	orders        map[int64]*models.Order
	routes        map[uuid.UUID]*models.Route
	saleReceived  map[int64]bool
	dailyStatus   map[int64]string
	failResolve   error
	failPending   error
	finalizeCalls int
}

func newMemStore(orders ...*models.Order) *memStore {
	m := &memStore{
		orders:       map[int64]*models.Order{},
		routes:       map[uuid.UUID]*models.Route{},
		saleReceived: map[int64]bool{},
		dailyStatus:  map[int64]string{},
	}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func assignedOrder(id, courierID int64, address string, payment models.PaymentMethod, total int64) *models.Order {
	return &models.Order{
		ID:              id,
		SaleID:          100 + id,
		DailyOrderID:    200 + id,
		CourierID:       &courierID,
		ClientReference: "cliente",
		Address:         address,
		PaymentMethod:   payment,
		TotalCents:      total,
		Status:          models.OrderStatusAssigned,
	}
}

func (m *memStore) order(id int64) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.orders[id]
}

func (m *memStore) route(id uuid.UUID) *models.Route {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.routes[id]; ok {
		return copyRoute(r)
	}
	return nil
}

func copyOrder(o *models.Order) *models.Order {
	c := *o
	return &c
}

func copyRoute(r *models.Route) *models.Route {
	c := *r
	c.Stops = make([]models.RouteStop, len(r.Stops))
	for i, s := range r.Stops {
		c.Stops[i] = models.RouteStop{Order: copyOrder(s.Order), Located: s.Located, Leg: s.Leg}
	}
	return &c
}

func (m *memStore) Courier() storage.ICourierStorage { return nil }
func (m *memStore) Order() storage.IOrderStorage     { return memOrders{m} }
func (m *memStore) Route() storage.IRouteStorage     { return memRoutes{m} }
func (m *memStore) Ledger() storage.ILedgerStorage   { return memLedger{m} }
func (m *memStore) Close()                           {}
func (m *memStore) GetPool() *pgxpool.Pool           { return nil }

type memOrders struct{ m *memStore }

func (r memOrders) GetByID(_ context.Context, id int64) (*models.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if o, ok := r.m.orders[id]; ok {
		return copyOrder(o), nil
	}
	return nil, nil
}

func (r memOrders) GetAssigned(_ context.Context, courierID int64) ([]*models.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Order
	for _, o := range r.m.orders {
		if o.CourierID != nil && *o.CourierID == courierID && o.Status == models.OrderStatusAssigned && o.RouteID == nil {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memOrders) GetByRoute(_ context.Context, routeID uuid.UUID) ([]*models.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failPending != nil {
		return nil, r.m.failPending
	}
	route, ok := r.m.routes[routeID]
	if !ok {
		return nil, nil
	}
	var out []*models.Order
	for _, s := range route.Stops {
		out = append(out, copyOrder(s.Order))
	}
	return out, nil
}

func (r memOrders) UpdateAddress(_ context.Context, orderID, courierID int64, address string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	o, ok := r.m.orders[orderID]
	if !ok || o.CourierID == nil || *o.CourierID != courierID || o.Status != models.OrderStatusAssigned || o.RouteID != nil {
		return storage.ErrOrderNotAssigned
	}
	o.Address = address
	return nil
}

type memRoutes struct{ m *memStore }

func (r memRoutes) GetActive(_ context.Context, courierID int64) (*models.Route, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, rt := range r.m.routes {
		if rt.CourierID == courierID && rt.EndedAt == nil {
			return copyRoute(rt), nil
		}
	}
	return nil, nil
}

func (r memRoutes) GetByID(_ context.Context, id uuid.UUID) (*models.Route, error) {
	return r.m.route(id), nil
}

type memLedger struct{ m *memStore }

func (l memLedger) StartRoute(_ context.Context, route *models.Route) error {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rt := range m.routes {
		if rt.CourierID == route.CourierID && rt.EndedAt == nil {
			return storage.ErrRouteAlreadyActive
		}
	}
	for _, s := range route.Stops {
		o, ok := m.orders[s.Order.ID]
		if !ok || o.Status != models.OrderStatusAssigned || o.RouteID != nil {
			return storage.ErrOrderNotAssigned
		}
	}

	stored := *route
	stored.Stops = make([]models.RouteStop, len(route.Stops))
	for i, s := range route.Stops {
		idx := i
		o := m.orders[s.Order.ID]
		o.RouteID = &stored.ID
		o.SequenceIndex = &idx
		stored.Stops[i] = models.RouteStop{Order: o, Located: s.Located, Leg: s.Leg}
	}
	m.routes[route.ID] = &stored
	return nil
}

func (l memLedger) ResolveOrder(_ context.Context, p storage.ResolveParams) error {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failResolve != nil {
		return m.failResolve
	}
	o, ok := m.orders[p.OrderID]
	if !ok || o.CourierID == nil || *o.CourierID != p.CourierID || o.Status != models.OrderStatusAssigned {
		return storage.ErrOrderNotAssigned
	}
	at := p.At
	o.Status = p.Outcome.Status()
	o.ResolvedAt = &at
	if p.Reason != "" {
		reason := p.Reason
		o.FailureReason = &reason
	}
	m.saleReceived[o.SaleID] = p.Outcome == models.OutcomeDelivered
	m.dailyStatus[o.DailyOrderID] = p.Outcome.DailyOrderStatus()
	return nil
}

func (l memLedger) FinalizeRoute(_ context.Context, routeID uuid.UUID, endedAt time.Time) (*models.RouteSummary, error) {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.routes[routeID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if rt.EndedAt != nil {
		return nil, storage.ErrRouteClosed
	}
	if pending := rt.Pending(); len(pending) > 0 {
		ids := make([]int64, 0, len(pending))
		for _, o := range pending {
			ids = append(ids, o.ID)
		}
		return nil, &storage.PendingOrdersError{OrderIDs: ids}
	}
	m.finalizeCalls++
	ended := endedAt
	rt.EndedAt = &ended
	rt.Completed = true
	return models.Summarize(rt, endedAt), nil
}

func (l memLedger) CancelRoute(_ context.Context, routeID uuid.UUID, endedAt time.Time) error {
	m := l.m
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.routes[routeID]
	if !ok || rt.EndedAt != nil {
		return storage.ErrRouteClosed
	}
	ended := endedAt
	rt.EndedAt = &ended
	for _, s := range rt.Stops {
		if s.Order.Status == models.OrderStatusAssigned {
			s.Order.RouteID = nil
			s.Order.SequenceIndex = nil
		}
	}
	return nil
}
