package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courierbot/pkg/logger"
	"courierbot/pkg/models"
)

func orderAt(id int64, address string) *models.Order {
	return assignedOrder(id, 1, address, models.PaymentPix, 1000)
}

func stopIDs(r *models.Route) []int64 {
	ids := make([]int64, 0, len(r.Stops))
	for _, s := range r.Stops {
		ids = append(ids, s.Order.ID)
	}
	return ids
}

func newTestBuilder(w *world, d *fakeDistances) (*RouteBuilder, *fakeGeocoder) {
	g := &fakeGeocoder{w: w}
	return NewRouteBuilder(g, d, 5, logger.NewNop(), nil), g
}

func TestRouteBuilderNearestNeighbour(t *testing.T) {
	w := newWorld("HUB", "A", "B", "C")
	d := newFakeDistances(w,
		pair{"HUB", "A", 1000, 300},
		pair{"HUB", "B", 2000, 600},
		pair{"HUB", "C", 1500, 450},
		pair{"A", "B", 800, 240},
		pair{"A", "C", 700, 210},
		pair{"B", "C", 900, 270},
	)
	b, _ := newTestBuilder(w, d)

	res, err := b.Build(context.Background(), BuildRequest{
		CourierID: 1,
		Origin:    "HUB",
		Orders:    []*models.Order{orderAt(1, "A"), orderAt(2, "B"), orderAt(3, "C")},
	})
	require.NoError(t, err)

	route := res.Route
	assert.Equal(t, []int64{1, 3, 2}, stopIDs(route))
	assert.Equal(t, 2600, route.TotalDistanceMeters)
	assert.Equal(t, 780, route.TotalDurationSeconds)
	assert.True(t, route.HasTotals)
	assert.Equal(t, w.points["HUB"], route.Origin)
	assert.Equal(t, int64(1), route.CourierID)
	for _, s := range route.Stops {
		assert.True(t, s.Located)
		require.NotNil(t, s.Leg)
	}
	assert.Equal(t, 700, route.Stops[1].Leg.DistanceMeters)
	assert.False(t, res.QuotaExceeded)
	assert.Zero(t, res.UnavailableLegs)
}

func TestRouteBuilderUnlocatedTail(t *testing.T) {
	w := newWorld("HUB", "A", "B")
	d := newFakeDistances(w,
		pair{"HUB", "A", 3000, 600},
		pair{"HUB", "B", 1000, 200},
		pair{"A", "B", 2500, 500},
	)
	b, _ := newTestBuilder(w, d)

	res, err := b.Build(context.Background(), BuildRequest{
		CourierID: 1,
		Origin:    "HUB",
		Orders:    []*models.Order{orderAt(1, "Rua que não existe"), orderAt(2, "A"), orderAt(3, "B")},
	})
	require.NoError(t, err)

	route := res.Route
	require.Len(t, route.Stops, 3)
	assert.Equal(t, []int64{3, 2, 1}, stopIDs(route))

	tail := route.Stops[2]
	assert.False(t, tail.Located)
	assert.Nil(t, tail.Leg)
	assert.Equal(t, []*models.Order{route.Stops[2].Order}, route.Unlocated())

	assert.Equal(t, 1000+2500, route.TotalDistanceMeters)
	assert.Equal(t, 200+500, route.TotalDurationSeconds)

	t.Run("unlocated order does not change totals", func(t *testing.T) {
		without, err := b.Build(context.Background(), BuildRequest{
			CourierID: 1,
			Origin:    "HUB",
			Orders:    []*models.Order{orderAt(2, "A"), orderAt(3, "B")},
		})
		require.NoError(t, err)
		assert.Equal(t, route.TotalDistanceMeters, without.Route.TotalDistanceMeters)
		assert.Equal(t, route.TotalDurationSeconds, without.Route.TotalDurationSeconds)
	})
}

func TestRouteBuilderTiesKeepInputOrder(t *testing.T) {
	w := newWorld("HUB", "A", "B")
	d := newFakeDistances(w,
		pair{"HUB", "A", 1000, 100},
		pair{"HUB", "B", 1000, 100},
		pair{"A", "B", 400, 50},
	)
	b, _ := newTestBuilder(w, d)

	for _, tc := range []struct {
		name   string
		orders []*models.Order
		want   []int64
	}{
		{"A first", []*models.Order{orderAt(1, "A"), orderAt(2, "B")}, []int64{1, 2}},
		{"B first", []*models.Order{orderAt(2, "B"), orderAt(1, "A")}, []int64{2, 1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			res, err := b.Build(context.Background(), BuildRequest{Origin: "HUB", Orders: tc.orders})
			require.NoError(t, err)
			assert.Equal(t, tc.want, stopIDs(res.Route))
		})
	}
}

func TestRouteBuilderUnavailableDistanceRanksLast(t *testing.T) {
	w := newWorld("HUB", "A", "B")
	// HUB->A is unknown
	d := newFakeDistances(w,
		pair{"HUB", "B", 5000, 900},
		pair{"B", "A", 1000, 200},
	)
	b, _ := newTestBuilder(w, d)

	res, err := b.Build(context.Background(), BuildRequest{Origin: "HUB", Orders: []*models.Order{orderAt(1, "A"), orderAt(2, "B")}})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, stopIDs(res.Route))
	assert.Equal(t, 6000, res.Route.TotalDistanceMeters)
	assert.Equal(t, 1, res.UnavailableLegs)
	assert.False(t, res.QuotaExceeded)
}

func TestRouteBuilderQuotaExceeded(t *testing.T) {
	w := newWorld("HUB", "A", "B", "C")
	d := newFakeDistances(w)
	d.quota = true
	b, _ := newTestBuilder(w, d)

	res, err := b.Build(context.Background(), BuildRequest{
		Origin: "HUB",
		Orders: []*models.Order{orderAt(1, "A"), orderAt(2, "B"), orderAt(3, "C")},
	})
	require.NoError(t, err)
	assert.True(t, res.QuotaExceeded)
	assert.Equal(t, []int64{1, 2, 3}, stopIDs(res.Route))
	assert.False(t, res.Route.HasTotals)
	assert.Zero(t, res.Route.TotalDistanceMeters)
	for _, s := range res.Route.Stops {
		assert.True(t, s.Located)
		assert.Nil(t, s.Leg)
	}
}

func TestRouteBuilderAllUnlocated(t *testing.T) {
	w := newWorld("HUB")
	d := newFakeDistances(w)
	b, _ := newTestBuilder(w, d)

	res, err := b.Build(context.Background(), BuildRequest{
		Origin: "HUB",
		Orders: []*models.Order{orderAt(5, "x1"), orderAt(4, "x2"), orderAt(6, "x3")},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 4, 6}, stopIDs(res.Route))
	assert.False(t, res.Route.HasTotals)
	assert.Len(t, res.Route.Unlocated(), 3)
	assert.Zero(t, d.Calls())
}

func TestRouteBuilderSingleOrder(t *testing.T) {
	w := newWorld("HUB", "A")
	d := newFakeDistances(w, pair{"HUB", "A", 1200, 240})
	b, _ := newTestBuilder(w, d)

	res, err := b.Build(context.Background(), BuildRequest{Origin: "HUB", Orders: []*models.Order{orderAt(1, "A")}})
	require.NoError(t, err)
	assert.Equal(t, 1, d.Calls())
	assert.Equal(t, 1200, res.Route.TotalDistanceMeters)
}

func TestRouteBuilderErrors(t *testing.T) {
	w := newWorld("HUB", "A")
	d := newFakeDistances(w, pair{"HUB", "A", 1200, 240})

	t.Run("invalid origin", func(t *testing.T) {
		b, g := newTestBuilder(w, d)
		_, err := b.Build(context.Background(), BuildRequest{Origin: "lugar nenhum", Orders: []*models.Order{orderAt(1, "A")}})
		assert.ErrorIs(t, err, ErrInvalidOrigin)
		assert.Equal(t, 1, g.Calls())
	})

	t.Run("no orders", func(t *testing.T) {
		b, _ := newTestBuilder(w, d)
		_, err := b.Build(context.Background(), BuildRequest{Origin: "HUB"})
		assert.ErrorIs(t, err, ErrNoOrders)
	})

	t.Run("abandoned", func(t *testing.T) {
		b, _ := newTestBuilder(w, d)
		_, err := b.Build(context.Background(), BuildRequest{
			Origin:    "HUB",
			Orders:    []*models.Order{orderAt(1, "A")},
			Abandoned: func() bool { return true },
		})
		assert.ErrorIs(t, err, ErrBuildAborted)
	})

	t.Run("cancelled context", func(t *testing.T) {
		b, _ := newTestBuilder(w, d)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := b.Build(ctx, BuildRequest{Origin: "HUB", Orders: []*models.Order{orderAt(1, "A")}})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
