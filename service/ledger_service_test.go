package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"courierbot/pkg/logger"
	"courierbot/pkg/models"
	"courierbot/storage"
)

type mockOrderStorage struct{ mock.Mock }

func (m *mockOrderStorage) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*models.Order)
	return o, args.Error(1)
}

func (m *mockOrderStorage) GetAssigned(ctx context.Context, courierID int64) ([]*models.Order, error) {
	args := m.Called(ctx, courierID)
	o, _ := args.Get(0).([]*models.Order)
	return o, args.Error(1)
}

func (m *mockOrderStorage) GetByRoute(ctx context.Context, routeID uuid.UUID) ([]*models.Order, error) {
	args := m.Called(ctx, routeID)
	o, _ := args.Get(0).([]*models.Order)
	return o, args.Error(1)
}

func (m *mockOrderStorage) UpdateAddress(ctx context.Context, orderID, courierID int64, address string) error {
	return m.Called(ctx, orderID, courierID, address).Error(0)
}

type mockLedgerStorage struct{ mock.Mock }

func (m *mockLedgerStorage) StartRoute(ctx context.Context, route *models.Route) error {
	return m.Called(ctx, route).Error(0)
}

func (m *mockLedgerStorage) ResolveOrder(ctx context.Context, p storage.ResolveParams) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockLedgerStorage) FinalizeRoute(ctx context.Context, routeID uuid.UUID, endedAt time.Time) (*models.RouteSummary, error) {
	args := m.Called(ctx, routeID, endedAt)
	s, _ := args.Get(0).(*models.RouteSummary)
	return s, args.Error(1)
}

func (m *mockLedgerStorage) CancelRoute(ctx context.Context, routeID uuid.UUID, endedAt time.Time) error {
	return m.Called(ctx, routeID, endedAt).Error(0)
}

type mockStorage struct {
	orders *mockOrderStorage
	ledger *mockLedgerStorage
}

func (m *mockStorage) Courier() storage.ICourierStorage { return nil }
func (m *mockStorage) Order() storage.IOrderStorage     { return m.orders }
func (m *mockStorage) Route() storage.IRouteStorage     { return nil }
func (m *mockStorage) Ledger() storage.ILedgerStorage   { return m.ledger }
func (m *mockStorage) Close()                           {}
func (m *mockStorage) GetPool() *pgxpool.Pool           { return nil }

func newMockLedger(t *testing.T) (*DeliveryLedger, *mockOrderStorage, *mockLedgerStorage) {
	orders, ledger := &mockOrderStorage{}, &mockLedgerStorage{}
	t.Cleanup(func() {
		orders.AssertExpectations(t)
		ledger.AssertExpectations(t)
	})
	l := NewDeliveryLedger(&mockStorage{orders: orders, ledger: ledger}, logger.NewNop(), nil)
	l.now = func() time.Time { return time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC) }
	return l, orders, ledger
}

func cents(v int64) *int64 { return &v }

func TestDeliveryLedgerValidate(t *testing.T) {
	l := NewDeliveryLedger(nil, logger.NewNop(), nil)
	cash := assignedOrder(1, 1, "A", models.PaymentCash, 5000)
	mixed := assignedOrder(2, 1, "B", models.PaymentPixCash, 5000)
	mixed.PaidCents = 2000
	pix := assignedOrder(3, 1, "C", models.PaymentPix, 5000)

	tests := []struct {
		name  string
		order *models.Order
		res   Resolution
		want  error
	}{
		{"cash exact", cash, Resolution{Outcome: models.OutcomeDelivered, ReceivedCents: cents(5000)}, nil},
		{"cash missing amount", cash, Resolution{Outcome: models.OutcomeDelivered}, ErrAmountRequired},
		{"cash short", cash, Resolution{Outcome: models.OutcomeDelivered, ReceivedCents: cents(4999)}, ErrAmountMismatch},
		{"cash over", cash, Resolution{Outcome: models.OutcomeDelivered, ReceivedCents: cents(5001)}, ErrAmountMismatch},
		{"mixed expects remainder", mixed, Resolution{Outcome: models.OutcomeDelivered, ReceivedCents: cents(3000)}, nil},
		{"mixed full total rejected", mixed, Resolution{Outcome: models.OutcomeDelivered, ReceivedCents: cents(5000)}, ErrAmountMismatch},
		{"pix needs no amount", pix, Resolution{Outcome: models.OutcomeDelivered}, nil},
		{"failed with reason", pix, Resolution{Outcome: models.OutcomeFailed, Reason: "Cliente Ausente"}, nil},
		{"failed blank reason", cash, Resolution{Outcome: models.OutcomeFailed, Reason: "  "}, ErrReasonRequired},
		{"unknown outcome", pix, Resolution{Outcome: "lost"}, ErrUnknownOutcome},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := l.Validate(tc.order, tc.res)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDeliveryLedgerResolveOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("amount mismatch writes nothing", func(t *testing.T) {
		l, orders, ledger := newMockLedger(t)
		orders.On("GetByID", ctx, int64(1)).Return(assignedOrder(1, 7, "A", models.PaymentCash, 5000), nil)

		_, err := l.ResolveOrder(ctx, 7, 1, Resolution{Outcome: models.OutcomeDelivered, ReceivedCents: cents(4000)})
		assert.ErrorIs(t, err, ErrAmountMismatch)
		ledger.AssertNotCalled(t, "ResolveOrder", mock.Anything, mock.Anything)
	})

	t.Run("delivered commits one transaction", func(t *testing.T) {
		l, orders, ledger := newMockLedger(t)
		orders.On("GetByID", ctx, int64(1)).Return(assignedOrder(1, 7, "A", models.PaymentCash, 5000), nil)
		ledger.On("ResolveOrder", ctx, mock.MatchedBy(func(p storage.ResolveParams) bool {
			return p.OrderID == 1 && p.CourierID == 7 && p.Outcome == models.OutcomeDelivered &&
				p.ReceivedCents != nil && *p.ReceivedCents == 5000
		})).Return(nil).Once()

		order, err := l.ResolveOrder(ctx, 7, 1, Resolution{Outcome: models.OutcomeDelivered, ReceivedCents: cents(5000)})
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusDelivered, order.Status)
		require.NotNil(t, order.ResolvedAt)
	})

	t.Run("failed trims the reason", func(t *testing.T) {
		l, orders, ledger := newMockLedger(t)
		orders.On("GetByID", ctx, int64(2)).Return(assignedOrder(2, 7, "B", models.PaymentPix, 5000), nil)
		ledger.On("ResolveOrder", ctx, mock.MatchedBy(func(p storage.ResolveParams) bool {
			return p.Outcome == models.OutcomeFailed && p.Reason == "Cliente Ausente"
		})).Return(nil).Once()

		order, err := l.ResolveOrder(ctx, 7, 2, Resolution{Outcome: models.OutcomeFailed, Reason: " Cliente Ausente "})
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusFailed, order.Status)
		assert.Equal(t, "Cliente Ausente", *order.FailureReason)
	})

	t.Run("another courier's order", func(t *testing.T) {
		l, orders, _ := newMockLedger(t)
		orders.On("GetByID", ctx, int64(3)).Return(assignedOrder(3, 8, "C", models.PaymentPix, 5000), nil)

		_, err := l.ResolveOrder(ctx, 7, 3, Resolution{Outcome: models.OutcomeDelivered})
		assert.ErrorIs(t, err, storage.ErrOrderNotAssigned)
	})

	t.Run("terminal order", func(t *testing.T) {
		l, orders, _ := newMockLedger(t)
		done := assignedOrder(4, 7, "D", models.PaymentPix, 5000)
		done.Status = models.OrderStatusDelivered
		orders.On("GetByID", ctx, int64(4)).Return(done, nil)

		_, err := l.ResolveOrder(ctx, 7, 4, Resolution{Outcome: models.OutcomeFailed, Reason: "Outro"})
		assert.ErrorIs(t, err, storage.ErrOrderNotAssigned)
	})

	t.Run("transaction failure surfaces", func(t *testing.T) {
		l, orders, ledger := newMockLedger(t)
		dbErr := errors.New("connection reset")
		orders.On("GetByID", ctx, int64(5)).Return(assignedOrder(5, 7, "E", models.PaymentPix, 5000), nil)
		ledger.On("ResolveOrder", ctx, mock.Anything).Return(dbErr).Once()

		_, err := l.ResolveOrder(ctx, 7, 5, Resolution{Outcome: models.OutcomeDelivered})
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestDeliveryLedgerPendingAndFinalize(t *testing.T) {
	ctx := context.Background()
	routeID := uuid.New()

	t.Run("pending filters terminal orders", func(t *testing.T) {
		l, orders, _ := newMockLedger(t)
		done := assignedOrder(1, 7, "A", models.PaymentPix, 100)
		done.Status = models.OrderStatusFailed
		open := assignedOrder(2, 7, "B", models.PaymentPix, 100)
		orders.On("GetByRoute", ctx, routeID).Return([]*models.Order{done, open}, nil)

		pending, err := l.PendingOrders(ctx, routeID)
		require.NoError(t, err)
		assert.Equal(t, []*models.Order{open}, pending)
	})

	t.Run("finalize passes the refusal through", func(t *testing.T) {
		l, _, ledger := newMockLedger(t)
		ledger.On("FinalizeRoute", ctx, routeID, mock.Anything).Return(nil, &storage.PendingOrdersError{OrderIDs: []int64{2}})

		_, err := l.FinalizeRoute(ctx, routeID)
		var pending *storage.PendingOrdersError
		require.ErrorAs(t, err, &pending)
		assert.Equal(t, []int64{2}, pending.OrderIDs)
	})

	t.Run("finalize stamps now", func(t *testing.T) {
		l, _, ledger := newMockLedger(t)
		summary := &models.RouteSummary{RouteID: routeID, Delivered: 2}
		ledger.On("FinalizeRoute", ctx, routeID, l.now()).Return(summary, nil)

		got, err := l.FinalizeRoute(ctx, routeID)
		require.NoError(t, err)
		assert.Same(t, summary, got)
	})
}

func TestSummarize(t *testing.T) {
	start := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	delivered := assignedOrder(1, 1, "A", models.PaymentPix, 100)
	delivered.Status = models.OrderStatusDelivered
	failed := assignedOrder(2, 1, "B", models.PaymentPix, 100)
	failed.Status = models.OrderStatusFailed
	other := assignedOrder(3, 1, "C", models.PaymentPix, 100)
	other.Status = models.OrderStatusDelivered

	route := &models.Route{
		StartedAt:            start,
		TotalDistanceMeters:  4200,
		TotalDurationSeconds: 900,
		HasTotals:            true,
		Stops:                []models.RouteStop{{Order: delivered}, {Order: failed}, {Order: other}},
	}
	s := models.Summarize(route, start.Add(90*time.Minute))
	assert.Equal(t, 2, s.Delivered)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 90*time.Minute, s.Elapsed)
	assert.Equal(t, 30*time.Minute, s.AveragePerOrder)
	assert.Equal(t, 4200, s.TotalDistanceMeters)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		err  bool
	}{
		{"50", 5000, false},
		{"50,00", 5000, false},
		{"50.5", 5050, false},
		{"R$ 1.234,56", 123456, false},
		{"r$12,3", 1230, false},
		{"0,99", 99, false},
		{",5", 50, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-10", 0, true},
		{"10,999", 0, true},
		{"1.234", 123400, false},
		{"R$ 12.345.678", 1234567800, false},
		{"12.30", 1230, false},
		{"0.500", 0, true},
		{"1.23.456", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if tc.err {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
