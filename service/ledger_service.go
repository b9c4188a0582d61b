package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"courierbot/pkg/logger"
	"courierbot/pkg/metrics"
	"courierbot/pkg/models"
	"courierbot/storage"
)

var (
	ErrAmountRequired = errors.New("received amount is required for cash payments")
	ErrAmountMismatch = errors.New("received amount does not match the amount due")
	ErrReasonRequired = errors.New("a failure reason is required")
	ErrUnknownOutcome = errors.New("unknown delivery outcome")
)

type Resolution struct {
	Outcome       models.Outcome
	ReceivedCents *int64
	Reason        string
}

// DeliveryLedger applies the courier's decisions to orders, sales and daily orders.
type DeliveryLedger struct {
	stg     storage.IStorage
	log     logger.ILogger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewDeliveryLedger(stg storage.IStorage, log logger.ILogger, m *metrics.Metrics) *DeliveryLedger {
	return &DeliveryLedger{stg: stg, log: log, metrics: m, now: time.Now}
}

// Validate checks a resolution against the order without touching storage.
func (l *DeliveryLedger) Validate(order *models.Order, res Resolution) error {
	switch res.Outcome {
	case models.OutcomeDelivered:
		if !order.PaymentMethod.RequiresCashCheck() {
			return nil
		}
		if res.ReceivedCents == nil {
			return ErrAmountRequired
		}
		if *res.ReceivedCents != order.AmountDue() {
			return ErrAmountMismatch
		}
		return nil
	case models.OutcomeFailed:
		if strings.TrimSpace(res.Reason) == "" {
			return ErrReasonRequired
		}
		return nil
	}
	return ErrUnknownOutcome
}

func (l *DeliveryLedger) ResolveOrder(ctx context.Context, courierID, orderID int64, res Resolution) (*models.Order, error) {
	order, err := l.stg.Order().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.CourierID == nil || *order.CourierID != courierID {
		return nil, storage.ErrOrderNotAssigned
	}
	if order.Status.IsTerminal() {
		return nil, storage.ErrOrderNotAssigned
	}
	if err := l.Validate(order, res); err != nil {
		return nil, err
	}

	at := l.now()
	err = l.stg.Ledger().ResolveOrder(ctx, storage.ResolveParams{
		OrderID:       orderID,
		CourierID:     courierID,
		Outcome:       res.Outcome,
		ReceivedCents: res.ReceivedCents,
		Reason:        strings.TrimSpace(res.Reason),
		At:            at,
	})
	if err != nil {
		return nil, err
	}

	l.metrics.OrderResolved(string(res.Outcome))
	l.log.Info("order resolved",
		logger.Int64("order_id", orderID),
		logger.Int64("courier_id", courierID),
		logger.String("outcome", string(res.Outcome)))

	order.Status = res.Outcome.Status()
	order.ResolvedAt = &at
	if res.Outcome == models.OutcomeFailed {
		reason := strings.TrimSpace(res.Reason)
		order.FailureReason = &reason
	}
	return order, nil
}

func (l *DeliveryLedger) AssignedOrders(ctx context.Context, courierID int64) ([]*models.Order, error) {
	return l.stg.Order().GetAssigned(ctx, courierID)
}

// AssignedOrder returns the courier's unrouted order or storage.ErrOrderNotAssigned.
func (l *DeliveryLedger) AssignedOrder(ctx context.Context, courierID, orderID int64) (*models.Order, error) {
	order, err := l.stg.Order().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.CourierID == nil || *order.CourierID != courierID ||
		order.Status != models.OrderStatusAssigned || order.RouteID != nil {
		return nil, storage.ErrOrderNotAssigned
	}
	return order, nil
}

func (l *DeliveryLedger) UpdateAddress(ctx context.Context, courierID, orderID int64, address string) error {
	return l.stg.Order().UpdateAddress(ctx, orderID, courierID, address)
}

func (l *DeliveryLedger) ActiveRoute(ctx context.Context, courierID int64) (*models.Route, error) {
	return l.stg.Route().GetActive(ctx, courierID)
}

func (l *DeliveryLedger) Route(ctx context.Context, routeID uuid.UUID) (*models.Route, error) {
	return l.stg.Route().GetByID(ctx, routeID)
}

func (l *DeliveryLedger) StartRoute(ctx context.Context, route *models.Route) error {
	if err := l.stg.Ledger().StartRoute(ctx, route); err != nil {
		return err
	}
	l.log.Info("route started",
		logger.String("route_id", route.ID.String()),
		logger.Int64("courier_id", route.CourierID),
		logger.Int("stops", len(route.Stops)))
	return nil
}

// PendingOrders lists the non-terminal orders of a route in sequence order.
func (l *DeliveryLedger) PendingOrders(ctx context.Context, routeID uuid.UUID) ([]*models.Order, error) {
	orders, err := l.stg.Order().GetByRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}
	var pending []*models.Order
	for _, o := range orders {
		if !o.Status.IsTerminal() {
			pending = append(pending, o)
		}
	}
	return pending, nil
}

// FinalizeRoute closes a route whose orders are all terminal. It returns a
// *storage.PendingOrdersError while orders are open and storage.ErrRouteClosed
// when the route has already ended.
func (l *DeliveryLedger) FinalizeRoute(ctx context.Context, routeID uuid.UUID) (*models.RouteSummary, error) {
	summary, err := l.stg.Ledger().FinalizeRoute(ctx, routeID, l.now())
	if err != nil {
		return nil, err
	}
	l.metrics.RouteClosed(true)
	l.log.Info("route finalized",
		logger.String("route_id", routeID.String()),
		logger.Int("delivered", summary.Delivered),
		logger.Int("failed", summary.Failed),
		logger.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

func (l *DeliveryLedger) CancelRoute(ctx context.Context, routeID uuid.UUID) error {
	if err := l.stg.Ledger().CancelRoute(ctx, routeID, l.now()); err != nil {
		return fmt.Errorf("cancel route %s: %w", routeID, err)
	}
	l.metrics.RouteClosed(false)
	l.log.Info("route cancelled", logger.String("route_id", routeID.String()))
	return nil
}
