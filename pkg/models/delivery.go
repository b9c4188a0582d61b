package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAssigned  OrderStatus = "assigned"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusFailed    OrderStatus = "failed"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusFailed
}

func (s OrderStatus) Validate() error {
	switch s {
	case OrderStatusPending, OrderStatusAssigned, OrderStatusDelivered, OrderStatusFailed:
		return nil
	}
	return fmt.Errorf("unknown order status %q", string(s))
}

type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "dinheiro"
	PaymentPix     PaymentMethod = "pix"
	PaymentPixCash PaymentMethod = "pix e dinheiro"
	PaymentCard    PaymentMethod = "cartao"
)

// RequiresCashCheck reports whether the courier collects cash for this
// method and must confirm the received amount.
func (p PaymentMethod) RequiresCashCheck() bool {
	switch strings.ToLower(strings.TrimSpace(string(p))) {
	case string(PaymentCash), string(PaymentPixCash), "pix+dinheiro":
		return true
	}
	return false
}

type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeFailed    Outcome = "failed"
)

func (o Outcome) Status() OrderStatus {
	if o == OutcomeDelivered {
		return OrderStatusDelivered
	}
	return OrderStatusFailed
}

// DailyOrderStatus is the status written to the daily order record for an outcome.
func (o Outcome) DailyOrderStatus() string {
	if o == OutcomeDelivered {
		return "finalizado"
	}
	return "falha"
}

var FailureReasons = []string{
	"Cliente Ausente",
	"Endereço Incorreto",
	"Recusado pelo Cliente",
	"Outro",
}

type Order struct {
	ID              int64         `json:"id"`
	SaleID          int64         `json:"sale_id"`
	DailyOrderID    int64         `json:"daily_order_id"`
	CourierID       *int64        `json:"courier_id"`
	RouteID         *uuid.UUID    `json:"route_id"`
	ClientReference string        `json:"client_reference"`
	Address         string        `json:"address"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	TotalCents      int64         `json:"total_cents"`
	PaidCents       int64         `json:"paid_cents"`
	Status          OrderStatus   `json:"status"`
	SequenceIndex   *int          `json:"sequence_index"`
	AssignedAt      *time.Time    `json:"assigned_at"`
	ResolvedAt      *time.Time    `json:"resolved_at"`
	FailureReason   *string       `json:"failure_reason"`
	CreatedAt       time.Time     `json:"created_at"`
}

// AmountDue is what the courier has to collect: the sale total minus any
// amount already paid ahead (the pix part of a mixed payment).
func (o *Order) AmountDue() int64 {
	due := o.TotalCents - o.PaidCents
	if due < 0 {
		return 0
	}
	return due
}

type RouteStop struct {
	Order   *Order `json:"order"`
	Located bool   `json:"located"`
	// Leg from the previous stop; nil when the distance is unknown.
	Leg *Leg `json:"leg"`
}

type Route struct {
	ID                   uuid.UUID   `json:"id"`
	CourierID            int64       `json:"courier_id"`
	OriginAddress        string      `json:"origin_address"`
	Origin               Coordinates `json:"origin"`
	Stops                []RouteStop `json:"stops"`
	TotalDistanceMeters  int         `json:"total_distance_meters"`
	TotalDurationSeconds int         `json:"total_duration_seconds"`
	HasTotals            bool        `json:"has_totals"`
	StartedAt            time.Time   `json:"started_at"`
	EndedAt              *time.Time  `json:"ended_at"`
	Completed            bool        `json:"completed"`
}

func (r *Route) Unlocated() []*Order {
	var out []*Order
	for _, s := range r.Stops {
		if !s.Located {
			out = append(out, s.Order)
		}
	}
	return out
}

func (r *Route) Pending() []*Order {
	var out []*Order
	for _, s := range r.Stops {
		if !s.Order.Status.IsTerminal() {
			out = append(out, s.Order)
		}
	}
	return out
}

func (r *Route) Stop(orderID int64) (RouteStop, bool) {
	for _, s := range r.Stops {
		if s.Order.ID == orderID {
			return s, true
		}
	}
	return RouteStop{}, false
}

type RouteSummary struct {
	RouteID             uuid.UUID     `json:"route_id"`
	Delivered           int           `json:"delivered"`
	Failed              int           `json:"failed"`
	TotalDistanceMeters int           `json:"total_distance_meters"`
	EstimatedSeconds    int           `json:"estimated_seconds"`
	HasTotals           bool          `json:"has_totals"`
	StartedAt           time.Time     `json:"started_at"`
	EndedAt             time.Time     `json:"ended_at"`
	Elapsed             time.Duration `json:"elapsed"`
	AveragePerOrder     time.Duration `json:"average_per_order"`
}

// Summarize derives the finalization metrics of a route ending at endedAt.
func Summarize(r *Route, endedAt time.Time) *RouteSummary {
	s := &RouteSummary{
		RouteID:             r.ID,
		TotalDistanceMeters: r.TotalDistanceMeters,
		EstimatedSeconds:    r.TotalDurationSeconds,
		HasTotals:           r.HasTotals,
		StartedAt:           r.StartedAt,
		EndedAt:             endedAt,
		Elapsed:             endedAt.Sub(r.StartedAt),
	}
	for _, stop := range r.Stops {
		switch stop.Order.Status {
		case OrderStatusDelivered:
			s.Delivered++
		case OrderStatusFailed:
			s.Failed++
		}
	}
	if n := len(r.Stops); n > 0 {
		s.AveragePerOrder = s.Elapsed / time.Duration(n)
	}
	return s
}
