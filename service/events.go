package service

import (
	"context"

	"courierbot/pkg/models"
)

type EventKind string

const (
	EventStartRoute      EventKind = "start_route"
	EventText            EventKind = "text"
	EventSelectOrder     EventKind = "select_order"
	EventKeepAddress     EventKind = "keep_address"
	EventEditAddress     EventKind = "edit_address"
	EventConcludeEditing EventKind = "conclude_editing"
	EventDeliver         EventKind = "deliver"
	EventFail            EventKind = "fail"
	EventReason          EventKind = "reason"
	EventShowRoute       EventKind = "show_route"
	EventFinalize        EventKind = "finalize"
	EventCancel          EventKind = "cancel"
	EventExit            EventKind = "exit"
)

// Event is one courier input, already stripped of transport details.
type Event struct {
	Kind    EventKind
	Text    string
	OrderID int64
}

type Prompt string

const (
	PromptNone             Prompt = ""
	PromptMenu             Prompt = "menu"
	PromptNoOrders         Prompt = "no_orders"
	PromptNoActiveRoute    Prompt = "no_active_route"
	PromptAskOrigin        Prompt = "ask_origin"
	PromptInvalidOrigin    Prompt = "invalid_origin"
	PromptReviewAddresses  Prompt = "review_addresses"
	PromptOrderDetail      Prompt = "order_detail"
	PromptAskAddress       Prompt = "ask_address"
	PromptInvalidAddress   Prompt = "invalid_address"
	PromptAddressUpdated   Prompt = "address_updated"
	PromptBuilding         Prompt = "building"
	PromptRouteBuilt       Prompt = "route_built"
	PromptRouteStatus      Prompt = "route_status"
	PromptRouteActive      Prompt = "route_already_active"
	PromptOrderUnavailable Prompt = "order_unavailable"
	PromptAskAmount        Prompt = "ask_amount"
	PromptInvalidAmount    Prompt = "invalid_amount"
	PromptAmountMismatch   Prompt = "amount_mismatch"
	PromptAskReason        Prompt = "ask_reason"
	PromptOrderResolved    Prompt = "order_resolved"
	PromptFinalizeRefused  Prompt = "finalize_refused"
	PromptRouteFinalized   Prompt = "route_finalized"
	PromptRouteCancelled   Prompt = "route_cancelled"
	PromptNothingToCancel  Prompt = "nothing_to_cancel"
	PromptSessionExpired   Prompt = "session_expired"
	PromptRetryLater       Prompt = "retry_later"
)

type Notice string

const (
	NoticeResumed             Notice = "resumed"
	NoticeQueueBusy           Notice = "queue_busy"
	NoticeQuotaExceeded       Notice = "quota_exceeded"
	NoticeDistanceUnavailable Notice = "distance_unavailable"
	NoticeUnlocatedOrders     Notice = "unlocated_orders"
	NoticeNoTotals            Notice = "no_totals"
)

// Reply tells the transport what to show. Only the fields relevant to
// Prompt are set.
type Reply struct {
	Prompt    Prompt
	Stage     models.StageKind
	Notices   []Notice
	Order     *models.Order
	Orders    []*models.Order
	Route     *models.Route
	Summary   *models.RouteSummary
	AmountDue int64
	Reasons   []string
}

func (r *Reply) Has(n Notice) bool {
	for _, x := range r.Notices {
		if x == n {
			return true
		}
	}
	return false
}

// Notifier pushes a reply to a courier outside the request/response cycle.
type Notifier interface {
	Notify(ctx context.Context, courierID int64, reply *Reply)
}
