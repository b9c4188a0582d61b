package bot

import (
	"fmt"
	"strconv"
	"strings"

	"courierbot/pkg/models"
	"courierbot/service"
)

// Inline button payloads. Order-scoped actions carry the order id after the
// prefix; reasons carry the order id and the reason index.
const (
	cbStartRoute = "start_route"
	cbSelect     = "sel_"
	cbKeep       = "keep_"
	cbEdit       = "edit_"
	cbConclude   = "conclude"
	cbDeliver    = "deliver_"
	cbFail       = "fail_"
	cbReason     = "reason_"
	cbRoute      = "route"
	cbFinalize   = "finalize"
	cbCancel     = "cancel"
	cbExit       = "exit"
)

var fixedCallbacks = map[string]service.EventKind{
	cbStartRoute: service.EventStartRoute,
	cbConclude:   service.EventConcludeEditing,
	cbRoute:      service.EventShowRoute,
	cbFinalize:   service.EventFinalize,
	cbCancel:     service.EventCancel,
	cbExit:       service.EventExit,
}

var orderCallbacks = []struct {
	prefix string
	kind   service.EventKind
}{
	{cbSelect, service.EventSelectOrder},
	{cbKeep, service.EventKeepAddress},
	{cbEdit, service.EventEditAddress},
	{cbDeliver, service.EventDeliver},
	{cbFail, service.EventFail},
}

func parseCallback(data string) (service.Event, bool) {
	// telebot prefixes unique button data with \f
	data = strings.TrimPrefix(strings.TrimSpace(data), "\f")

	if kind, ok := fixedCallbacks[data]; ok {
		return service.Event{Kind: kind}, true
	}

	if rest, ok := strings.CutPrefix(data, cbReason); ok {
		idPart, idxPart, found := strings.Cut(rest, "_")
		if !found {
			return service.Event{}, false
		}
		id, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			return service.Event{}, false
		}
		idx, err := strconv.Atoi(idxPart)
		if err != nil || idx < 0 || idx >= len(models.FailureReasons) {
			return service.Event{}, false
		}
		return service.Event{Kind: service.EventReason, OrderID: id, Text: models.FailureReasons[idx]}, true
	}

	for _, cb := range orderCallbacks {
		if rest, ok := strings.CutPrefix(data, cb.prefix); ok {
			id, err := strconv.ParseInt(rest, 10, 64)
			if err != nil {
				return service.Event{}, false
			}
			return service.Event{Kind: cb.kind, OrderID: id}, true
		}
	}
	return service.Event{}, false
}

func orderData(prefix string, orderID int64) string {
	return fmt.Sprintf("%s%d", prefix, orderID)
}

func reasonData(orderID int64, idx int) string {
	return fmt.Sprintf("%s%d_%d", cbReason, orderID, idx)
}
