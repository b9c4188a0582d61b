package bot

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"courierbot/pkg/models"
	"courierbot/service"

	tele "gopkg.in/telebot.v3"
)

func msg(key string, args ...interface{}) string {
	if len(args) == 0 {
		return messages["pt"][key]
	}
	return fmt.Sprintf(messages["pt"][key], args...)
}

// render turns a session reply into the message text and keyboard. An empty
// text means nothing is sent.
func render(r *service.Reply) (string, *tele.ReplyMarkup) {
	var (
		lines  []string
		markup *tele.ReplyMarkup
	)

	switch r.Prompt {
	case service.PromptNone:
		return "", nil
	case service.PromptMenu:
		lines, markup = []string{msg("menu")}, mainMenu()
	case service.PromptNoOrders:
		lines, markup = []string{msg("no_orders")}, mainMenu()
	case service.PromptNoActiveRoute:
		lines, markup = []string{msg("no_active_route")}, mainMenu()
	case service.PromptAskOrigin:
		lines = []string{msg("ask_origin", len(r.Orders))}
	case service.PromptInvalidOrigin:
		lines = []string{msg("invalid_origin")}
	case service.PromptReviewAddresses, service.PromptAddressUpdated:
		if r.Prompt == service.PromptAddressUpdated {
			lines = append(lines, msg("address_updated"))
		}
		lines = append(lines, msg("review"), orderList(r.Orders))
		markup = reviewMarkup(r.Orders)
	case service.PromptOrderDetail:
		lines, markup = []string{orderDetail(r.Order)}, detailMarkup(r.Order)
	case service.PromptAskAddress:
		lines = []string{msg("ask_address", r.Order.ID, html.EscapeString(r.Order.Address))}
	case service.PromptInvalidAddress:
		lines = []string{msg("invalid_address")}
	case service.PromptBuilding:
		lines = []string{msg("building")}
	case service.PromptRouteBuilt, service.PromptRouteStatus, service.PromptRouteActive:
		header := map[service.Prompt]string{
			service.PromptRouteBuilt:  "route_built",
			service.PromptRouteStatus: "route_status",
			service.PromptRouteActive: "route_active",
		}[r.Prompt]
		lines = []string{msg(header), routeText(r.Route)}
		markup = routeMarkup(r.Route.Pending())
	case service.PromptOrderUnavailable:
		lines = []string{msg("order_unavailable")}
		if r.Route != nil {
			lines = append(lines, routeText(r.Route))
			markup = routeMarkup(r.Route.Pending())
		} else if len(r.Orders) > 0 {
			lines = append(lines, orderList(r.Orders))
			markup = reviewMarkup(r.Orders)
		}
	case service.PromptAskAmount:
		lines = []string{msg("ask_amount", r.Order.ID, formatMoney(r.AmountDue))}
	case service.PromptInvalidAmount:
		lines = []string{msg("invalid_amount", formatMoney(r.AmountDue))}
	case service.PromptAmountMismatch:
		lines = []string{msg("amount_mismatch", formatMoney(r.AmountDue))}
	case service.PromptAskReason:
		lines, markup = []string{msg("ask_reason", r.Order.ID)}, reasonMarkup(r.Order.ID, r.Reasons)
	case service.PromptOrderResolved:
		lines = []string{resolvedLine(r.Order)}
		if len(r.Orders) > 0 {
			lines = append(lines, msg("pending_left", len(r.Orders)), orderList(r.Orders))
			markup = routeMarkup(r.Orders)
		}
	case service.PromptFinalizeRefused:
		lines = []string{msg("finalize_refused"), orderList(r.Orders)}
		markup = routeMarkup(r.Orders)
	case service.PromptRouteFinalized:
		if r.Order != nil {
			lines = append(lines, resolvedLine(r.Order))
		}
		lines = append(lines, summaryText(r.Summary))
		markup = mainMenu()
	case service.PromptRouteCancelled:
		lines, markup = []string{msg("route_cancelled")}, mainMenu()
	case service.PromptNothingToCancel:
		lines = []string{msg("nothing_cancel")}
	case service.PromptSessionExpired:
		lines, markup = []string{msg("session_expired")}, mainMenu()
	case service.PromptRetryLater:
		lines = []string{msg("retry_later")}
	default:
		lines = []string{msg("menu")}
	}

	for _, n := range r.Notices {
		if text, ok := noticeMessages[n]; ok {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n\n"), markup
}

func mainMenu() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	menu.Reply(
		menu.Row(menu.Text(BtnStartRoute), menu.Text(BtnMyRoute)),
		menu.Row(menu.Text(BtnFinalize), menu.Text(BtnCancel)),
	)
	return menu
}

func reviewMarkup(orders []*models.Order) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, o := range orders {
		rows = append(rows, menu.Row(menu.Data(msg("btn_order", o.ID, o.ClientReference), orderData(cbSelect, o.ID))))
	}
	rows = append(rows, menu.Row(menu.Data(msg("btn_conclude"), cbConclude), menu.Data(msg("btn_cancel"), cbCancel)))
	menu.Inline(rows...)
	return menu
}

func detailMarkup(o *models.Order) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(
		menu.Data(msg("btn_keep"), orderData(cbKeep, o.ID)),
		menu.Data(msg("btn_edit"), orderData(cbEdit, o.ID)),
	))
	return menu
}

func routeMarkup(pending []*models.Order) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, o := range pending {
		rows = append(rows, menu.Row(
			menu.Data(msg("btn_deliver", o.ID), orderData(cbDeliver, o.ID)),
			menu.Data(msg("btn_fail", o.ID), orderData(cbFail, o.ID)),
		))
	}
	rows = append(rows, menu.Row(menu.Data(msg("btn_finalize"), cbFinalize), menu.Data(msg("btn_cancel"), cbCancel)))
	menu.Inline(rows...)
	return menu
}

func reasonMarkup(orderID int64, reasons []string) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	var rows []tele.Row
	for i, reason := range reasons {
		rows = append(rows, menu.Row(menu.Data(reason, reasonData(orderID, i))))
	}
	menu.Inline(rows...)
	return menu
}

func orderList(orders []*models.Order) string {
	var sb strings.Builder
	for i, o := range orders {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "• #%d %s\n  %s", o.ID, html.EscapeString(o.ClientReference), html.EscapeString(o.Address))
	}
	return sb.String()
}

func orderDetail(o *models.Order) string {
	return fmt.Sprintf("📦 <b>Pedido #%d</b>\n👤 %s\n📍 %s\n💳 %s\n💰 %s",
		o.ID,
		html.EscapeString(o.ClientReference),
		html.EscapeString(o.Address),
		html.EscapeString(string(o.PaymentMethod)),
		formatMoney(o.TotalCents))
}

func resolvedLine(o *models.Order) string {
	if o == nil {
		return ""
	}
	if o.Status == models.OrderStatusFailed {
		return msg("order_failed", o.ID)
	}
	return msg("order_delivered", o.ID)
}

func routeText(r *models.Route) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏠 %s", html.EscapeString(r.OriginAddress))
	for i, s := range r.Stops {
		o := s.Order
		fmt.Fprintf(&sb, "\n\n%d. %s #%d %s\n   %s", i+1, stopIcon(o.Status), o.ID,
			html.EscapeString(o.ClientReference), html.EscapeString(o.Address))
		switch {
		case !s.Located:
			sb.WriteString("\n   ⚠️ sem localização")
		case s.Leg != nil:
			fmt.Fprintf(&sb, "\n   %s • ~%s", formatKM(s.Leg.DistanceMeters), formatDuration(time.Duration(s.Leg.DurationSeconds)*time.Second))
		}
		if s.Located {
			fmt.Fprintf(&sb, "\n   <a href=\"%s\">Abrir no mapa</a>", html.EscapeString(placeLink(o.Address)))
		}
	}

	if r.HasTotals {
		fmt.Fprintf(&sb, "\n\n📏 Total: %s • ~%s", formatKM(r.TotalDistanceMeters),
			formatDuration(time.Duration(r.TotalDurationSeconds)*time.Second))
	}
	if link := routeLink(r); link != "" {
		fmt.Fprintf(&sb, "\n🗺 <a href=\"%s\">Rota completa no Google Maps</a>", html.EscapeString(link))
	}
	return sb.String()
}

func stopIcon(s models.OrderStatus) string {
	switch s {
	case models.OrderStatusDelivered:
		return "✅"
	case models.OrderStatusFailed:
		return "❌"
	}
	return "⏳"
}

func summaryText(s *models.RouteSummary) string {
	if s == nil {
		return msg("route_finalized")
	}
	var sb strings.Builder
	sb.WriteString(msg("route_finalized"))
	fmt.Fprintf(&sb, "\n✅ Entregues: %d\n❌ Falhas: %d", s.Delivered, s.Failed)
	if s.HasTotals {
		fmt.Fprintf(&sb, "\n📏 Distância estimada: %s\n⏱ Tempo estimado: %s",
			formatKM(s.TotalDistanceMeters), formatDuration(time.Duration(s.EstimatedSeconds)*time.Second))
	}
	fmt.Fprintf(&sb, "\n🕒 Tempo total: %s\n⌛ Média por pedido: %s",
		formatDuration(s.Elapsed), formatDuration(s.AveragePerOrder))
	return sb.String()
}

func placeLink(address string) string {
	return "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(address)
}

// routeLink opens directions from the origin through the pending located
// stops, in route order.
func routeLink(r *models.Route) string {
	var stops []string
	for _, s := range r.Stops {
		if s.Located && !s.Order.Status.IsTerminal() {
			stops = append(stops, s.Order.Address)
		}
	}
	if len(stops) == 0 {
		return ""
	}

	q := url.Values{}
	q.Set("api", "1")
	q.Set("origin", r.OriginAddress)
	q.Set("destination", stops[len(stops)-1])
	q.Set("travelmode", "driving")
	if len(stops) > 1 {
		q.Set("waypoints", strings.Join(stops[:len(stops)-1], "|"))
	}
	return "https://www.google.com/maps/dir/?" + q.Encode()
}

func formatMoney(cents int64) string {
	return fmt.Sprintf("R$ %d,%02d", cents/100, cents%100)
}

func formatKM(meters int) string {
	return strings.Replace(fmt.Sprintf("%.1f km", float64(meters)/1000), ".", ",", 1)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h, m := int(d.Hours()), int(d.Minutes())%60
	if h == 0 {
		return fmt.Sprintf("%d min", m)
	}
	return fmt.Sprintf("%dh%02dmin", h, m)
}
