package bot

import "courierbot/service"

var messages = map[string]map[string]string{
	"pt": {
		"welcome":           "👋 Olá, %s! Use o menu abaixo para gerenciar suas entregas.",
		"not_registered":    "🚫 Este chat não está cadastrado como entregador.",
		"unknown_action":    "Ação desconhecida.",
		"retry_later":       "⚠️ Não foi possível concluir agora. Tente novamente em instantes.",
		"menu":              "📋 Menu do entregador:",
		"no_orders":         "📭 Você não tem pedidos atribuídos no momento.",
		"no_active_route":   "📭 Você não tem rota ativa.",
		"ask_origin":        "📍 Você tem %d pedido(s). Informe o endereço de partida:",
		"invalid_origin":    "❌ Endereço de partida não encontrado. Informe um endereço válido:",
		"review":            "📝 Confira os endereços. Toque em um pedido para editar ou conclua para gerar a rota:",
		"order_unavailable": "⚠️ Este pedido não está mais disponível.",
		"address_updated":   "✅ Endereço atualizado.",
		"ask_address":       "✏️ Endereço atual do pedido #%d:\n%s\n\nDigite o novo endereço:",
		"invalid_address":   "❌ Endereço não encontrado. O endereço anterior foi mantido. Digite outro endereço:",
		"building":          "⏳ Calculando a melhor rota...",
		"route_built":       "✅ Rota criada!",
		"route_status":      "📍 Sua rota:",
		"route_active":      "ℹ️ Você já tem uma rota em andamento.",
		"ask_amount":        "💵 Pedido #%d: valor a receber %s.\nDigite o valor recebido:",
		"invalid_amount":    "❌ Valor inválido. Digite o valor recebido (ex.: 50,00). Esperado: %s",
		"amount_mismatch":   "❌ O valor não confere. Esperado: %s. Digite novamente:",
		"ask_reason":        "❓ Pedido #%d: qual o motivo da falha?",
		"order_delivered":   "✅ Pedido #%d entregue.",
		"order_failed":      "❌ Pedido #%d marcado como falha.",
		"pending_left":      "Pendentes: %d",
		"finalize_refused":  "⚠️ Ainda há pedidos pendentes. Resolva todos antes de finalizar:",
		"route_finalized":   "🏁 <b>Rota finalizada</b>",
		"route_cancelled":   "🚫 Operação cancelada.",
		"nothing_cancel":    "Nada para cancelar.",
		"session_expired":   "⌛ Sua sessão expirou por inatividade. Seus pedidos foram mantidos; toque em Iniciar rota para continuar.",

		"btn_conclude": "✅ Concluir edição",
		"btn_keep":     "👍 Manter",
		"btn_edit":     "✏️ Editar endereço",
		"btn_deliver":  "✅ #%d Entregue",
		"btn_fail":     "❌ #%d Falha",
		"btn_finalize": "🏁 Finalizar",
		"btn_cancel":   "🚫 Cancelar",
		"btn_order":    "#%d %s",
	},
}

var noticeMessages = map[service.Notice]string{
	service.NoticeResumed:             "🔄 Rota em andamento retomada.",
	service.NoticeQueueBusy:           "⏳ Muitas rotas em cálculo; a sua está na fila.",
	service.NoticeQuotaExceeded:       "⚠️ Limite diário de consultas de distância atingido. Pedidos restantes seguem a ordem original.",
	service.NoticeDistanceUnavailable: "⚠️ Algumas distâncias não puderam ser calculadas.",
	service.NoticeUnlocatedOrders:     "⚠️ Pedidos sem localização foram colocados no final da rota.",
	service.NoticeNoTotals:            "ℹ️ Distância e tempo totais indisponíveis.",
}
