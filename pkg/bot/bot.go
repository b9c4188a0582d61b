package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"courierbot/config"
	"courierbot/pkg/logger"
	"courierbot/pkg/models"
	"courierbot/service"
	"courierbot/storage"

	tele "gopkg.in/telebot.v3"
)

type Bot struct {
	Bot     *tele.Bot
	Log     logger.ILogger
	Cfg     *config.Config
	Stg     storage.IStorage
	Session *service.SessionService
}

// Reply keyboard labels.
const (
	BtnStartRoute = "🚚 Iniciar rota"
	BtnMyRoute    = "📍 Minha rota"
	BtnFinalize   = "🏁 Finalizar rota"
	BtnCancel     = "❌ Cancelar"
)

func New(cfg *config.Config, stg storage.IStorage, svc service.IServiceManager, log logger.ILogger) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.TelegramBotToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error("telegram handler failed", logger.Error(err))
		},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}
	bot := &Bot{
		Bot:     b,
		Log:     log,
		Cfg:     cfg,
		Stg:     stg,
		Session: svc.Session(),
	}
	bot.Session.SetNotifier(bot)
	bot.registerHandlers()
	return bot, nil
}

func (b *Bot) Start() {
	b.Log.Info("🤖 Courier bot started...")
	b.Bot.Start()
}

func (b *Bot) Stop() {
	b.Bot.Stop()
}

func (b *Bot) registerHandlers() {
	b.Bot.Handle("/start", b.handleStart)
	b.Bot.Handle(BtnStartRoute, b.handleButton(service.EventStartRoute))
	b.Bot.Handle(BtnMyRoute, b.handleButton(service.EventShowRoute))
	b.Bot.Handle(BtnFinalize, b.handleButton(service.EventFinalize))
	b.Bot.Handle(BtnCancel, b.handleButton(service.EventCancel))

	b.Bot.Handle(tele.OnCallback, b.handleCallback)
	b.Bot.Handle(tele.OnText, b.handleText)
}

func (b *Bot) handleStart(c tele.Context) error {
	courier, err := b.courier(c)
	if err != nil || courier == nil {
		return err
	}
	return c.Send(fmt.Sprintf(messages["pt"]["welcome"], courier.FullName), mainMenu())
}

func (b *Bot) handleButton(kind service.EventKind) tele.HandlerFunc {
	return func(c tele.Context) error {
		return b.dispatch(c, service.Event{Kind: kind})
	}
}

func (b *Bot) handleText(c tele.Context) error {
	text := strings.TrimSpace(c.Text())
	if strings.EqualFold(text, "sair") {
		return b.dispatch(c, service.Event{Kind: service.EventExit})
	}
	return b.dispatch(c, service.Event{Kind: service.EventText, Text: text})
}

func (b *Bot) handleCallback(c tele.Context) error {
	ev, ok := parseCallback(c.Callback().Data)
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: messages["pt"]["unknown_action"]})
	}
	_ = c.Respond()
	return b.dispatch(c, ev)
}

// courier resolves the sender to a registered courier. Unknown chats are
// told so and get a nil courier.
func (b *Bot) courier(c tele.Context) (*models.Courier, error) {
	courier, err := b.Stg.Courier().GetByChatID(context.Background(), c.Sender().ID)
	if err != nil {
		b.Log.Error("courier lookup failed", logger.Int64("chat_id", c.Sender().ID), logger.Error(err))
		return nil, c.Send(messages["pt"]["retry_later"])
	}
	if courier == nil || !courier.Active {
		return nil, c.Send(messages["pt"]["not_registered"])
	}
	return courier, nil
}

func (b *Bot) dispatch(c tele.Context, ev service.Event) error {
	courier, err := b.courier(c)
	if err != nil || courier == nil {
		return err
	}

	reply, err := b.Session.Handle(context.Background(), courier.ID, ev)
	if err != nil {
		b.Log.Error("session event failed",
			logger.Int64("courier_id", courier.ID),
			logger.String("event", string(ev.Kind)),
			logger.Error(err))
		return c.Send(messages["pt"]["retry_later"])
	}
	return b.send(c.Recipient(), reply)
}

func (b *Bot) send(to tele.Recipient, reply *service.Reply) error {
	text, markup := render(reply)
	if text == "" {
		return nil
	}
	opts := []interface{}{tele.ModeHTML, tele.NoPreview}
	if markup != nil {
		opts = append(opts, markup)
	}
	_, err := b.Bot.Send(to, text, opts...)
	return err
}

// Notify delivers a reply produced outside a chat update, such as the
// notice sent when a route build starts.
func (b *Bot) Notify(ctx context.Context, courierID int64, reply *service.Reply) {
	courier, err := b.Stg.Courier().GetByID(ctx, courierID)
	if err != nil || courier == nil {
		b.Log.Warning("notify: courier not found", logger.Int64("courier_id", courierID))
		return
	}
	if err := b.send(&tele.User{ID: courier.ChatID}, reply); err != nil {
		b.Log.Error("notify failed", logger.Int64("courier_id", courierID), logger.Error(err))
	}
}
