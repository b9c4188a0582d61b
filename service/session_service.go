package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"courierbot/pkg/logger"
	"courierbot/pkg/maps"
	"courierbot/pkg/models"
	"courierbot/storage"
)

const minAddressLength = 5

// SessionService drives each courier's conversation. Events of one courier
// are handled one at a time; the lock is released while a route is being
// built so that a cancel can get through.
type SessionService struct {
	sessions    storage.ISessionStorage
	ledger      *DeliveryLedger
	builder     *RouteBuilder
	geocoder    maps.Geocoder
	notifier    Notifier
	idleTimeout time.Duration
	locks       courierLocks
	log         logger.ILogger
	now         func() time.Time
}

func NewSessionService(sessions storage.ISessionStorage, ledger *DeliveryLedger, builder *RouteBuilder, geocoder maps.Geocoder, idleTimeout time.Duration, log logger.ILogger) *SessionService {
	return &SessionService{
		sessions:    sessions,
		ledger:      ledger,
		builder:     builder,
		geocoder:    geocoder,
		idleTimeout: idleTimeout,
		locks:       courierLocks{locks: make(map[int64]*sync.Mutex)},
		log:         log,
		now:         time.Now,
	}
}

func (s *SessionService) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *SessionService) Handle(ctx context.Context, courierID int64, ev Event) (*Reply, error) {
	unlock := s.locks.lock(courierID)

	sess, err := s.load(ctx, courierID)
	if err != nil {
		unlock()
		return nil, err
	}

	now := s.now()
	if sess.Expired(now, s.idleTimeout) {
		s.log.Info("session expired",
			logger.Int64("courier_id", courierID),
			logger.String("stage", string(sess.Stage.Kind())))
		sess.Stage = models.IdleStage{}
		err := s.store(ctx, sess)
		unlock()
		if err != nil {
			return nil, err
		}
		return &Reply{Prompt: PromptSessionExpired, Stage: models.StageIdle}, nil
	}
	sess.LastActivity = now

	if st, ok := sess.Stage.(models.ReviewingAddressesStage); ok && ev.Kind == EventConcludeEditing {
		return s.buildRoute(ctx, sess, st, unlock)
	}
	defer unlock()

	prev := sess.Stage.Kind()
	reply, err := s.dispatch(ctx, sess, ev)
	if err != nil {
		return nil, err
	}
	if err := s.store(ctx, sess); err != nil {
		return nil, err
	}
	if next := sess.Stage.Kind(); next != prev {
		s.log.Debug("session stage changed",
			logger.Int64("courier_id", courierID),
			logger.String("from", string(prev)),
			logger.String("to", string(next)))
	}
	reply.Stage = sess.Stage.Kind()
	return reply, nil
}

func (s *SessionService) load(ctx context.Context, courierID int64) (*models.CourierSession, error) {
	sess, err := s.sessions.Get(ctx, courierID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess = models.NewCourierSession(courierID, s.now())
	}
	return sess, nil
}

// store drops idle sessions, since a missing session loads as idle.
func (s *SessionService) store(ctx context.Context, sess *models.CourierSession) error {
	if sess.Stage == nil || sess.Stage.Kind() == models.StageIdle {
		return s.sessions.Delete(ctx, sess.CourierID)
	}
	return s.sessions.Save(ctx, sess)
}

func (s *SessionService) dispatch(ctx context.Context, sess *models.CourierSession, ev Event) (*Reply, error) {
	switch ev.Kind {
	case EventCancel:
		return s.cancel(ctx, sess)
	case EventExit:
		sess.Stage = models.IdleStage{}
		return &Reply{Prompt: PromptMenu}, nil
	}

	switch st := sess.Stage.(type) {
	case models.AwaitingOriginStage:
		return s.onAwaitingOrigin(ctx, sess, ev)
	case models.ReviewingAddressesStage:
		return s.onReviewing(ctx, sess, st, ev)
	case models.BuildingRouteStage:
		return &Reply{Prompt: PromptBuilding}, nil
	case models.RouteActiveStage:
		return s.onRouteActive(ctx, sess, st, ev)
	case models.FinalizingStage:
		return s.finalize(ctx, sess, st.RouteID, nil)
	default:
		return s.onIdle(ctx, sess, ev)
	}
}

func (s *SessionService) onIdle(ctx context.Context, sess *models.CourierSession, ev Event) (*Reply, error) {
	switch ev.Kind {
	case EventStartRoute, EventShowRoute, EventFinalize:
	default:
		return &Reply{Prompt: PromptMenu}, nil
	}

	route, err := s.ledger.ActiveRoute(ctx, sess.CourierID)
	if err != nil {
		return nil, err
	}
	if route != nil {
		if ev.Kind == EventFinalize {
			sess.Stage = models.FinalizingStage{RouteID: route.ID}
			return s.finalize(ctx, sess, route.ID, nil)
		}
		sess.Stage = models.RouteActiveStage{RouteID: route.ID}
		return &Reply{
			Prompt:  PromptRouteStatus,
			Notices: []Notice{NoticeResumed},
			Route:   route,
			Orders:  route.Pending(),
		}, nil
	}
	if ev.Kind != EventStartRoute {
		return &Reply{Prompt: PromptNoActiveRoute}, nil
	}

	orders, err := s.ledger.AssignedOrders(ctx, sess.CourierID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return &Reply{Prompt: PromptNoOrders}, nil
	}
	sess.Stage = models.AwaitingOriginStage{}
	return &Reply{Prompt: PromptAskOrigin, Orders: orders}, nil
}

func (s *SessionService) onAwaitingOrigin(ctx context.Context, sess *models.CourierSession, ev Event) (*Reply, error) {
	if ev.Kind != EventText {
		return &Reply{Prompt: PromptAskOrigin}, nil
	}

	origin := strings.TrimSpace(ev.Text)
	if !s.resolvable(ctx, origin) {
		return &Reply{Prompt: PromptInvalidOrigin}, nil
	}

	orders, err := s.ledger.AssignedOrders(ctx, sess.CourierID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		sess.Stage = models.IdleStage{}
		return &Reply{Prompt: PromptNoOrders}, nil
	}
	sess.Stage = models.ReviewingAddressesStage{Origin: origin}
	return &Reply{Prompt: PromptReviewAddresses, Orders: orders}, nil
}

func (s *SessionService) onReviewing(ctx context.Context, sess *models.CourierSession, st models.ReviewingAddressesStage, ev Event) (*Reply, error) {
	switch ev.Kind {
	case EventSelectOrder, EventEditAddress:
		order, err := s.ledger.AssignedOrder(ctx, sess.CourierID, ev.OrderID)
		if errors.Is(err, storage.ErrOrderNotAssigned) {
			return s.reviewList(ctx, sess.CourierID, PromptOrderUnavailable)
		}
		if err != nil {
			return nil, err
		}
		if ev.Kind == EventSelectOrder {
			return &Reply{Prompt: PromptOrderDetail, Order: order}, nil
		}
		st.EditingOrderID = order.ID
		sess.Stage = st
		return &Reply{Prompt: PromptAskAddress, Order: order}, nil

	case EventKeepAddress:
		st.EditingOrderID = 0
		sess.Stage = st
		return s.reviewList(ctx, sess.CourierID, PromptReviewAddresses)

	case EventText:
		if st.EditingOrderID == 0 {
			return s.reviewList(ctx, sess.CourierID, PromptReviewAddresses)
		}
		return s.editAddress(ctx, sess, st, strings.TrimSpace(ev.Text))
	}
	return s.reviewList(ctx, sess.CourierID, PromptReviewAddresses)
}

// editAddress stores a new address only when it geocodes; otherwise the
// order keeps its previous address and the courier is asked again.
func (s *SessionService) editAddress(ctx context.Context, sess *models.CourierSession, st models.ReviewingAddressesStage, address string) (*Reply, error) {
	order, err := s.ledger.AssignedOrder(ctx, sess.CourierID, st.EditingOrderID)
	if errors.Is(err, storage.ErrOrderNotAssigned) {
		st.EditingOrderID = 0
		sess.Stage = st
		return s.reviewList(ctx, sess.CourierID, PromptOrderUnavailable)
	}
	if err != nil {
		return nil, err
	}

	if !s.resolvable(ctx, address) {
		return &Reply{Prompt: PromptInvalidAddress, Order: order}, nil
	}

	err = s.ledger.UpdateAddress(ctx, sess.CourierID, order.ID, address)
	if errors.Is(err, storage.ErrOrderNotAssigned) {
		st.EditingOrderID = 0
		sess.Stage = st
		return s.reviewList(ctx, sess.CourierID, PromptOrderUnavailable)
	}
	if err != nil {
		return nil, err
	}

	order.Address = address
	st.EditingOrderID = 0
	sess.Stage = st
	reply, err := s.reviewList(ctx, sess.CourierID, PromptAddressUpdated)
	if err != nil {
		return nil, err
	}
	reply.Order = order
	return reply, nil
}

func (s *SessionService) reviewList(ctx context.Context, courierID int64, prompt Prompt) (*Reply, error) {
	orders, err := s.ledger.AssignedOrders(ctx, courierID)
	if err != nil {
		return nil, err
	}
	return &Reply{Prompt: prompt, Orders: orders}, nil
}

func (s *SessionService) resolvable(ctx context.Context, address string) bool {
	if utf8.RuneCountInString(address) < minAddressLength {
		return false
	}
	_, ok := s.geocoder.Geocode(ctx, address)
	return ok
}

// buildRoute runs without the courier lock held. The result is only applied
// if the session is still waiting for this very build.
func (s *SessionService) buildRoute(ctx context.Context, sess *models.CourierSession, st models.ReviewingAddressesStage, unlock func()) (*Reply, error) {
	courierID := sess.CourierID
	token := uuid.NewString()
	sess.Stage = models.BuildingRouteStage{Origin: st.Origin, BuildToken: token}
	err := s.sessions.Save(ctx, sess)
	unlock()
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		building := &Reply{Prompt: PromptBuilding, Stage: models.StageBuildingRoute}
		if s.builder.Busy() {
			building.Notices = append(building.Notices, NoticeQueueBusy)
		}
		s.notifier.Notify(ctx, courierID, building)
	}

	orders, err := s.ledger.AssignedOrders(ctx, courierID)
	var result *BuildResult
	if err == nil && len(orders) > 0 {
		result, err = s.builder.Build(ctx, BuildRequest{
			CourierID: courierID,
			Origin:    st.Origin,
			Orders:    orders,
			Abandoned: func() bool { return s.abandoned(ctx, courierID, token) },
		})
	}

	defer s.locks.lock(courierID)()

	cur, lerr := s.load(ctx, courierID)
	if lerr != nil {
		return nil, lerr
	}
	if b, ok := cur.Stage.(models.BuildingRouteStage); !ok || b.BuildToken != token {
		s.log.Info("route build discarded", logger.Int64("courier_id", courierID))
		return &Reply{Prompt: PromptNone, Stage: cur.Stage.Kind()}, nil
	}
	cur.LastActivity = s.now()

	reply := s.applyBuild(ctx, cur, st, orders, result, err)
	if err := s.store(ctx, cur); err != nil {
		return nil, err
	}
	reply.Stage = cur.Stage.Kind()
	return reply, nil
}

func (s *SessionService) applyBuild(ctx context.Context, sess *models.CourierSession, st models.ReviewingAddressesStage, orders []*models.Order, result *BuildResult, err error) *Reply {
	switch {
	case err == nil && len(orders) == 0, errors.Is(err, ErrNoOrders):
		sess.Stage = models.IdleStage{}
		return &Reply{Prompt: PromptNoOrders}
	case errors.Is(err, ErrInvalidOrigin):
		sess.Stage = models.AwaitingOriginStage{}
		return &Reply{Prompt: PromptInvalidOrigin}
	case err != nil:
		s.log.Error("route build failed", logger.Int64("courier_id", sess.CourierID), logger.Error(err))
		sess.Stage = models.ReviewingAddressesStage{Origin: st.Origin}
		return &Reply{Prompt: PromptRetryLater}
	}

	route := result.Route
	if err := s.ledger.StartRoute(ctx, route); err != nil {
		if errors.Is(err, storage.ErrRouteAlreadyActive) {
			active, aerr := s.ledger.ActiveRoute(ctx, sess.CourierID)
			if aerr == nil && active != nil {
				sess.Stage = models.RouteActiveStage{RouteID: active.ID}
				return &Reply{Prompt: PromptRouteActive, Route: active, Orders: active.Pending()}
			}
		}
		sess.Stage = models.ReviewingAddressesStage{Origin: st.Origin}
		return &Reply{Prompt: PromptRetryLater}
	}

	sess.Stage = models.RouteActiveStage{RouteID: route.ID}
	reply := &Reply{Prompt: PromptRouteBuilt, Route: route, Orders: route.Unlocated()}
	if len(reply.Orders) > 0 {
		reply.Notices = append(reply.Notices, NoticeUnlocatedOrders)
	}
	if !route.HasTotals {
		reply.Notices = append(reply.Notices, NoticeNoTotals)
	}
	switch {
	case result.QuotaExceeded:
		reply.Notices = append(reply.Notices, NoticeQuotaExceeded)
	case result.UnavailableLegs > 0:
		reply.Notices = append(reply.Notices, NoticeDistanceUnavailable)
	}
	return reply
}

func (s *SessionService) abandoned(ctx context.Context, courierID int64, token string) bool {
	sess, err := s.sessions.Get(ctx, courierID)
	if err != nil || sess == nil {
		return err == nil
	}
	b, ok := sess.Stage.(models.BuildingRouteStage)
	return !ok || b.BuildToken != token
}

func (s *SessionService) onRouteActive(ctx context.Context, sess *models.CourierSession, st models.RouteActiveStage, ev Event) (*Reply, error) {
	route, err := s.ledger.Route(ctx, st.RouteID)
	if err != nil {
		return nil, err
	}
	if route == nil || route.EndedAt != nil {
		sess.Stage = models.IdleStage{}
		return &Reply{Prompt: PromptNoActiveRoute}, nil
	}

	switch ev.Kind {
	case EventDeliver, EventFail, EventReason:
		stop, ok := route.Stop(ev.OrderID)
		if !ok || stop.Order.Status.IsTerminal() {
			return s.routeStatus(sess, st, route, PromptOrderUnavailable), nil
		}
		order := stop.Order

		switch ev.Kind {
		case EventDeliver:
			if order.PaymentMethod.RequiresCashCheck() {
				st.Input = models.PendingInput{Kind: models.InputCashAmount, OrderID: order.ID}
				sess.Stage = st
				return &Reply{Prompt: PromptAskAmount, Order: order, AmountDue: order.AmountDue()}, nil
			}
			return s.resolve(ctx, sess, st, order, Resolution{Outcome: models.OutcomeDelivered})
		case EventFail:
			st.Input = models.PendingInput{Kind: models.InputReason, OrderID: order.ID}
			sess.Stage = st
			return &Reply{Prompt: PromptAskReason, Order: order, Reasons: models.FailureReasons}, nil
		default:
			return s.resolve(ctx, sess, st, order, Resolution{Outcome: models.OutcomeFailed, Reason: ev.Text})
		}

	case EventText:
		if st.Input.Kind == models.InputNone {
			return s.routeStatus(sess, st, route, PromptRouteStatus), nil
		}
		stop, ok := route.Stop(st.Input.OrderID)
		if !ok || stop.Order.Status.IsTerminal() {
			return s.routeStatus(sess, st, route, PromptOrderUnavailable), nil
		}
		order := stop.Order

		if st.Input.Kind == models.InputCashAmount {
			amount, err := ParseAmount(ev.Text)
			if err != nil {
				return &Reply{Prompt: PromptInvalidAmount, Order: order, AmountDue: order.AmountDue()}, nil
			}
			return s.resolve(ctx, sess, st, order, Resolution{Outcome: models.OutcomeDelivered, ReceivedCents: &amount})
		}
		return s.resolve(ctx, sess, st, order, Resolution{Outcome: models.OutcomeFailed, Reason: ev.Text})

	case EventFinalize:
		sess.Stage = models.FinalizingStage{RouteID: route.ID}
		return s.finalize(ctx, sess, route.ID, nil)
	}
	return s.routeStatus(sess, st, route, PromptRouteStatus), nil
}

func (s *SessionService) routeStatus(sess *models.CourierSession, st models.RouteActiveStage, route *models.Route, prompt Prompt) *Reply {
	st.Input = models.PendingInput{}
	sess.Stage = st
	return &Reply{Prompt: prompt, Route: route, Orders: route.Pending()}
}

func (s *SessionService) resolve(ctx context.Context, sess *models.CourierSession, st models.RouteActiveStage, order *models.Order, res Resolution) (*Reply, error) {
	updated, err := s.ledger.ResolveOrder(ctx, sess.CourierID, order.ID, res)
	switch {
	case errors.Is(err, ErrAmountMismatch):
		return &Reply{Prompt: PromptAmountMismatch, Order: order, AmountDue: order.AmountDue()}, nil
	case errors.Is(err, ErrAmountRequired):
		st.Input = models.PendingInput{Kind: models.InputCashAmount, OrderID: order.ID}
		sess.Stage = st
		return &Reply{Prompt: PromptAskAmount, Order: order, AmountDue: order.AmountDue()}, nil
	case errors.Is(err, ErrReasonRequired):
		st.Input = models.PendingInput{Kind: models.InputReason, OrderID: order.ID}
		sess.Stage = st
		return &Reply{Prompt: PromptAskReason, Order: order, Reasons: models.FailureReasons}, nil
	case errors.Is(err, storage.ErrOrderNotAssigned):
		st.Input = models.PendingInput{}
		sess.Stage = st
		return &Reply{Prompt: PromptOrderUnavailable, Order: order}, nil
	case err != nil:
		s.log.Error("resolve order failed", logger.Int64("order_id", order.ID), logger.Error(err))
		return &Reply{Prompt: PromptRetryLater, Order: order}, nil
	}

	st.Input = models.PendingInput{}
	sess.Stage = st

	pending, err := s.ledger.PendingOrders(ctx, st.RouteID)
	if err != nil {
		s.log.Warning("pending check failed", logger.String("route_id", st.RouteID.String()), logger.Error(err))
	}
	if err != nil || len(pending) == 0 {
		sess.Stage = models.FinalizingStage{RouteID: st.RouteID}
		return s.finalize(ctx, sess, st.RouteID, updated)
	}
	return &Reply{Prompt: PromptOrderResolved, Order: updated, Orders: pending}, nil
}

func (s *SessionService) finalize(ctx context.Context, sess *models.CourierSession, routeID uuid.UUID, resolved *models.Order) (*Reply, error) {
	summary, err := s.ledger.FinalizeRoute(ctx, routeID)

	var pending *storage.PendingOrdersError
	switch {
	case errors.As(err, &pending):
		sess.Stage = models.RouteActiveStage{RouteID: routeID}
		orders, perr := s.ledger.PendingOrders(ctx, routeID)
		if perr != nil {
			s.log.Warning("pending check failed", logger.String("route_id", routeID.String()), logger.Error(perr))
			if resolved != nil {
				return &Reply{Prompt: PromptOrderResolved, Order: resolved}, nil
			}
			return &Reply{Prompt: PromptRetryLater}, nil
		}
		return &Reply{Prompt: PromptFinalizeRefused, Orders: orders, Order: resolved}, nil
	case errors.Is(err, storage.ErrRouteClosed), errors.Is(err, storage.ErrNotFound):
		sess.Stage = models.IdleStage{}
		return &Reply{Prompt: PromptNoActiveRoute, Order: resolved}, nil
	case err != nil:
		s.log.Error("finalize failed", logger.String("route_id", routeID.String()), logger.Error(err))
		return &Reply{Prompt: PromptRetryLater, Order: resolved}, nil
	}

	sess.Stage = models.IdleStage{}
	return &Reply{Prompt: PromptRouteFinalized, Summary: summary, Order: resolved}, nil
}

func (s *SessionService) cancel(ctx context.Context, sess *models.CourierSession) (*Reply, error) {
	var routeID uuid.UUID
	switch st := sess.Stage.(type) {
	case models.IdleStage:
		return &Reply{Prompt: PromptNothingToCancel}, nil
	case models.RouteActiveStage:
		routeID = st.RouteID
	case models.FinalizingStage:
		routeID = st.RouteID
	}

	if routeID != uuid.Nil {
		err := s.ledger.CancelRoute(ctx, routeID)
		if err != nil && !errors.Is(err, storage.ErrRouteClosed) {
			s.log.Error("cancel route failed", logger.String("route_id", routeID.String()), logger.Error(err))
			return &Reply{Prompt: PromptRetryLater}, nil
		}
	}

	sess.Stage = models.IdleStage{}
	return &Reply{Prompt: PromptRouteCancelled}, nil
}

type courierLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (l *courierLocks) lock(courierID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[courierID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[courierID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
