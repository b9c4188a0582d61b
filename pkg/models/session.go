package models

import (
	"time"

	"github.com/google/uuid"
)

type StageKind string

const (
	StageIdle               StageKind = "idle"
	StageAwaitingOrigin     StageKind = "awaiting_origin"
	StageReviewingAddresses StageKind = "reviewing_addresses"
	StageBuildingRoute      StageKind = "building_route"
	StageRouteActive        StageKind = "route_active"
	StageFinalizing         StageKind = "finalizing"
)

// Stage is one step of the courier conversation. Each implementation
// carries only the data that step needs.
type Stage interface {
	Kind() StageKind
}

type IdleStage struct{}

type AwaitingOriginStage struct{}

type ReviewingAddressesStage struct {
	Origin string `json:"origin"`
	// EditingOrderID is set while waiting for the replacement address.
	EditingOrderID int64 `json:"editing_order_id,omitempty"`
}

type BuildingRouteStage struct {
	Origin     string `json:"origin"`
	BuildToken string `json:"build_token"`
}

type InputKind string

const (
	InputNone       InputKind = ""
	InputCashAmount InputKind = "cash_amount"
	InputReason     InputKind = "failure_reason"
)

// PendingInput is a question asked about one order of the active route.
type PendingInput struct {
	Kind    InputKind `json:"kind,omitempty"`
	OrderID int64     `json:"order_id,omitempty"`
}

type RouteActiveStage struct {
	RouteID uuid.UUID    `json:"route_id"`
	Input   PendingInput `json:"input"`
}

type FinalizingStage struct {
	RouteID uuid.UUID `json:"route_id"`
}

func (IdleStage) Kind() StageKind               { return StageIdle }
func (AwaitingOriginStage) Kind() StageKind     { return StageAwaitingOrigin }
func (ReviewingAddressesStage) Kind() StageKind { return StageReviewingAddresses }
func (BuildingRouteStage) Kind() StageKind      { return StageBuildingRoute }
func (RouteActiveStage) Kind() StageKind        { return StageRouteActive }
func (FinalizingStage) Kind() StageKind         { return StageFinalizing }

type CourierSession struct {
	CourierID    int64
	Stage        Stage
	LastActivity time.Time
}

func NewCourierSession(courierID int64, now time.Time) *CourierSession {
	return &CourierSession{
		CourierID:    courierID,
		Stage:        IdleStage{},
		LastActivity: now,
	}
}

// Expired reports whether a non-idle session has been inactive longer than timeout.
func (s *CourierSession) Expired(now time.Time, timeout time.Duration) bool {
	if s.Stage == nil || s.Stage.Kind() == StageIdle {
		return false
	}
	return now.Sub(s.LastActivity) > timeout
}
