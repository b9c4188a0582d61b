package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"courierbot/pkg/logger"
	"courierbot/pkg/models"
	"courierbot/storage"
)

const sessionKey = "courier:session:%d"

type sessionRepo struct {
	client    *goredis.Client
	retention time.Duration
	log       logger.ILogger
}

// NewSessionRepo stores sessions as JSON; every save renews the key TTL to retention.
func NewSessionRepo(client *goredis.Client, retention time.Duration, log logger.ILogger) storage.ISessionStorage {
	return &sessionRepo{client: client, retention: retention, log: log}
}

type sessionRecord struct {
	CourierID    int64            `json:"courier_id"`
	Stage        models.StageKind `json:"stage"`
	Data         json.RawMessage  `json:"data,omitempty"`
	LastActivity time.Time        `json:"last_activity"`
}

func (r *sessionRepo) Get(ctx context.Context, courierID int64) (*models.CourierSession, error) {
	raw, err := r.client.Get(ctx, fmt.Sprintf(sessionKey, courierID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		r.log.Error("failed to read session", logger.Int64("courier_id", courierID), logger.Error(err))
		return nil, err
	}

	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	stage, err := decodeStage(rec.Stage, rec.Data)
	if err != nil {
		return nil, err
	}
	return &models.CourierSession{
		CourierID:    rec.CourierID,
		Stage:        stage,
		LastActivity: rec.LastActivity,
	}, nil
}

func (r *sessionRepo) Save(ctx context.Context, s *models.CourierSession) error {
	stage := s.Stage
	if stage == nil {
		stage = models.IdleStage{}
	}
	data, err := json.Marshal(stage)
	if err != nil {
		return fmt.Errorf("encode stage: %w", err)
	}
	raw, err := json.Marshal(sessionRecord{
		CourierID:    s.CourierID,
		Stage:        stage.Kind(),
		Data:         data,
		LastActivity: s.LastActivity,
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := r.client.Set(ctx, fmt.Sprintf(sessionKey, s.CourierID), raw, r.retention).Err(); err != nil {
		r.log.Error("failed to save session", logger.Int64("courier_id", s.CourierID), logger.Error(err))
		return err
	}
	return nil
}

func (r *sessionRepo) Delete(ctx context.Context, courierID int64) error {
	return r.client.Del(ctx, fmt.Sprintf(sessionKey, courierID)).Err()
}

func decodeStage(kind models.StageKind, data json.RawMessage) (models.Stage, error) {
	switch kind {
	case models.StageIdle, "":
		return models.IdleStage{}, nil
	case models.StageAwaitingOrigin:
		return models.AwaitingOriginStage{}, nil
	case models.StageReviewingAddresses:
		var s models.ReviewingAddressesStage
		err := json.Unmarshal(data, &s)
		return s, wrapDecode(kind, err)
	case models.StageBuildingRoute:
		var s models.BuildingRouteStage
		err := json.Unmarshal(data, &s)
		return s, wrapDecode(kind, err)
	case models.StageRouteActive:
		var s models.RouteActiveStage
		err := json.Unmarshal(data, &s)
		return s, wrapDecode(kind, err)
	case models.StageFinalizing:
		var s models.FinalizingStage
		err := json.Unmarshal(data, &s)
		return s, wrapDecode(kind, err)
	}
	return nil, fmt.Errorf("unknown session stage %q", kind)
}

func wrapDecode(kind models.StageKind, err error) error {
	if err != nil {
		return fmt.Errorf("decode %s stage: %w", kind, err)
	}
	return nil
}
