package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spotlight/internal/clock"
	obsmetrics "github.com/smallbiznis/spotlight/internal/observability/metrics"
	"github.com/smallbiznis/spotlight/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OutboxParams struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

// Outbox stores events in the producer's transaction so they are only
// visible to the relay once the business change commits.
type Outbox struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewOutbox(p OutboxParams) *Outbox {
	return &Outbox{
		db:    p.DB,
		log:   p.Log.Named("events.outbox"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

// PublishTx records evt using tx. A repeated DedupeKey is silently ignored.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, evt Event) error {
	if o == nil {
		return nil
	}
	eventType := strings.TrimSpace(evt.Type)
	if eventType == "" {
		return ErrInvalidEvent
	}
	if tx == nil {
		tx = o.db
	}

	payload := datatypes.JSONMap{}
	for k, v := range evt.Payload {
		payload[k] = v
	}
	meta := correlation.Stamp(ctx)
	metaAny := make(map[string]any, len(meta))
	for k, v := range meta {
		metaAny[k] = v
	}
	payload["_meta"] = metaAny

	row := OutboxEvent{
		ID:            o.genID.Generate(),
		EventType:     eventType,
		Payload:       payload,
		CorrelationID: meta[correlation.KeyCorrelationID],
		Status:        StatusPending,
		CreatedAt:     o.clock.Now().UTC(),
	}
	if key := strings.TrimSpace(evt.DedupeKey); key != "" {
		row.DedupeKey = &key
	}

	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedupe_key"}}, DoNothing: true}).
		Create(&row).Error; err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// ClaimPending locks up to limit undelivered events, skipping rows held by
// another relay.
func (o *Outbox) ClaimPending(ctx context.Context, tx *gorm.DB, limit int) ([]OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []OutboxEvent
	lockStart := time.Now()
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", StatusPending).
		Order("created_at asc, id asc").
		Limit(limit).
		Find(&rows).Error
	obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourceOutboxForPublish, time.Since(lockStart))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (o *Outbox) MarkPublished(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	now := o.clock.Now().UTC()
	return tx.WithContext(ctx).Model(&OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       StatusPublished,
			"published_at": now,
			"attempts":     gorm.Expr("attempts + 1"),
			"last_error":   nil,
		}).Error
}

func (o *Outbox) MarkAttemptFailed(ctx context.Context, tx *gorm.DB, row OutboxEvent, cause error) error {
	status := StatusPending
	if row.Attempts+1 >= MaxAttempts {
		status = StatusFailed
	}
	msg := cause.Error()
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return tx.WithContext(ctx).Model(&OutboxEvent{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"status":     status,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": msg,
		}).Error
}
