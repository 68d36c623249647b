package events

import (
	"context"
	"errors"

	obsmetrics "github.com/smallbiznis/spotlight/internal/observability/metrics"
	"github.com/smallbiznis/spotlight/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	outcomePublished = "published"
	outcomeFailed    = "failed"
)

type RelayParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Outbox     *Outbox
	Publisher  Publisher
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Relay moves committed outbox rows to the Publisher.
type Relay struct {
	db         *gorm.DB
	log        *zap.Logger
	outbox     *Outbox
	publisher  Publisher
	obsMetrics *obsmetrics.Metrics
}

func NewRelay(p RelayParams) *Relay {
	return &Relay{
		db:         p.DB,
		log:        p.Log.Named("events.relay"),
		outbox:     p.Outbox,
		publisher:  p.Publisher,
		obsMetrics: p.ObsMetrics,
	}
}

// RelayBatch claims up to limit pending rows and publishes them in creation
// order. Failed deliveries stay pending until MaxAttempts. It returns the
// number of events published.
func (r *Relay) RelayBatch(ctx context.Context, limit int) (int, error) {
	published := 0
	var publishErr error
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := r.outbox.ClaimPending(ctx, tx, limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if ctx.Err() != nil {
				return nil
			}
			msg := messageFromRow(row)
			if err := r.publisher.Publish(correlation.Resume(ctx, msg.Metadata), msg); err != nil {
				publishErr = errors.Join(publishErr, err)
				r.obsMetrics.RecordOutboxEvent(ctx, row.EventType, outcomeFailed)
				r.log.Warn("outbox delivery failed",
					zap.String("event_id", msg.ID),
					zap.String("event_type", row.EventType),
					zap.Int("attempts", row.Attempts+1),
					zap.Error(err),
				)
				if markErr := r.outbox.MarkAttemptFailed(ctx, tx, row, err); markErr != nil {
					return markErr
				}
				continue
			}
			if err := r.outbox.MarkPublished(ctx, tx, row.ID); err != nil {
				return err
			}
			r.obsMetrics.RecordOutboxEvent(ctx, row.EventType, outcomePublished)
			published++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, publishErr
}
