package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/spotlight/internal/clock"
	"github.com/smallbiznis/spotlight/pkg/db/dbtest"
	"github.com/smallbiznis/spotlight/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	messages []Message
	failType string
}

func (p *recordingPublisher) Publish(_ context.Context, msg Message) error {
	if msg.Type == p.failType {
		return errors.New("broker unavailable")
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newTestOutbox(t *testing.T) (*Outbox, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t, &OutboxEvent{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewOutbox(OutboxParams{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
	}), db
}

func TestPublishTxDedupes(t *testing.T) {
	outbox, db := newTestOutbox(t)
	ctx := correlation.WithID(context.Background(), "cid-outbox")

	evt := Event{
		Type:      EventReservationCreated,
		Payload:   map[string]any{"reservation_id": "1"},
		DedupeKey: "reservation.created:1",
	}
	require.NoError(t, outbox.PublishTx(ctx, db, evt))
	require.NoError(t, outbox.PublishTx(ctx, db, evt))

	var rows []OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, StatusPending, rows[0].Status)
	assert.Equal(t, "cid-outbox", rows[0].CorrelationID)
}

func TestPublishTxRollsBackWithProducer(t *testing.T) {
	outbox, db := newTestOutbox(t)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := outbox.PublishTx(ctx, tx, Event{Type: EventReservationCancelled}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPublishTxRequiresType(t *testing.T) {
	outbox, db := newTestOutbox(t)
	err := outbox.PublishTx(context.Background(), db, Event{Type: "  "})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestRelayBatchPublishesAndMarks(t *testing.T) {
	outbox, db := newTestOutbox(t)
	ctx := correlation.WithID(context.Background(), "cid-relay")
	require.NoError(t, outbox.PublishTx(ctx, db, Event{Type: EventReservationCreated, Payload: map[string]any{"ad_id": "42"}}))
	require.NoError(t, outbox.PublishTx(ctx, db, Event{Type: EventReservationExpired, Payload: map[string]any{"ad_id": "43"}}))

	pub := &recordingPublisher{}
	relay := NewRelay(RelayParams{DB: db, Log: zap.NewNop(), Outbox: outbox, Publisher: pub})

	n, err := relay.RelayBatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.messages, 2)
	assert.Equal(t, EventReservationCreated, pub.messages[0].Type)
	assert.Equal(t, "42", pub.messages[0].Data["ad_id"])
	assert.NotContains(t, pub.messages[0].Data, "_meta")
	assert.Equal(t, "cid-relay", pub.messages[0].Metadata["correlation_id"])

	n, err = relay.RelayBatch(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	var published int64
	require.NoError(t, db.Model(&OutboxEvent{}).Where("status = ?", StatusPublished).Count(&published).Error)
	assert.Equal(t, int64(2), published)
}

func TestRelayBatchKeepsFailedEventsPending(t *testing.T) {
	outbox, db := newTestOutbox(t)
	ctx := context.Background()
	require.NoError(t, outbox.PublishTx(ctx, db, Event{Type: EventReservationCancelled}))

	pub := &recordingPublisher{failType: EventReservationCancelled}
	relay := NewRelay(RelayParams{DB: db, Log: zap.NewNop(), Outbox: outbox, Publisher: pub})

	n, err := relay.RelayBatch(ctx, 10)
	require.Error(t, err)
	assert.Zero(t, n)

	var row OutboxEvent
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, StatusPending, row.Status)
	assert.Equal(t, 1, row.Attempts)
	require.NotNil(t, row.LastError)
	assert.Contains(t, *row.LastError, "broker unavailable")
}

func TestRelayBatchParksAfterMaxAttempts(t *testing.T) {
	outbox, db := newTestOutbox(t)
	ctx := context.Background()
	require.NoError(t, outbox.PublishTx(ctx, db, Event{Type: EventReservationEdited}))
	require.NoError(t, db.Model(&OutboxEvent{}).Where("1 = 1").Update("attempts", MaxAttempts-1).Error)

	relay := NewRelay(RelayParams{
		DB:        db,
		Log:       zap.NewNop(),
		Outbox:    outbox,
		Publisher: &recordingPublisher{failType: EventReservationEdited},
	})
	_, err := relay.RelayBatch(ctx, 10)
	require.Error(t, err)

	var row OutboxEvent
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, StatusFailed, row.Status)
}
