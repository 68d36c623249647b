package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestEnsureKeepsExisting(t *testing.T) {
	ctx, id := Ensure(WithID(context.Background(), "cid-1"))
	assert.Equal(t, "cid-1", id)
	assert.Equal(t, "cid-1", ID(ctx))
}

func TestEnsureMintsULID(t *testing.T) {
	ctx, id := Ensure(context.Background())
	require.Len(t, id, 26)
	assert.Equal(t, id, ID(ctx))
}

func TestStampResumeRoundTrip(t *testing.T) {
	headers := map[string]string{
		KeyCorrelationID: "cid-2",
		KeyTraceID:       "4bf92f3577b34da6a3ce929d0e0e4736",
		KeySpanID:        "00f067aa0ba902b7",
	}
	ctx := Resume(context.Background(), headers)

	assert.Equal(t, headers, Stamp(ctx))
	assert.True(t, trace.SpanContextFromContext(ctx).IsRemote())
}

func TestResumeIgnoresBadTraceIDs(t *testing.T) {
	ctx := Resume(context.Background(), map[string]string{KeyCorrelationID: "cid-3", KeyTraceID: "zz", KeySpanID: "00f067aa0ba902b7"})
	assert.Equal(t, "cid-3", ID(ctx))
	assert.False(t, trace.SpanContextFromContext(ctx).IsValid())
}
