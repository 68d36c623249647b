package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, " req-1 ")
	ctx = WithAccountID(ctx, "77")
	ctx = WithActor(ctx, "seller", "77")

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "77", AccountIDFromContext(ctx))
	actorType, actorID := ActorFromContext(ctx)
	assert.Equal(t, "seller", actorType)
	assert.Equal(t, "77", actorID)
}

func TestContextIgnoresBlankValues(t *testing.T) {
	ctx := WithRequestID(context.Background(), "   ")
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(nil)) //nolint:staticcheck
}
