package tracing

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func TestSafeAttributesDropsBlockedKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/reservations"),
		attribute.String("cancel_reason", "seller asked"),
		attribute.String("admin_token", "secret"),
	)
	require.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorTruncates(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	err := SafeError(errors.New(strings.Repeat("x", 400)))
	require.Error(t, err)
	assert.Len(t, err.Error(), 256)
}

func TestNewProviderDisabled(t *testing.T) {
	provider, err := NewProvider(nil, Config{Enabled: false, SamplingRatio: 2}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.Equal(t, 1.0, normalizeRatio(2))
	assert.Equal(t, 0.0, normalizeRatio(-1))
}
