package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		logger := New(level, "text")
		assert.NotNil(t, logger, "level %s", level)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	assert.NotNil(t, New("info", "json"))
}

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))

	ctx = WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", RequestID(ctx))
}

func TestOrgID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, OrgID(ctx))

	ctx = WithOrgID(ctx, "org_abc")
	assert.Equal(t, "org_abc", OrgID(ctx))
}

func TestL_FallsBackToDefault(t *testing.T) {
	assert.NotNil(t, L(context.Background()))
}

func TestL_UsesContextLogger(t *testing.T) {
	logger := New("info", "text")
	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithOrgID(ctx, "org_1")
	assert.NotNil(t, L(ctx))
}
