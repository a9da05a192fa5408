package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "debug", Output: &buf})

	logger.Debug().Str("order_id", "7").Msg("hello")

	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	assert.Contains(t, buf.String(), `"order_id":"7"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}

func TestSetup_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "loud", Output: &buf})

	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetup_Pretty(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Config{Level: "info", Pretty: true, Output: &buf})

	logger.Info().Msg("pretty")

	require.NotEmpty(t, buf.String())
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestFromContext_RequestID(t *testing.T) {
	var buf bytes.Buffer
	Setup(Config{Level: "info", Output: &buf})

	ctx := WithRequestID(context.Background(), "req-1")
	logger := FromContext(ctx)
	logger.Info().Msg("tagged")

	assert.Contains(t, buf.String(), `"request_id":"req-1"`)
}

func TestFromContext_AttachedLogger(t *testing.T) {
	var global, attached bytes.Buffer
	Setup(Config{Level: "info", Output: &global})

	l := zerolog.New(&attached)
	ctx := l.WithContext(context.Background())

	logger := FromContext(ctx)
	logger.Info().Msg("to attached")

	assert.Contains(t, attached.String(), "to attached")
	assert.Empty(t, global.String())
}

func TestTag(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	plain := Tag(context.Background(), base)
	plain.Info().Msg("plain")
	assert.NotContains(t, buf.String(), "request_id")

	buf.Reset()
	tagged := Tag(WithRequestID(context.Background(), "line-4"), base)
	tagged.Info().Msg("tagged")
	assert.Contains(t, buf.String(), `"request_id":"line-4"`)
}
