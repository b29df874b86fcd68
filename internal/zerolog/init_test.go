package zerolog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDefaultLoggerJSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	InitDefaultLogger(&buf, FormatJSON)

	log.Warn().Str("chain", "wyrm").Msg("chain unhealthy")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "wyrm", entry["chain"])
	assert.Equal(t, "chain unhealthy", entry["message"])
	assert.Contains(t, entry, "caller")
	assert.Contains(t, entry, "time")
}

func TestErrorStack(t *testing.T) {
	var buf bytes.Buffer
	InitDefaultLogger(&buf, FormatJSON)

	log.Error().Stack().Err(errors.New("boom")).Msg("failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["error"])
	assert.Contains(t, entry, "stack")
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, FormatConsole)
	logger.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}
