package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "prod")
	log.Info().Str("doctor_id", "DOC-1").Msg("joined")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "joined", line["message"])
	assert.Equal(t, "DOC-1", line["doctor_id"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "prod")
	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	log = NewWithWriter(&buf, "bogus", "prod")
	log.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}
