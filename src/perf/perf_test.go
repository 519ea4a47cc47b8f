package perf

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlocks(t *testing.T) {
	rp := NewRequestPerf("^/api/data$", "GET")
	rp.StartBlock("SQL", "Fetch grid")
	rp.StartBlock("SQL", "Fetch users")
	assert.True(t, rp.EndBlock())
	assert.False(t, rp.Blocks[1].End.IsZero())
	assert.True(t, rp.Blocks[0].End.IsZero())

	rp.EndRequest()
	assert.False(t, rp.Blocks[0].End.IsZero())
	assert.False(t, rp.EndBlock())
	assert.False(t, rp.End.Before(rp.Start))
	assert.GreaterOrEqual(t, rp.Blocks[0].DurationMs(), 0.0)
}

func TestNilRequestPerf(t *testing.T) {
	var rp *RequestPerf
	assert.NotPanics(t, func() {
		rp.StartBlock("SQL", "nothing")
		rp.EndBlock()
		rp.EndRequest()
	})
}

func TestLogBlocks(t *testing.T) {
	rp := NewRequestPerf("^/$", "GET")
	rp.StartBlock("TEMPLATE", "login.html")
	rp.EndRequest()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Info().Array("perf", rp).Msg("done")

	var line struct {
		Perf []struct {
			Category    string  `json:"category"`
			Description string  `json:"description"`
			Ms          float64 `json:"ms"`
		} `json:"perf"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Len(t, line.Perf, 1)
	assert.Equal(t, "TEMPLATE", line.Perf[0].Category)
	assert.Equal(t, "login.html", line.Perf[0].Description)
}
