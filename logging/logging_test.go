package logging_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/progress-engine/logging"
)

func TestNew_WritesConsoleAndFile(t *testing.T) {
	// GIVEN: A buffer console and a temp log directory
	var console bytes.Buffer
	dir := filepath.Join(t.TempDir(), "logs")

	logger, closer, err := logging.New(logging.Options{Dir: dir, Console: &console})
	require.NoError(t, err)

	// WHEN: Logging at info
	logger.Info().Str("activity", "act-1").Msg("derived")
	require.NoError(t, closer.Close())

	// THEN: Both sinks carry the event; the console is uncoloured
	assert.Contains(t, console.String(), "derived")
	assert.Contains(t, console.String(), "activity=act-1")
	assert.NotContains(t, console.String(), "\x1b[")

	data, err := os.ReadFile(filepath.Join(dir, logging.FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"activity":"act-1"`)
	assert.Contains(t, string(data), `"level":"info"`)
}

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name      string
		opts      logging.Options
		wantDebug bool
		wantInfo  bool
	}{
		{"default is info", logging.Options{}, false, true},
		{"verbose is debug", logging.Options{Verbose: true}, true, true},
		{"level overrides verbose", logging.Options{Verbose: true, Level: "warn"}, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var console bytes.Buffer
			tc.opts.Console = &console
			logger, _, err := logging.New(tc.opts)
			require.NoError(t, err)

			logger.Debug().Msg("debug-line")
			logger.Info().Msg("info-line")

			assert.Equal(t, tc.wantDebug, bytes.Contains(console.Bytes(), []byte("debug-line")))
			assert.Equal(t, tc.wantInfo, bytes.Contains(console.Bytes(), []byte("info-line")))
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := logging.New(logging.Options{Level: "loud", Console: &bytes.Buffer{}})
	assert.ErrorContains(t, err, "loud")
}
