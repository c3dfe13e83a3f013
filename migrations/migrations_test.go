package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryUpHasADown(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	names := make(map[string]bool, len(files))
	for _, f := range files {
		names[f] = true
	}
	for _, f := range files {
		if base, ok := strings.CutSuffix(f, ".up.sql"); ok {
			assert.True(t, names[base+".down.sql"], "missing down migration for %s", f)
		}
	}
}

func TestSchemaCoversPersistedTables(t *testing.T) {
	var all strings.Builder
	files, err := fs.Glob(FS, "*.up.sql")
	require.NoError(t, err)
	for _, f := range files {
		b, err := fs.ReadFile(FS, f)
		require.NoError(t, err)
		all.Write(b)
	}
	for _, table := range []string{"doctors", "appointments", "queue_entries", "consultation_stats", "event_logs"} {
		assert.Contains(t, all.String(), "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}
