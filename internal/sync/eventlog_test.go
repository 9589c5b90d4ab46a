package syncx_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-grading/internal/db"
	syncx "github.com/mind-engage/mindengage-grading/internal/sync"
)

func TestEventRepoRecordAndList(t *testing.T) {
	ctx := context.Background()
	h, err := db.Open(ctx, db.DriverSQLite, "file:eventlog_test?mode=memory&cache=shared")
	require.NoError(t, err)
	defer h.Close()

	repo := syncx.NewEventRepo(h, "")
	require.NoError(t, repo.Record(ctx, syncx.TypeAttemptStarted, "a1", map[string]any{"quiz_id": "qz"}))
	require.NoError(t, repo.Record(ctx, syncx.TypeAttemptSubmitted, "a1", map[string]any{"duration_seconds": 60}))
	require.NoError(t, repo.Record(ctx, syncx.TypeAttemptStarted, "a2", nil))

	evs, err := repo.ListByKey(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, syncx.TypeAttemptStarted, evs[0].Type)
	assert.Equal(t, syncx.TypeAttemptSubmitted, evs[1].Type)
	assert.Less(t, evs[0].Seq, evs[1].Seq)
	assert.Equal(t, "local", evs[0].SiteID)

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(evs[1].DataJSON), &data))
	assert.EqualValues(t, 60, data["duration_seconds"])

	none, err := repo.ListByKey(ctx, "zz")
	require.NoError(t, err)
	assert.Empty(t, none)
}
