package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := OpenStore(dir)
	require.NoError(t, err)
	return s
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, dir)

	require.NoError(t, s.RecordAttempt(AttemptedMove{GameID: "g1", X: 1, Y: 2, Round: 0}))
	require.NoError(t, s.SetMarker(TxMarker{GameID: "g1", Action: "submit_move", TxID: "tx-1"}))
	require.NoError(t, s.MarkProcessed("g1", "handle-1"))
	require.NoError(t, s.Close())

	s = openTestStore(t, dir)
	defer s.Close()

	has, err := s.HasAttempt("g1", 1, 2)
	require.NoError(t, err)
	assert.True(t, has)

	m, found, err := s.GetMarker("g1", "submit_move")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "tx-1", m.TxID)

	done, err := s.IsProcessed("g1", "handle-1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRecordAttemptRejectsDuplicateCell(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	defer s.Close()

	require.NoError(t, s.RecordAttempt(AttemptedMove{GameID: "g1", X: 0, Y: 0}))
	assert.Error(t, s.RecordAttempt(AttemptedMove{GameID: "g1", X: 0, Y: 0}))
	// same cell in a different game is fine
	assert.NoError(t, s.RecordAttempt(AttemptedMove{GameID: "g2", X: 0, Y: 0}))
}

func TestAttemptsAreScopedPerGame(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	defer s.Close()

	require.NoError(t, s.RecordAttempt(AttemptedMove{GameID: "g1", X: 0, Y: 0, Round: 0}))
	require.NoError(t, s.RecordAttempt(AttemptedMove{GameID: "g1", X: 3, Y: 1, Round: 1}))
	require.NoError(t, s.RecordAttempt(AttemptedMove{GameID: "g2", X: 2, Y: 2, Round: 0}))

	ams, err := s.Attempts("g1")
	require.NoError(t, err)
	assert.Len(t, ams, 2)

	ams, err = s.Attempts("g2")
	require.NoError(t, err)
	require.Len(t, ams, 1)
	assert.Equal(t, byte(2), ams[0].X)
}

func TestMarkerLifecycle(t *testing.T) {
	s := openTestStore(t, t.TempDir())
	defer s.Close()

	_, found, err := s.GetMarker("g1", "submit_move")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetMarker(TxMarker{GameID: "g1", Action: "submit_move", TxID: "tx-1", HandleID: "h-1"}))
	m, found, err := s.GetMarker("g1", "submit_move")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "h-1", m.HandleID)

	require.NoError(t, s.ClearMarker("g1", "submit_move"))
	_, found, err = s.GetMarker("g1", "submit_move")
	require.NoError(t, err)
	assert.False(t, found)

	// clearing an absent marker is a no-op
	assert.NoError(t, s.ClearMarker("g1", "submit_move"))
}
