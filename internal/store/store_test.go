package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordAndLatest(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Latest(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	id1, err := s.RecordBuild(ctx, 100, []byte{1, 2, 3}, []byte("blob-a"))
	require.NoError(t, err)
	id2, err := s.RecordBuild(ctx, 200, []byte{4, 5, 6}, []byte("blob-b"))
	require.NoError(t, err)
	require.Greater(t, id2, id1)

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(200), latest.Time)
	require.Equal(t, []byte("blob-b"), latest.Blob)

	byID, err := s.ByID(ctx, id1)
	require.NoError(t, err)
	require.Equal(t, uint64(100), byID.Time)

	history, err := s.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, uint64(200), history[0].Time)
	require.Equal(t, uint64(100), history[1].Time)

	limited, err := s.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestByIDNotFound(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ByID(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}
