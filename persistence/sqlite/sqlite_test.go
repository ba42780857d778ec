package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/logcorrelate/api"
	"github.com/momentics/logcorrelate/persistence/sqlite"
)

func TestStore_SaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "correlate.db")
	s, err := sqlite.Open(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "correlation()", []byte(`{"contexts":[]}`)))

	got, err := s.Load(ctx, "correlation()")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"contexts":[]}`), got)
}

func TestStore_LoadMostRecentSnapshotByName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "correlate.db")
	s, err := sqlite.Open(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "correlation()", []byte("first")))
	require.NoError(t, s.Save(ctx, "correlation()", []byte("second")))

	got, err := s.Load(ctx, "correlation()")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestStore_LoadMissingNameReturnsPersistError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "correlate.db")
	s, err := sqlite.Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Load(context.Background(), "absent")
	require.Error(t, err)
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, api.ErrCodePersist, apiErr.Code)
}

func TestStore_NamesAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "correlate.db")
	s, err := sqlite.Open(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "scope-a", []byte("a")))

	_, err = s.Load(ctx, "scope-b")
	require.Error(t, err)

	got, err := s.Load(ctx, "scope-a")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got)
}
