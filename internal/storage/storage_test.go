package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/seafair/internal/storage"
	"github.com/iamNilotpal/seafair/internal/table"
	"github.com/iamNilotpal/seafair/pkg/errors"
	"github.com/iamNilotpal/seafair/pkg/logger"
	"github.com/iamNilotpal/seafair/pkg/options"
)

func newStorage(t *testing.T, path string) *storage.Storage {
	t.Helper()

	opts := options.NewDefaultOptions()
	s, err := storage.New(context.Background(), &storage.Config{
		Path:    path,
		Options: &opts,
		Logger:  logger.NewNop(),
	})
	require.NoError(t, err)
	return s
}

func Test_New_Rejects_Invalid_Configuration(t *testing.T) {
	t.Parallel()

	opts := options.NewDefaultOptions()

	testCases := []struct {
		name   string
		config *storage.Config
	}{
		{name: "NilConfig", config: nil},
		{name: "MissingPath", config: &storage.Config{Options: &opts, Logger: logger.NewNop()}},
		{name: "MissingOptions", config: &storage.Config{Path: "x.sea", Logger: logger.NewNop()}},
		{name: "MissingLogger", config: &storage.Config{Path: "x.sea", Options: &opts}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := storage.New(context.Background(), testCase.config)
			require.Error(t, err)
		})
	}
}

func Test_New_Initializes_A_Fresh_File_With_A_Zeroed_Header(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fresh.sea")
	s := newStorage(t, path)
	defer s.Close()

	assert.Equal(t, int64(table.HeaderBytes), s.Size())

	slots, err := s.ReadHeader()
	require.NoError(t, err)
	require.Len(t, slots, table.MaxTables)
	for i, slot := range slots {
		assert.Zero(t, slot, "slot %d must start zeroed", i)
	}
}

func Test_New_Creates_Missing_Parent_Directories(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "deeper", "store.sea")
	s := newStorage(t, path)
	defer s.Close()

	exists, err := os.Stat(path)
	require.NoError(t, err)
	assert.False(t, exists.IsDir())
}

func Test_New_Refuses_A_File_Shorter_Than_The_Header(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "truncated.sea")
	require.NoError(t, os.WriteFile(path, make([]byte, table.HeaderBytes-1), 0644))

	opts := options.NewDefaultOptions()
	_, err := storage.New(context.Background(), &storage.Config{
		Path:    path,
		Options: &opts,
		Logger:  logger.NewNop(),
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrorCodeHeaderCorrupted, errors.GetErrorCode(err))
}

func Test_WritePointers_Persists_Across_Reopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ptrs.sea")

	s := newStorage(t, path)
	require.NoError(t, s.WritePointers([]uint64{2560, 512}))
	require.NoError(t, s.Close())

	reopened := newStorage(t, path)
	defer reopened.Close()

	slots, err := reopened.ReadHeader()
	require.NoError(t, err)
	assert.Equal(t, uint64(2560), slots[0])
	assert.Equal(t, uint64(512), slots[1])
	assert.Zero(t, slots[2])
}

func Test_AllocateZeroed_Appends_At_End_Of_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "alloc.sea")
	s := newStorage(t, path)
	defer s.Close()

	addr, err := s.AllocateZeroed(context.Background(), table.Sector)
	require.NoError(t, err)
	assert.Equal(t, uint64(table.HeaderBytes), addr)
	assert.Equal(t, int64(table.HeaderBytes+table.Sector), s.Size())

	// A second allocation larger than one chunk still lands contiguously.
	big := uint64(table.AllocChunk + table.Sector)
	addr, err = s.AllocateZeroed(context.Background(), big)
	require.NoError(t, err)
	assert.Equal(t, uint64(table.HeaderBytes+table.Sector), addr)
	assert.Equal(t, int64(table.HeaderBytes+table.Sector)+int64(big), s.Size())

	// Every allocated byte is zero.
	sector, err := s.ReadSector(addr)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, table.Sector), sector)
}

func Test_AppendBlob_Returns_Sequential_Addresses(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "blobs.sea")
	s := newStorage(t, path)
	defer s.Close()

	first, err := s.AppendBlob([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, uint64(table.HeaderBytes), first)

	second, err := s.AppendBlob([]byte("world!"))
	require.NoError(t, err)
	assert.Equal(t, first+5, second)

	blob, err := s.ReadBlob(first, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), blob)

	blob, err = s.ReadBlob(second, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte("world!"), blob)
}

func Test_WriteEntry_Roundtrips_Through_ReadSector(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "entry.sea")
	s := newStorage(t, path)
	defer s.Close()

	base, err := s.AllocateZeroed(context.Background(), table.Sector)
	require.NoError(t, err)

	entry := table.Entry{Addr: 4096, Size: 11}
	entry.Digest[0] = 0xAB
	require.NoError(t, s.WriteEntry(base+2*table.EntrySize, entry.Marshal()))

	sector, err := s.ReadSector(base)
	require.NoError(t, err)

	pos, ok := table.FindDigest(sector, entry.Digest)
	require.True(t, ok)
	assert.Equal(t, 2*table.EntrySize, pos)
	assert.Equal(t, entry, table.UnmarshalEntry(sector[pos:pos+table.EntrySize]))
}

func Test_Operations_Fail_After_Close(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "closed.sea")
	s := newStorage(t, path)
	require.NoError(t, s.Close())

	_, err := s.ReadHeader()
	assert.ErrorIs(t, err, storage.ErrStorageClosed)

	_, err = s.AppendBlob([]byte("x"))
	assert.ErrorIs(t, err, storage.ErrStorageClosed)

	assert.ErrorIs(t, s.Close(), storage.ErrStorageClosed)
}
