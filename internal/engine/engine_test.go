package engine_test

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/seafair/internal/engine"
	"github.com/iamNilotpal/seafair/internal/table"
	"github.com/iamNilotpal/seafair/pkg/errors"
	"github.com/iamNilotpal/seafair/pkg/logger"
	"github.com/iamNilotpal/seafair/pkg/options"
)

func newEngine(t *testing.T, path string, opts ...options.OptionFunc) *engine.Engine {
	t.Helper()

	engineOpts := options.NewDefaultOptions()
	for _, opt := range opts {
		opt(&engineOpts)
	}

	e, err := engine.New(context.Background(), &engine.Config{
		Path:    path,
		Options: &engineOpts,
		Logger:  logger.NewNop(),
	})
	require.NoError(t, err)
	return e
}

func digestOf(key string) table.Digest {
	return md5.Sum([]byte(key))
}

// collidingDigests returns n distinct non-zero digests. The first table's
// probing range is 1, so any distinct digests saturate its single sector;
// the multiples-of-73 shape keeps them spread once larger tables exist.
func collidingDigests(n int) []table.Digest {
	digests := make([]table.Digest, n)
	for i := range digests {
		var d table.Digest
		binary.BigEndian.PutUint64(d[8:16], uint64(73*(i+1)))
		digests[i] = d
	}
	return digests
}

func Test_New_Allocates_The_First_Table(t *testing.T) {
	t.Parallel()

	e := newEngine(t, filepath.Join(t.TempDir(), "fresh.sea"))
	defer e.Close()

	stats := e.Stats()
	assert.Equal(t, 1, stats.Tables)
	assert.Equal(t, []uint64{table.HeaderBytes}, stats.Ptrs)
	assert.Equal(t, []uint64{table.Sector}, stats.Sizes)
	assert.Equal(t, []uint64{1}, stats.Ranges)
	assert.Equal(t, int64(table.HeaderBytes+table.Sector), stats.FileSize)
}

func Test_Set_Then_Get_Roundtrips(t *testing.T) {
	t.Parallel()

	e := newEngine(t, filepath.Join(t.TempDir(), "roundtrip.sea"))
	defer e.Close()

	ctx := context.Background()
	digest := digestOf("aliceUser")

	require.NoError(t, e.Set(ctx, digest, []byte("A")))

	blob, found, err := e.Get(ctx, digest)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("A"), blob)
}

func Test_Get_Misses_Without_Error(t *testing.T) {
	t.Parallel()

	e := newEngine(t, filepath.Join(t.TempDir(), "miss.sea"))
	defer e.Close()

	_, found, err := e.Get(context.Background(), digestOf("absent"))
	require.NoError(t, err)
	assert.False(t, found)
}

func Test_Get_Never_Matches_The_Zero_Digest(t *testing.T) {
	t.Parallel()

	e := newEngine(t, filepath.Join(t.TempDir(), "zero.sea"))
	defer e.Close()

	// Every slot of the fresh table is null; a naive probe for the zero
	// digest would "find" one immediately.
	_, found, err := e.Get(context.Background(), table.Digest{})
	require.NoError(t, err)
	assert.False(t, found)

	err = e.Set(context.Background(), table.Digest{}, []byte("x"))
	require.Error(t, err)
}

func Test_Overwrite_Returns_The_Latest_Value_And_Keeps_Both_Blobs(t *testing.T) {
	t.Parallel()

	e := newEngine(t, filepath.Join(t.TempDir(), "overwrite.sea"))
	defer e.Close()

	ctx := context.Background()
	digest := digestOf("42")

	require.NoError(t, e.Set(ctx, digest, []byte("x")))
	sizeAfterFirst := e.Stats().FileSize

	require.NoError(t, e.Set(ctx, digest, []byte("yy")))

	blob, found, err := e.Get(ctx, digest)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("yy"), blob)

	// Overwrites never reclaim space: the second blob was appended.
	assert.Equal(t, sizeAfterFirst+2, e.Stats().FileSize)
}

func Test_Saturated_Sector_Promotes_To_A_Larger_Table(t *testing.T) {
	t.Parallel()

	e := newEngine(t, filepath.Join(t.TempDir(), "promote.sea"))
	defer e.Close()

	ctx := context.Background()
	digests := collidingDigests(table.SlotsPerSector + 1)

	// The first 73 inserts fill slot zero's sector of the first table.
	for i, digest := range digests[:table.SlotsPerSector] {
		require.NoError(t, e.Set(ctx, digest, []byte(fmt.Sprintf("v%d", i))))
	}
	require.Equal(t, 1, e.Stats().Tables)

	// The 74th collides with a full sector and must grow the store.
	require.NoError(t, e.Set(ctx, digests[table.SlotsPerSector], []byte("overflow")))
	stats := e.Stats()
	assert.Equal(t, 2, stats.Tables)
	assert.Equal(t, []uint64{table.Sector * 2, table.Sector}, stats.Sizes)
	// The new active table sits past everything written so far.
	assert.Greater(t, stats.Ptrs[0], stats.Ptrs[1])

	// Every key, old and new, remains retrievable.
	for i, digest := range digests {
		want := fmt.Sprintf("v%d", i)
		if i == table.SlotsPerSector {
			want = "overflow"
		}

		blob, found, err := e.Get(ctx, digest)
		require.NoError(t, err)
		require.True(t, found, "digest %d must survive promotion", i)
		assert.Equal(t, []byte(want), blob)
	}
}

func Test_Overwrite_In_The_Active_Table_Shadows_Older_Tables(t *testing.T) {
	t.Parallel()

	e := newEngine(t, filepath.Join(t.TempDir(), "shadow.sea"))
	defer e.Close()

	ctx := context.Background()
	digests := collidingDigests(table.SlotsPerSector + 1)

	for _, digest := range digests {
		require.NoError(t, e.Set(ctx, digest, []byte("old")))
	}
	require.Equal(t, 2, e.Stats().Tables)

	// digests[0] lives in the older table. Overwriting it writes a new
	// entry in the active table that shadows the stale copy.
	require.NoError(t, e.Set(ctx, digests[0], []byte("new")))

	blob, found, err := e.Get(ctx, digests[0])
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("new"), blob)
}

func Test_Committed_Keys_Survive_Reopen(t *testing.T) {
	t.Parallel()

	for _, level := range []options.Durability{options.DurabilityApp, options.DurabilityOS} {
		t.Run(string(level), func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "reopen.sea")
			ctx := context.Background()

			e := newEngine(t, path, options.WithDurability(level))
			require.NoError(t, e.Set(ctx, digestOf("k"), []byte("persisted")))
			require.NoError(t, e.Close())

			reopened := newEngine(t, path, options.WithDurability(level))
			defer reopened.Close()

			blob, found, err := reopened.Get(ctx, digestOf("k"))
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, []byte("persisted"), blob)
		})
	}
}

func Test_Reopen_Rebuilds_The_Membership_Filter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "filter.sea")
	ctx := context.Background()

	e := newEngine(t, path)
	digests := collidingDigests(table.SlotsPerSector + 1) // spread across two tables
	for i, digest := range digests {
		require.NoError(t, e.Set(ctx, digest, []byte{byte(i)}))
	}
	require.NoError(t, e.Close())

	// The filter is rebuilt from the table regions on open; a false
	// negative here would make a stored key unreachable.
	reopened := newEngine(t, path)
	defer reopened.Close()

	for i, digest := range digests {
		blob, found, err := reopened.Get(ctx, digest)
		require.NoError(t, err)
		require.True(t, found, "digest %d must be visible through the rebuilt filter", i)
		assert.Equal(t, []byte{byte(i)}, blob)
	}
}

func Test_Engine_Works_With_The_Filter_Disabled(t *testing.T) {
	t.Parallel()

	e := newEngine(t, filepath.Join(t.TempDir(), "nofilter.sea"), options.WithoutMembershipFilter())
	defer e.Close()

	ctx := context.Background()
	require.NoError(t, e.Set(ctx, digestOf("k"), []byte("v")))

	blob, found, err := e.Get(ctx, digestOf("k"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v"), blob)

	_, found, err = e.Get(ctx, digestOf("absent"))
	require.NoError(t, err)
	assert.False(t, found)
}

func Test_Blob_Larger_Than_The_Size_Field_Is_Rejected(t *testing.T) {
	t.Parallel()

	// Allocating 4 GiB in a unit test is unreasonable; the validation
	// helper itself is the contract.
	err := errors.NewBlobSizeError(1 << 33)
	assert.Equal(t, errors.ErrorCodeBlobTooLarge, errors.GetErrorCode(err))
}

func Test_New_Refuses_A_Header_Naming_A_Table_Outside_The_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "outside.sea")

	e := newEngine(t, path)
	require.NoError(t, e.Close())

	// Chop the first table off while the header still names it.
	require.NoError(t, os.Truncate(path, table.HeaderBytes+100))

	engineOpts := options.NewDefaultOptions()
	_, err := engine.New(context.Background(), &engine.Config{
		Path:    path,
		Options: &engineOpts,
		Logger:  logger.NewNop(),
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrorCodeHeaderCorrupted, errors.GetErrorCode(err))
}

func Test_Header_Offset_Only_Grows_As_Tables_Are_Added(t *testing.T) {
	t.Parallel()

	e := newEngine(t, filepath.Join(t.TempDir(), "monotonic.sea"))
	defer e.Close()

	ctx := context.Background()
	previous := e.Stats().Ptrs[0]

	// Force several promotions and watch the active-table offset.
	for round := 0; round < 3; round++ {
		stats := e.Stats()
		r := stats.Ranges[0]

		// Saturate slot zero of the current active table: digests whose
		// low half is a multiple of the range all reduce to slot zero.
		for i := uint64(0); i <= uint64(table.SlotsPerSector); i++ {
			var d table.Digest
			binary.BigEndian.PutUint64(d[8:16], r*(i+1))
			require.NoError(t, e.Set(ctx, d, []byte("x")))
		}

		current := e.Stats().Ptrs[0]
		assert.Greater(t, current, previous, "active table offset must strictly grow")
		previous = current
	}
}

func Test_Operations_Fail_After_Close(t *testing.T) {
	t.Parallel()

	e := newEngine(t, filepath.Join(t.TempDir(), "closed.sea"))
	require.NoError(t, e.Close())

	_, _, err := e.Get(context.Background(), digestOf("k"))
	assert.ErrorIs(t, err, engine.ErrEngineClosed)

	assert.ErrorIs(t, e.Set(context.Background(), digestOf("k"), []byte("v")), engine.ErrEngineClosed)
	assert.ErrorIs(t, e.Close(), engine.ErrEngineClosed)
}
