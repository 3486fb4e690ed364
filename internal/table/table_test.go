package table_test

import (
	"crypto/md5"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/seafair/internal/table"
	"github.com/iamNilotpal/seafair/pkg/errors"
)

func Test_Constants_Match_The_File_Format(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2048, table.Sector)
	assert.Equal(t, 28, table.EntrySize)
	assert.Equal(t, 73, table.SlotsPerSector)
	assert.Equal(t, 64, table.MaxTables)
	assert.Equal(t, 512, table.HeaderBytes)
}

func Test_Entry_Roundtrips_Through_Its_OnDisk_Form(t *testing.T) {
	t.Parallel()

	digest := table.Digest(md5.Sum([]byte("aliceUser")))
	entry := table.Entry{Digest: digest, Addr: 0x1122334455667788, Size: 0x99AABBCC}

	encoded := entry.Marshal()
	require.Len(t, encoded, table.EntrySize)

	// The digest's raw bytes are the on-disk key pattern.
	assert.Equal(t, digest[:], encoded[0:16])
	// Address and length are little-endian.
	assert.Equal(t, uint64(0x1122334455667788), binary.LittleEndian.Uint64(encoded[16:24]))
	assert.Equal(t, uint32(0x99AABBCC), binary.LittleEndian.Uint32(encoded[24:28]))

	decoded := table.UnmarshalEntry(encoded)
	assert.Equal(t, entry, decoded)
}

func Test_Null_Entry_Is_All_Zero(t *testing.T) {
	t.Parallel()

	var entry table.Entry
	assert.True(t, entry.IsNull())
	assert.Equal(t, make([]byte, table.EntrySize), entry.Marshal())

	entry.Digest[15] = 1
	assert.False(t, entry.IsNull())
}

func Test_Digest_Halves_Use_LittleEndian_And_Slot_Uses_BigEndian(t *testing.T) {
	t.Parallel()

	var digest table.Digest
	for i := range digest {
		digest[i] = byte(i + 1) // 0x01..0x10
	}

	assert.Equal(t, binary.LittleEndian.Uint64(digest[0:8]), digest.H1())
	assert.Equal(t, binary.LittleEndian.Uint64(digest[8:16]), digest.H2())

	// A digest with a zero high half reduces exactly like its low half.
	var low table.Digest
	binary.BigEndian.PutUint64(low[8:16], 73*5+7)
	assert.Equal(t, uint64(7), low.Slot(73))

	// The high half contributes 2^64 mod r per unit.
	var high table.Digest
	binary.BigEndian.PutUint64(high[0:8], 1)
	twoTo64Mod73 := uint64(0)
	{
		// Compute 2^64 mod 73 without overflow: square 2^32 mod 73.
		twoTo32 := uint64(1) << 32
		m := twoTo32 % 73
		twoTo64Mod73 = (m * m) % 73
	}
	assert.Equal(t, twoTo64Mod73, high.Slot(73))
}

func Test_Directory_Derives_Sizes_And_Ranges_From_Table_Count(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		ptrs   []uint64
		sizes  []uint64
		ranges []uint64
	}{
		{
			// A one-sector table has exactly one sector-aligned starting
			// position: every digest probes the whole table.
			name:   "SingleTable",
			ptrs:   []uint64{512},
			sizes:  []uint64{2048},
			ranges: []uint64{1},
		},
		{
			name:   "TwoTables",
			ptrs:   []uint64{2560, 512},
			sizes:  []uint64{4096, 2048},
			ranges: []uint64{74, 1},
		},
		{
			name:   "ThreeTables",
			ptrs:   []uint64{9000, 2560, 512},
			sizes:  []uint64{8192, 4096, 2048},
			ranges: []uint64{220, 74, 1},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			slots := make([]uint64, table.MaxTables)
			copy(slots, testCase.ptrs)

			dir, err := table.NewDirectory(slots)
			require.NoError(t, err)
			require.Equal(t, len(testCase.ptrs), dir.Count())

			for i := range testCase.ptrs {
				assert.Equal(t, testCase.ptrs[i], dir.Ptr(i), "ptr %d", i)
				assert.Equal(t, testCase.sizes[i], dir.Size(i), "size %d", i)
				assert.Equal(t, testCase.ranges[i], dir.Range(i), "range %d", i)
			}

			if diff := cmp.Diff(testCase.ptrs, dir.Ptrs()); diff != "" {
				t.Errorf("Ptrs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func Test_Directory_Rejects_A_Gap_In_The_Pointer_Prefix(t *testing.T) {
	t.Parallel()

	slots := make([]uint64, table.MaxTables)
	slots[0] = 512
	slots[2] = 4096 // non-zero after a zero slot

	_, err := table.NewDirectory(slots)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorCodeHeaderCorrupted, errors.GetErrorCode(err))
}

func Test_Directory_Prepend_Doubles_The_Active_Table(t *testing.T) {
	t.Parallel()

	dir, err := table.NewDirectory([]uint64{512})
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), dir.NextTableSize())

	require.NoError(t, dir.Prepend(2560))
	assert.Equal(t, 2, dir.Count())
	assert.Equal(t, uint64(2560), dir.Ptr(0))
	assert.Equal(t, uint64(512), dir.Ptr(1))
	assert.Equal(t, uint64(4096), dir.Size(0))
	assert.Equal(t, uint64(2048), dir.Size(1))
	assert.Equal(t, uint64(8192), dir.NextTableSize())
}

func Test_Directory_Prepend_Fails_When_Header_Is_Full(t *testing.T) {
	t.Parallel()

	slots := make([]uint64, table.MaxTables)
	for i := range slots {
		slots[i] = uint64(512 + i) // offsets are irrelevant for this check
	}

	dir, err := table.NewDirectory(slots)
	require.NoError(t, err)
	require.True(t, dir.Full())

	err = dir.Prepend(1 << 40)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorCodeCapacityExhausted, errors.GetErrorCode(err))
}

func Test_SlotOffset_Is_Entry_Aligned_Within_Its_Table(t *testing.T) {
	t.Parallel()

	dir, err := table.NewDirectory([]uint64{2560, 512})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		digest := table.Digest(md5.Sum([]byte{byte(i)}))
		for tableIndex := 0; tableIndex < dir.Count(); tableIndex++ {
			offset := dir.SlotOffset(tableIndex, digest)
			base := dir.Ptr(tableIndex)

			assert.Zero(t, (offset-base)%table.EntrySize, "offset must sit on the entry grid")
			assert.GreaterOrEqual(t, offset, base)
			// A sector read starting at the slot must stay inside the table.
			assert.LessOrEqual(t, offset+table.Sector, base+dir.Size(tableIndex))
		}
	}
}

func Test_FindDigest_Only_Matches_At_Aligned_Offsets(t *testing.T) {
	t.Parallel()

	digest := table.Digest(md5.Sum([]byte("needle")))
	sector := make([]byte, table.Sector)

	// Plant the pattern unaligned inside a foreign entry's body: entry 0
	// starts at offset 0, its addr/size bytes begin at 16. Writing the
	// digest at offset 17 crosses into entry 1's digest region without
	// aligning to either entry boundary.
	copy(sector[17:], digest[:])

	_, ok := table.FindDigest(sector, digest)
	assert.False(t, ok, "unaligned occurrence must not match")

	// The same pattern at an entry boundary matches.
	copy(sector[3*table.EntrySize:], digest[:])
	pos, ok := table.FindDigest(sector, digest)
	require.True(t, ok)
	assert.Equal(t, 3*table.EntrySize, pos)
}

func Test_FindNull_Returns_First_Unused_Slot(t *testing.T) {
	t.Parallel()

	sector := make([]byte, table.Sector)

	// Fill the first two slots with live entries.
	for slot := 0; slot < 2; slot++ {
		digest := table.Digest(md5.Sum([]byte{byte(slot)}))
		entry := table.Entry{Digest: digest, Addr: 100, Size: 1}
		copy(sector[slot*table.EntrySize:], entry.Marshal())
	}

	pos, ok := table.FindNull(sector)
	require.True(t, ok)
	assert.Equal(t, 2*table.EntrySize, pos)
}

func Test_FindNull_Fails_In_A_Saturated_Sector(t *testing.T) {
	t.Parallel()

	sector := make([]byte, table.Sector)
	for slot := 0; slot < table.SlotsPerSector; slot++ {
		digest := table.Digest(md5.Sum([]byte{byte(slot), byte(slot >> 8)}))
		entry := table.Entry{Digest: digest, Addr: 100, Size: 1}
		copy(sector[slot*table.EntrySize:], entry.Marshal())
	}

	_, ok := table.FindNull(sector)
	assert.False(t, ok)
}
