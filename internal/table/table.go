// Package table defines the on-disk geometry of a seafair store file.
//
// A store file begins with a fixed pointer header of 64 little-endian
// uint64 slots. Each non-zero slot holds the byte offset of a hash table;
// tables are appended in creation order and the newest table always sits
// at slot zero. Past the header, the file interleaves tables and value
// blobs in append order.
//
// This package owns the pure, I/O-free half of that layout: the 28-byte
// entry codec, the 16-byte key digest and its slot arithmetic, the
// in-memory directory of table offsets with their derived sizes and
// probing ranges, and the sector scanning primitives. The actual reads
// and writes live in internal/storage; the insertion and lookup algorithm
// that ties the two together lives in internal/engine.
package table

import (
	"encoding/binary"
	"math/bits"

	"github.com/iamNilotpal/seafair/pkg/errors"
)

// Layout constants. Changing any of these breaks compatibility with every
// existing store file, so they are fixed for the lifetime of the format.
const (
	// Sector is the unit of probing. Every probe reads exactly one
	// sector; collisions beyond a sector trigger table promotion rather
	// than cross-sector probing.
	Sector = 512 * 4

	// EntrySize is the fixed on-disk size of one table entry:
	// two uint64 digest halves, a uint64 blob address and a uint32
	// blob length.
	EntrySize = 28

	// SlotsPerSector is the number of whole entries a probe inspects.
	// 2048 / 28 leaves 4 trailing bytes of slack that probing ignores.
	SlotsPerSector = Sector / EntrySize

	// MaxTables is the hard limit on the number of tables a file can
	// hold, fixed by the 64-slot pointer header.
	MaxTables = 64

	// HeaderBytes is the size of the pointer header: 64 uint64 slots.
	HeaderBytes = MaxTables * 8

	// AllocChunk is the write granularity used when zero-filling a newly
	// allocated table.
	AllocChunk = 4 * 1024 * 1024
)

// Digest is the 16-byte MD5 of a canonical key encoding. The raw bytes are
// the on-disk key pattern; entry matching compares all 16 bytes. For slot
// arithmetic the digest is read as a big-endian 128-bit unsigned integer,
// while the two stored uint64 halves use the little-endian interpretation
// of the same bytes.
type Digest [16]byte

// IsZero reports whether every byte of the digest is zero. The all-zero
// digest is reserved as the null-entry marker, so a real key hashing to
// zero is treated as absent (vanishingly unlikely with MD5).
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// H1 returns the little-endian uint64 view of digest bytes [0,8).
func (d Digest) H1() uint64 {
	return binary.LittleEndian.Uint64(d[0:8])
}

// H2 returns the little-endian uint64 view of digest bytes [8,16).
func (d Digest) H2() uint64 {
	return binary.LittleEndian.Uint64(d[8:16])
}

// Slot reduces the digest modulo r, the number of sector-aligned starting
// positions of a table. The digest is interpreted as a big-endian 128-bit
// unsigned integer for this reduction.
func (d Digest) Slot(r uint64) uint64 {
	hi := binary.BigEndian.Uint64(d[0:8])
	lo := binary.BigEndian.Uint64(d[8:16])
	return bits.Rem64(hi, lo, r)
}

// Entry is one fixed-size table record: the key digest plus the address
// and length of the associated value blob.
type Entry struct {
	Digest Digest
	Addr   uint64
	Size   uint32
}

// IsNull reports whether the entry marks an unused slot. Only the digest
// participates: an all-zero digest means the slot has never been written.
func (e Entry) IsNull() bool {
	return e.Digest.IsZero()
}

// Marshal encodes the entry into its 28-byte on-disk form: the 16 raw
// digest bytes followed by the little-endian address and length.
func (e Entry) Marshal() []byte {
	buf := make([]byte, EntrySize)
	copy(buf[0:16], e.Digest[:])
	binary.LittleEndian.PutUint64(buf[16:24], e.Addr)
	binary.LittleEndian.PutUint32(buf[24:28], e.Size)
	return buf
}

// UnmarshalEntry decodes a 28-byte on-disk entry. The slice must hold at
// least EntrySize bytes.
func UnmarshalEntry(buf []byte) Entry {
	var e Entry
	copy(e.Digest[:], buf[0:16])
	e.Addr = binary.LittleEndian.Uint64(buf[16:24])
	e.Size = binary.LittleEndian.Uint32(buf[24:28])
	return e
}

// Directory is the in-memory view of the pointer header: the table offsets
// in newest-first order together with their derived sizes and probing
// ranges. The directory is plain data with no locking; the engine
// serializes all access to it (one handle owns the file exclusively).
type Directory struct {
	ptrs   []uint64 // table offsets, newest first
	sizes  []uint64 // table byte sizes, derived from the table count
	ranges []uint64 // sector-aligned starting positions per table
}

// NewDirectory builds a directory from the 64 raw header slots. Non-zero
// slots must form a contiguous prefix; zero slots mark unused positions.
func NewDirectory(slots []uint64) (*Directory, error) {
	if len(slots) > MaxTables {
		return nil, errors.NewStorageError(
			nil, errors.ErrorCodeHeaderCorrupted, "Pointer header holds more slots than the format allows",
		).WithDetail("slots", len(slots)).WithDetail("maxTables", MaxTables)
	}

	ptrs := make([]uint64, 0, len(slots))
	for i, slot := range slots {
		if slot == 0 {
			// The remaining slots must all be zero.
			for _, rest := range slots[i:] {
				if rest != 0 {
					return nil, errors.NewStorageError(
						nil, errors.ErrorCodeHeaderCorrupted, "Pointer header has a non-zero slot after the first zero slot",
					).WithDetail("slotIndex", i)
				}
			}
			break
		}
		ptrs = append(ptrs, slot)
	}

	d := &Directory{ptrs: ptrs}
	d.recompute()
	return d, nil
}

// Count returns the number of allocated tables.
func (d *Directory) Count() int {
	return len(d.ptrs)
}

// Ptr returns the file offset of table i (0 = newest).
func (d *Directory) Ptr(i int) uint64 {
	return d.ptrs[i]
}

// Size returns the byte size of table i, derived from the table count:
// the newest table spans 2^(N-1) sectors and each older table halves that.
func (d *Directory) Size(i int) uint64 {
	return d.sizes[i]
}

// Range returns the number of sector-aligned starting positions of table
// i. Slot indices are always reduced modulo this range so a sector read
// beginning at any slot stays inside the table.
func (d *Directory) Range(i int) uint64 {
	return d.ranges[i]
}

// Ptrs returns a copy of the table offsets, newest first. The copy keeps
// callers from aliasing directory state they do not own.
func (d *Directory) Ptrs() []uint64 {
	ptrs := make([]uint64, len(d.ptrs))
	copy(ptrs, d.ptrs)
	return ptrs
}

// SlotOffset returns the absolute file offset of the digest's slot in
// table i: the table base plus the slot index scaled by the entry size.
func (d *Directory) SlotOffset(i int, digest Digest) uint64 {
	return d.ptrs[i] + digest.Slot(d.ranges[i])*EntrySize
}

// NextTableSize returns the byte size the next allocated table must have:
// 2^N sectors, doubling the current newest table.
func (d *Directory) NextTableSize() uint64 {
	return (uint64(1) << uint(len(d.ptrs))) * Sector
}

// Full reports whether the pointer header has no room for another table.
func (d *Directory) Full() bool {
	return len(d.ptrs) >= MaxTables
}

// Prepend records a freshly allocated table at the given offset as the new
// active table and rederives all sizes and ranges.
func (d *Directory) Prepend(addr uint64) error {
	if d.Full() {
		return errors.NewStorageError(
			nil, errors.ErrorCodeCapacityExhausted, "Pointer header is full; no further tables can be allocated",
		).WithDetail("maxTables", MaxTables)
	}

	d.ptrs = append([]uint64{addr}, d.ptrs...)
	d.recompute()
	return nil
}

// recompute rederives per-table sizes and probing ranges from the current
// table count. Table i spans 2^(N-1-i) sectors; its probing range is the
// count of sector-aligned starting positions inside it.
func (d *Directory) recompute() {
	n := len(d.ptrs)
	d.sizes = make([]uint64, n)
	d.ranges = make([]uint64, n)

	for i := range d.ptrs {
		size := (uint64(1) << uint(n-1-i)) * Sector
		d.sizes[i] = size
		d.ranges[i] = (size-Sector)/EntrySize + 1
	}
}

// FindDigest scans a sector for an entry whose digest matches, comparing
// entry-by-entry at the 73 aligned offsets. It returns the byte offset of
// the matching entry within the sector. Unlike a byte-substring search,
// the aligned scan can never be fooled by a foreign entry whose body
// happens to contain the pattern at an unaligned position.
func FindDigest(sector []byte, digest Digest) (int, bool) {
	limit := len(sector) / EntrySize
	for slot := 0; slot < limit; slot++ {
		off := slot * EntrySize
		if Digest(sector[off:off+16]) == digest {
			return off, true
		}
	}
	return 0, false
}

// FindNull scans a sector for the first unused slot: 16 zero bytes at an
// entry-aligned offset.
func FindNull(sector []byte) (int, bool) {
	return FindDigest(sector, Digest{})
}
