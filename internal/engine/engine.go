// Package engine implements the insertion and lookup algorithm of a
// seafair store file.
//
// The engine ties the two lower layers together: internal/table supplies
// the geometry (digests, entries, the directory of table offsets with
// their probing ranges) and internal/storage supplies positioned file
// I/O. On top of those the engine runs the core loop of the format:
//
//   - Set appends the value blob at end-of-file, then probes the active
//     table's target sector. A matching digest is overwritten in place, an
//     unused slot takes the new entry, and a sector full of foreign
//     entries promotes the store to a fresh table of twice the size before
//     retrying (the already-written blob is reused, never re-appended).
//   - Get probes every table newest-first and returns the blob referenced
//     by the first matching entry. A newer table always shadows stale
//     copies of the same key in older tables.
//
// Probing is strictly sector-local. Each operation therefore costs one
// sector read plus, on writes, one entry write; growth is the overflow
// path rather than cross-sector probing.
//
// The engine optionally maintains an in-memory membership filter over all
// stored digests. The filter is rebuilt by streaming the table regions
// when a file is opened and updated on every write; lookups consult it
// first and skip all probe I/O when a key is definitely absent. False
// positives merely fall through to a normal probe.
//
// An engine assumes exclusive ownership of its file. Operations are
// serialized by the caller; the façade wraps each engine in a mutex.
package engine

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/iamNilotpal/seafair/internal/storage"
	"github.com/iamNilotpal/seafair/internal/table"
	"github.com/iamNilotpal/seafair/pkg/errors"
	"github.com/iamNilotpal/seafair/pkg/options"
	"go.uber.org/zap"
)

var (
	// ErrEngineClosed is returned when attempting to perform operations on a closed engine.
	ErrEngineClosed = stdErrors.New("operation failed: cannot access closed engine")
)

// Engine coordinates the storage and geometry layers for one store file.
type Engine struct {
	options *options.Options   // Configuration parameters for the engine and its subsystems.
	log     *zap.SugaredLogger // Structured logging throughout the engine.
	closed  atomic.Bool        // Tracks the engine's lifecycle state.
	storage *storage.Storage   // Positioned file I/O against the store file.
	dir     *table.Directory   // In-memory view of the pointer header.
	filter  *bloom.BloomFilter // Membership filter over stored digests; nil when disabled.
}

// Stats is a point-in-time snapshot of a store file's shape, exposed for
// operators and tests.
type Stats struct {
	Path     string
	FileSize int64
	Tables   int
	Ptrs     []uint64
	Sizes    []uint64
	Ranges   []uint64
}

// Config holds all the parameters needed to initialize a new Engine instance.
type Config struct {
	Path    string
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// New creates and initializes an Engine for the store file at config.Path,
// creating the file and its first table when absent. Opening an existing
// file loads and validates the pointer header and, when the membership
// filter is enabled, rebuilds it from the table regions.
func New(ctx context.Context, config *Config) (*Engine, error) {
	if config == nil || config.Path == "" || config.Options == nil || config.Logger == nil {
		return nil, fmt.Errorf("invalid configuration")
	}

	store, err := storage.New(ctx, &storage.Config{
		Path:    config.Path,
		Options: config.Options,
		Logger:  config.Logger,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		options: config.Options,
		log:     config.Logger,
		storage: store,
	}

	if err := e.loadDirectory(); err != nil {
		_ = store.Close()
		return nil, err
	}

	// Bootstrap case: a freshly initialized file has a zeroed header and
	// therefore no tables. Allocate the first one so writes always have
	// an active table.
	if e.dir.Count() == 0 {
		if err := e.addTable(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	if config.Options.Filter.Enabled {
		e.filter = bloom.NewWithEstimates(
			config.Options.Filter.ExpectedKeys,
			config.Options.Filter.FalsePositiveRate,
		)
		if err := e.rebuildFilter(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	config.Logger.Infow(
		"Engine ready",
		"path", config.Path,
		"tables", e.dir.Count(),
		"fileSize", e.storage.Size(),
		"filterEnabled", e.filter != nil,
	)

	return e, nil
}

// loadDirectory reads the pointer header and validates that every table
// it names lies inside the file. An offset past end-of-file means the
// header and the data diverged; the store refuses to open rather than
// serve garbage sectors.
func (e *Engine) loadDirectory() error {
	slots, err := e.storage.ReadHeader()
	if err != nil {
		return err
	}

	dir, err := table.NewDirectory(slots)
	if err != nil {
		if se, ok := errors.AsStorageError(err); ok {
			se.WithPath(e.storage.Path())
		}
		return err
	}

	fileSize := uint64(e.storage.Size())
	for i := 0; i < dir.Count(); i++ {
		ptr, size := dir.Ptr(i), dir.Size(i)
		if ptr < table.HeaderBytes || ptr+size > fileSize {
			return errors.NewStorageError(
				nil, errors.ErrorCodeHeaderCorrupted, "Pointer header names a table outside the file",
			).WithPath(e.storage.Path()).
				WithTableIndex(i).
				WithOffset(int64(ptr)).
				WithDetail("tableSize", size).
				WithDetail("fileSize", fileSize)
		}
	}

	e.dir = dir
	return nil
}

// Get looks up the blob stored under the digest. It probes the tables
// newest-first so an overwritten key always resolves to its latest value,
// and returns found=false without error when no table holds the key.
func (e *Engine) Get(ctx context.Context, digest table.Digest) ([]byte, bool, error) {
	if e.closed.Load() {
		return nil, false, ErrEngineClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if digest.IsZero() {
		// The all-zero digest marks unused slots, so it can never name a
		// stored key; probing for it would match the first empty slot.
		return nil, false, nil
	}

	// A definite "absent" from the filter saves the whole probe chain.
	if e.filter != nil && !e.filter.Test(digest[:]) {
		return nil, false, nil
	}

	for i := 0; i < e.dir.Count(); i++ {
		sector, err := e.storage.ReadSector(e.dir.SlotOffset(i, digest))
		if err != nil {
			if se, ok := errors.AsStorageError(err); ok {
				se.WithTableIndex(i)
			}
			return nil, false, err
		}

		pos, ok := table.FindDigest(sector, digest)
		if !ok {
			continue
		}

		entry := table.UnmarshalEntry(sector[pos : pos+table.EntrySize])
		blob, err := e.storage.ReadBlob(entry.Addr, entry.Size)
		if err != nil {
			return nil, false, err
		}
		return blob, true, nil
	}

	return nil, false, nil
}

// Set stores the blob under the digest. The blob is appended first, then
// exactly one entry is written in the active table: over the key's
// existing entry when the sector already holds the digest, into the first
// unused slot otherwise. A sector full of foreign entries promotes the
// store to a larger table and retries; the appended blob is reused across
// retries rather than written again.
func (e *Engine) Set(ctx context.Context, digest table.Digest, blob []byte) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if digest.IsZero() {
		// The all-zero digest is the null-entry marker; storing it would
		// plant an entry every probe treats as unused.
		return errors.NewValidationError(
			nil, errors.ErrorCodeInternal, "Key digest collides with the null-entry marker",
		).WithField("digest").WithRule("non_zero")
	}

	addr, err := e.storage.AppendBlob(blob)
	if err != nil {
		return err
	}

	// The blob must be persisted before any entry can reference it, so a
	// crash can never expose a dangling entry.
	if err := e.storage.Barrier(); err != nil {
		return err
	}

	entry := table.Entry{Digest: digest, Addr: addr, Size: uint32(len(blob))}

	for {
		slotOffset := e.dir.SlotOffset(0, digest)
		sector, err := e.storage.ReadSector(slotOffset)
		if err != nil {
			return err
		}

		// Overwrite the key's entry in place, or take the first unused
		// slot. Either way exactly one entry write commits the mutation.
		pos, ok := table.FindDigest(sector, digest)
		if !ok {
			pos, ok = table.FindNull(sector)
		}
		if ok {
			if err := e.storage.WriteEntry(slotOffset+uint64(pos), entry.Marshal()); err != nil {
				return err
			}
			break
		}

		// The sector is saturated with foreign keys: promote to a table
		// of twice the size and retry. The fresh table is all zeros, so
		// the retry is guaranteed a free slot.
		if err := e.addTable(ctx); err != nil {
			return err
		}
	}

	if e.filter != nil {
		e.filter.Add(digest[:])
	}

	return e.storage.CommitMutation()
}

// addTable allocates a zero-filled table of twice the active table's size
// at end-of-file and makes it the new active table. The blob/table data
// is written before the header mutation that publishes it, so a failed
// allocation leaves only invisible trailing zeros.
func (e *Engine) addTable(ctx context.Context) error {
	if e.dir.Full() {
		return errors.NewStorageError(
			nil, errors.ErrorCodeCapacityExhausted, "Store has reached the maximum number of tables",
		).WithPath(e.storage.Path()).
			WithDetail("maxTables", table.MaxTables).
			WithDetail("suggestion", "the store remains readable; migrate to a fresh file to continue writing")
	}

	size := e.dir.NextTableSize()
	addr, err := e.storage.AllocateZeroed(ctx, size)
	if err != nil {
		return err
	}

	if err := e.dir.Prepend(addr); err != nil {
		return err
	}

	if err := e.storage.WritePointers(e.dir.Ptrs()); err != nil {
		return err
	}

	e.log.Infow(
		"Allocated hash table",
		"path", e.storage.Path(),
		"tables", e.dir.Count(),
		"tableSize", size,
		"tableOffset", addr,
	)
	return nil
}

// rebuildFilter streams every table region and adds each live entry's
// digest to the membership filter. Entries sit on a 28-byte grid from the
// table base, so the scan walks that grid in chunks sized to a whole
// number of entries.
func (e *Engine) rebuildFilter(ctx context.Context) error {
	// Largest multiple of the entry size that fits the allocation chunk.
	chunkSize := (table.AllocChunk / table.EntrySize) * table.EntrySize

	for i := 0; i < e.dir.Count(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		base := e.dir.Ptr(i)
		entries := e.dir.Size(i) / table.EntrySize

		for done := uint64(0); done < entries; {
			batch := entries - done
			if batch > uint64(chunkSize/table.EntrySize) {
				batch = uint64(chunkSize / table.EntrySize)
			}

			buf, err := e.storage.ReadRange(base+done*table.EntrySize, int(batch)*table.EntrySize)
			if err != nil {
				return err
			}

			for j := uint64(0); j < batch; j++ {
				off := j * table.EntrySize
				entry := table.UnmarshalEntry(buf[off : off+table.EntrySize])
				if !entry.IsNull() {
					e.filter.Add(entry.Digest[:])
				}
			}
			done += batch
		}
	}

	return nil
}

// Stats returns a snapshot of the store file's current shape.
func (e *Engine) Stats() Stats {
	n := e.dir.Count()
	stats := Stats{
		Path:     e.storage.Path(),
		FileSize: e.storage.Size(),
		Tables:   n,
		Ptrs:     e.dir.Ptrs(),
		Sizes:    make([]uint64, n),
		Ranges:   make([]uint64, n),
	}
	for i := 0; i < n; i++ {
		stats.Sizes[i] = e.dir.Size(i)
		stats.Ranges[i] = e.dir.Range(i)
	}
	return stats
}

// Sync flushes the store file to stable storage regardless of the
// configured durability level.
func (e *Engine) Sync() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	return e.storage.Sync()
}

// Close gracefully shuts down the engine, flushing pending writes and
// releasing the file handle.
func (e *Engine) Close() error {
	// Use atomic compare-and-swap to transition from open (false) to
	// closed (true), ensuring only one caller performs the shutdown.
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	return e.storage.Close()
}
