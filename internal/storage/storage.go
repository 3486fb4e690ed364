// Package storage provides the file layer for a seafair store.
//
// One regular file encodes an entire store. The file begins with a fixed
// 512-byte pointer header (64 little-endian uint64 slots), followed by
// hash tables and value blobs interleaved in append order. This package
// owns every read and write against that file: loading and persisting the
// header, zero-filling freshly allocated tables in large chunks, appending
// value blobs at end-of-file, and serving the sector and blob reads the
// lookup path issues.
//
// The layer deliberately knows nothing about probing or digests. It deals
// in offsets and byte counts; the geometry lives in internal/table and the
// insertion/lookup algorithm in internal/engine. What it does own is the
// durability mechanics: a Sync that can be called per mutation, as a
// barrier between a blob write and the entry write referencing it, or on
// a batched schedule, according to the configured durability level.
//
// Initialization and Recovery:
//
// When a store file is opened the layer distinguishes two cases. A file
// that does not yet exist (or is empty) is initialized with a zeroed
// pointer header; the engine then allocates the first table. An existing
// file must be at least as long as the header, otherwise it is rejected
// as corrupt — a truncated header makes every table unreachable and no
// recovery is possible.
package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/iamNilotpal/seafair/internal/table"
	"github.com/iamNilotpal/seafair/pkg/errors"
	"github.com/iamNilotpal/seafair/pkg/filesys"
	"github.com/iamNilotpal/seafair/pkg/options"
)

var (
	ErrStorageClosed = fmt.Errorf("operation failed: cannot access closed storage")
)

// New opens or creates the data file at config.Path and prepares it for
// engine use. A fresh file receives a zeroed pointer header; an existing
// file has its length validated against the fixed header size.
func New(ctx context.Context, config *Config) (*Storage, error) {
	// Input validation ensures we have valid configuration before proceeding.
	if config == nil || config.Path == "" || config.Options == nil || config.Logger == nil {
		return nil, fmt.Errorf("invalid configuration")
	}

	fileName := filepath.Base(config.Path)

	config.Logger.Infow(
		"Opening store file",
		"path", config.Path,
		"durability", config.Options.Durability,
	)

	// Create the parent directory with appropriate permissions if it
	// doesn't exist, so the store works on a fresh installation.
	dir := filepath.Dir(config.Path)
	if err := filesys.CreateDir(dir, 0755, true); err != nil {
		return nil, errors.ClassifyDirectoryCreationError(err, dir)
	}

	// Open the data file for positioned reads and writes.
	// O_CREATE: Create the file if it doesn't exist.
	// O_RDWR: Both halves of every operation need the handle — probes
	// read sectors, mutations write entries.
	// O_APPEND is deliberately absent: appends are placed through WriteAt
	// against the tracked end-of-file position, and O_APPEND would make
	// the kernel ignore those offsets.
	file, err := os.OpenFile(config.Path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.ClassifyFileOpenError(err, config.Path, fileName)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "Failed to stat store file").
			WithPath(config.Path).WithFileName(fileName)
	}

	s := &Storage{
		file:     file,
		path:     config.Path,
		fileName: fileName,
		size:     stat.Size(),
		options:  config.Options,
		log:      config.Logger,
	}

	switch {
	case s.size == 0:
		// Bootstrap case: brand-new file. Write the zeroed 64-slot
		// pointer header; the engine allocates the first table next.
		if err := s.initHeader(); err != nil {
			_ = file.Close()
			return nil, err
		}
		config.Logger.Infow("Initialized new store file", "path", config.Path, "headerBytes", table.HeaderBytes)

	case s.size < table.HeaderBytes:
		// A file shorter than the header cannot name a single table.
		_ = file.Close()
		return nil, errors.NewStorageError(
			nil, errors.ErrorCodeHeaderCorrupted, "Store file is shorter than the pointer header",
		).WithPath(config.Path).
			WithFileName(fileName).
			WithDetail("fileSize", s.size).
			WithDetail("headerBytes", table.HeaderBytes)

	default:
		config.Logger.Infow("Opened existing store file", "path", config.Path, "fileSize", s.size)
	}

	return s, nil
}

// initHeader writes the zeroed 64-slot pointer header at offset zero.
func (s *Storage) initHeader() error {
	header := make([]byte, table.HeaderBytes)
	if _, err := s.file.WriteAt(header, 0); err != nil {
		return errors.ClassifyWriteError(err, s.fileName, s.path, 0)
	}
	s.size = table.HeaderBytes
	return nil
}

// ReadHeader reads the pointer header and returns the raw 64 slot values
// in file order. Zero slots mark unused positions; interpreting the
// non-zero prefix is the directory's job.
func (s *Storage) ReadHeader() ([]uint64, error) {
	if s.closed.Load() {
		return nil, ErrStorageClosed
	}

	raw := make([]byte, table.HeaderBytes)
	if _, err := s.file.ReadAt(raw, 0); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeHeaderCorrupted, "Failed to read pointer header").
			WithPath(s.path).WithFileName(s.fileName).WithOffset(0)
	}

	slots := make([]uint64, table.MaxTables)
	for i := range slots {
		slots[i] = binary.LittleEndian.Uint64(raw[i*8 : i*8+8])
	}
	return slots, nil
}

// WritePointers persists the table offsets to the front of the header.
// Exactly len(ptrs) slots are rewritten; higher slots retain whatever
// they were, which is zero for slots that were never used.
func (s *Storage) WritePointers(ptrs []uint64) error {
	if s.closed.Load() {
		return ErrStorageClosed
	}
	if len(ptrs) > table.MaxTables {
		return errors.NewStorageError(
			nil, errors.ErrorCodeCapacityExhausted, "Pointer count exceeds the header's slot capacity",
		).WithPath(s.path).WithDetail("pointers", len(ptrs))
	}

	raw := make([]byte, len(ptrs)*8)
	for i, ptr := range ptrs {
		binary.LittleEndian.PutUint64(raw[i*8:i*8+8], ptr)
	}

	if _, err := s.file.WriteAt(raw, 0); err != nil {
		return errors.ClassifyWriteError(err, s.fileName, s.path, 0)
	}
	return nil
}

// AllocateZeroed appends size zero bytes at end-of-file and returns the
// offset where the region begins. The zeros are written in AllocChunk
// pieces so even the largest table never needs a proportionate buffer.
//
// If the append fails partway the file is left with trailing zeros past
// the recorded pointers; because the header has not been updated those
// bytes are invisible and simply overwritten by the next allocation
// attempt.
func (s *Storage) AllocateZeroed(ctx context.Context, size uint64) (uint64, error) {
	if s.closed.Load() {
		return 0, ErrStorageClosed
	}

	addr := uint64(s.size)
	chunk := make([]byte, table.AllocChunk)

	remaining := size
	offset := s.size
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		n := uint64(len(chunk))
		if remaining < n {
			n = remaining
		}

		if _, err := s.file.WriteAt(chunk[:n], offset); err != nil {
			return 0, errors.ClassifyWriteError(err, s.fileName, s.path, offset)
		}

		offset += int64(n)
		remaining -= n
	}

	s.size = offset
	return addr, nil
}

// AppendBlob writes a value blob at end-of-file and returns its address.
// Blob lengths are bounded by the entry's 32-bit size field; oversized
// values are rejected before any bytes reach the file.
func (s *Storage) AppendBlob(blob []byte) (uint64, error) {
	if s.closed.Load() {
		return 0, ErrStorageClosed
	}
	if uint64(len(blob)) > math.MaxUint32 {
		return 0, errors.NewBlobSizeError(len(blob))
	}

	addr := uint64(s.size)
	if _, err := s.file.WriteAt(blob, s.size); err != nil {
		return 0, errors.ClassifyWriteError(err, s.fileName, s.path, s.size)
	}

	s.size += int64(len(blob))
	return addr, nil
}

// ReadSector reads one probing sector starting at the given offset. The
// directory's range arithmetic guarantees a sector starting at any valid
// slot lies entirely inside its table, so a short read is corruption.
func (s *Storage) ReadSector(offset uint64) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStorageClosed
	}

	sector := make([]byte, table.Sector)
	if _, err := s.file.ReadAt(sector, int64(offset)); err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeSectorReadFailure, "Failed to read probing sector").
			WithPath(s.path).WithFileName(s.fileName).WithOffset(int64(offset))
	}
	return sector, nil
}

// WriteEntry writes one encoded entry at the given offset inside a table.
func (s *Storage) WriteEntry(offset uint64, entry []byte) error {
	if s.closed.Load() {
		return ErrStorageClosed
	}

	if _, err := s.file.WriteAt(entry, int64(offset)); err != nil {
		return errors.ClassifyWriteError(err, s.fileName, s.path, int64(offset))
	}
	return nil
}

// ReadBlob reads a value blob by its address and recorded length.
func (s *Storage) ReadBlob(addr uint64, size uint32) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStorageClosed
	}

	blob := make([]byte, size)
	n, err := s.file.ReadAt(blob, int64(addr))
	// A blob at the very end of the file may come back with io.EOF even
	// when every byte was read; only a short read is an actual failure.
	if err != nil && !(err == io.EOF && n == len(blob)) {
		return nil, errors.NewStorageError(err, errors.ErrorCodeBlobReadFailure, "Failed to read value blob").
			WithPath(s.path).WithFileName(s.fileName).WithOffset(int64(addr)).
			WithDetail("blobSize", size)
	}
	return blob, nil
}

// ReadRange reads an arbitrary byte range from the file. The engine uses
// it to stream table regions when rebuilding the membership filter on
// open; length is bounded by the caller's chunking.
func (s *Storage) ReadRange(offset uint64, length int) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStorageClosed
	}

	buf := make([]byte, length)
	n, err := s.file.ReadAt(buf, int64(offset))
	if err != nil && !(err == io.EOF && n == len(buf)) {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "Failed to read file range").
			WithPath(s.path).WithFileName(s.fileName).WithOffset(int64(offset)).
			WithDetail("length", length)
	}
	return buf, nil
}

// Sync flushes the file to stable storage.
func (s *Storage) Sync() error {
	if s.closed.Load() {
		return ErrStorageClosed
	}

	if err := s.file.Sync(); err != nil {
		return errors.ClassifySyncError(err, s.fileName, s.path)
	}
	s.unsynced = 0
	return nil
}

// CommitMutation applies the configured durability policy after a
// completed mutation. At DurabilityOS the caller has already issued the
// blob barrier; this call persists the entry write. At DurabilityApp the
// direct writes have reached the page cache in program order and survive
// a process crash, so nothing further is required. At DurabilityNone a
// sync is issued only every FlushInterval-th mutation.
func (s *Storage) CommitMutation() error {
	switch s.options.Durability {
	case options.DurabilityOS:
		return s.Sync()

	case options.DurabilityNone:
		s.unsynced++
		if s.unsynced >= s.options.FlushInterval {
			return s.Sync()
		}
	}
	return nil
}

// Barrier orders a blob write before the entry write that will reference
// it. Only DurabilityOS needs an explicit barrier: unbuffered writes
// already reach the page cache in program order, which is enough for the
// weaker levels.
func (s *Storage) Barrier() error {
	if s.options.Durability == options.DurabilityOS {
		return s.Sync()
	}
	return nil
}

// Size returns the current size of the data file in bytes.
func (s *Storage) Size() int64 {
	return s.size
}

// Path returns the full path of the data file.
func (s *Storage) Path() string {
	return s.path
}

// Close flushes pending writes and releases the file handle. The storage
// cannot be used after closure.
func (s *Storage) Close() error {
	// Use atomic compare-and-swap to transition from open to closed,
	// ensuring only one caller performs the shutdown.
	if !s.closed.CompareAndSwap(false, true) {
		return ErrStorageClosed
	}

	s.log.Infow("Closing store file", "path", s.path, "fileSize", s.size)

	var syncErr error
	if err := s.file.Sync(); err != nil {
		syncErr = errors.ClassifySyncError(err, s.fileName, s.path)
	}

	if err := s.file.Close(); err != nil {
		return errors.NewStorageError(err, errors.ErrorCodeIO, "Failed to close store file").
			WithPath(s.path).WithFileName(s.fileName)
	}
	return syncErr
}
