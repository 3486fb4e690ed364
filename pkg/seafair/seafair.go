// Package seafair provides a single-file, embedded, schemaless key-value
// store optimized for fixed-size hashed keys and variable-size opaque
// values. A client associates a value with a composite key of one or more
// named fields and may later retrieve it by supplying the same fields.
// Keys are not enumerable and range queries are not supported.
//
// Each record type (class) declares the fields that form its key. Keys
// are hashed into 16-byte digests scoped by the class tag, so distinct
// types with colliding key values never interact. Values live in an
// append-only region of the store file; overwrites shadow older copies
// rather than reclaiming them, which suits write-mostly workloads where
// files grow monotonically.
//
// Store is the primary entry point: open one with Open, register record
// types, then use Get/Set for raw blobs or Save/Find for codec-backed
// record bodies.
package seafair

import (
	"context"
	stdErrors "errors"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/seafair/internal/engine"
	"github.com/iamNilotpal/seafair/internal/record"
	"github.com/iamNilotpal/seafair/pkg/errors"
	"github.com/iamNilotpal/seafair/pkg/logger"
	"github.com/iamNilotpal/seafair/pkg/options"
	"github.com/iamNilotpal/seafair/pkg/storefile"
	"go.uber.org/zap"
)

var (
	// ErrStoreClosed is returned when attempting to perform operations on a closed store.
	ErrStoreClosed = stdErrors.New("operation failed: cannot access closed store")
)

// Fields is a named-field record: a mapping from field names to values.
type Fields = record.Fields

// RecordType describes one record class: its name, key fields and body
// codec. See the record package for field semantics.
type RecordType = record.Type

// Codec serializes record bodies for Save and Find.
type Codec = record.Codec

// JSONCodec is the default record-body codec.
type JSONCodec = record.JSONCodec

// Store represents an instance of the seafair key/value store. It owns
// one engine per registered record type (or a single shared engine when
// configured with a shared file) and the record-type registry that maps
// field tuples onto key digests.
//
// A Store serializes all engine access under one mutex, making it safe
// for concurrent use from multiple goroutines. Each engine assumes
// exclusive ownership of its file: two stores (or processes) opening the
// same data directory for writing produce undefined state.
type Store struct {
	mu       sync.Mutex                // Serializes all engine entry points.
	closed   atomic.Bool               // Tracks the store's lifecycle state.
	options  *options.Options          // Configuration options applied to this store.
	log      *zap.SugaredLogger        // Structured logging throughout the store.
	registry *record.Registry          // Registered record types.
	engines  map[string]*engine.Engine // Open engines keyed by class; unused in shared-file mode.
	shared   *engine.Engine            // The single engine in shared-file mode; nil otherwise.
}

// Open creates and initializes a seafair store. Store files are opened
// (and created, together with the data directory, if absent) lazily as
// record types are registered, or eagerly for the shared file. The
// service name tags every log line the store emits.
func Open(ctx context.Context, service string, opts ...options.OptionFunc) (*Store, error) {
	// Initialize a logger for the given service.
	log := logger.New(service)

	// Initialize default options, then apply any provided overrides.
	defaultOpts := options.NewDefaultOptions()
	for _, opt := range opts {
		opt(&defaultOpts)
	}

	registry, err := record.New(&record.Config{Logger: log})
	if err != nil {
		return nil, err
	}

	s := &Store{
		options:  &defaultOpts,
		log:      log,
		registry: registry,
		engines:  make(map[string]*engine.Engine),
	}

	// Shared-file mode opens its single engine up front; per-class mode
	// opens engines as types register.
	if defaultOpts.SharedFile {
		eng, err := s.openEngine(ctx, options.DefaultSharedFileName)
		if err != nil {
			return nil, err
		}
		s.shared = eng
	}

	return s, nil
}

// openEngine opens the engine for one store file inside the data directory.
func (s *Store) openEngine(ctx context.Context, fileName string) (*engine.Engine, error) {
	path := filepath.Join(s.options.DataDir, fileName)
	return engine.New(ctx, &engine.Config{
		Path:    path,
		Options: s.options,
		Logger:  s.log,
	})
}

// Register declares a record type with the store. In per-file mode this
// opens (creating if necessary) the `<class>.sea` file that will hold the
// type's keys; in shared-file mode the type joins the common file. The
// type's key fields are sorted once here and reused for every digest.
func (s *Store) Register(ctx context.Context, t *RecordType) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	if err := s.registry.Register(t); err != nil {
		return err
	}

	if s.shared != nil {
		return nil
	}

	fileName, err := storefile.GenerateName(t.Name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	eng, err := s.openEngine(ctx, fileName)
	if err != nil {
		return err
	}
	s.engines[t.Name] = eng
	return nil
}

// Classes returns the registered record classes in sorted order.
func (s *Store) Classes() []string {
	return s.registry.Classes()
}

// engineFor resolves the engine holding a class's keys.
func (s *Store) engineFor(class string) (*engine.Engine, bool) {
	if s.shared != nil {
		return s.shared, true
	}
	eng, ok := s.engines[class]
	return eng, ok
}

// bind resolves a class and derives the digest for a field map in one
// step shared by every operation.
func (s *Store) bind(class string, fields Fields, operation string) (*record.Type, *engine.Engine, [16]byte, error) {
	t, ok := s.registry.Lookup(class)
	if !ok {
		return nil, nil, [16]byte{}, errors.NewUnknownTypeError(class, operation)
	}

	digest, err := t.Digest(fields, operation)
	if err != nil {
		return nil, nil, [16]byte{}, err
	}

	eng, ok := s.engineFor(class)
	if !ok {
		// Registration always opens the engine, so a missing one means
		// the store's invariants were broken elsewhere.
		return nil, nil, [16]byte{}, errors.NewRecordError(
			nil, errors.ErrorCodeInternal, "no engine is open for the record class",
		).WithClass(class).WithOperation(operation)
	}

	return t, eng, digest, nil
}

// Set stores an opaque blob under the key derived from the field map.
// Every declared key field of the class must be present in fields; extra
// fields are ignored for hashing.
func (s *Store) Set(ctx context.Context, class string, fields Fields, blob []byte) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, eng, digest, err := s.bind(class, fields, "Set")
	if err != nil {
		return err
	}
	return eng.Set(ctx, digest, blob)
}

// Get retrieves the blob stored under the key derived from the field map.
// It returns found=false without error when the key is absent.
func (s *Store) Get(ctx context.Context, class string, fields Fields) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrStoreClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, eng, digest, err := s.bind(class, fields, "Get")
	if err != nil {
		return nil, false, err
	}
	return eng.Get(ctx, digest)
}

// Save encodes the full field map with the class's codec and stores it
// under the key derived from the declared key fields. It is the record
// counterpart of Set.
func (s *Store) Save(ctx context.Context, class string, fields Fields) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, eng, digest, err := s.bind(class, fields, "Save")
	if err != nil {
		return err
	}

	blob, err := t.Codec.Encode(fields)
	if err != nil {
		if re, ok := errors.AsRecordError(err); ok {
			re.WithClass(class).WithOperation("Save")
		}
		return err
	}
	return eng.Set(ctx, digest, blob)
}

// Find retrieves and decodes the record stored under the key derived from
// the field map. Only the class's key fields participate in the lookup,
// so a full record may be passed as the query. It returns found=false
// without error when the key is absent.
func (s *Store) Find(ctx context.Context, class string, fields Fields) (Fields, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrStoreClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, eng, digest, err := s.bind(class, fields, "Find")
	if err != nil {
		return nil, false, err
	}

	blob, found, err := eng.Get(ctx, digest)
	if err != nil || !found {
		return nil, false, err
	}

	decoded, err := t.Codec.Decode(blob)
	if err != nil {
		if re, ok := errors.AsRecordError(err); ok {
			re.WithClass(class).WithOperation("Find")
		}
		return nil, false, err
	}
	return decoded, true, nil
}

// Stat returns a snapshot of the store file holding a class's keys.
func (s *Store) Stat(class string) (engine.Stats, error) {
	if s.closed.Load() {
		return engine.Stats{}, ErrStoreClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.registry.Lookup(class); !ok {
		return engine.Stats{}, errors.NewUnknownTypeError(class, "Stat")
	}

	eng, ok := s.engineFor(class)
	if !ok {
		return engine.Stats{}, errors.NewRecordError(
			nil, errors.ErrorCodeInternal, "no engine is open for the record class",
		).WithClass(class).WithOperation("Stat")
	}
	return eng.Stats(), nil
}

// Sync flushes every open store file to stable storage regardless of the
// configured durability level.
func (s *Store) Sync() error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shared != nil {
		return s.shared.Sync()
	}
	for _, eng := range s.engines {
		if err := eng.Sync(); err != nil {
			return err
		}
	}
	return nil
}

// Close gracefully shuts down the store, flushing any pending writes and
// releasing every file handle. The store cannot be used after closure.
func (s *Store) Close() error {
	// Use atomic compare-and-swap to transition from open to closed,
	// ensuring only one caller performs the shutdown.
	if !s.closed.CompareAndSwap(false, true) {
		return ErrStoreClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.shared != nil {
		firstErr = s.shared.Close()
	} else {
		for class, eng := range s.engines {
			if err := eng.Close(); err != nil && firstErr == nil {
				s.log.Errorw("Failed to close store file", "class", class, "error", err)
				firstErr = err
			}
		}
	}

	_ = s.log.Sync()
	return firstErr
}
