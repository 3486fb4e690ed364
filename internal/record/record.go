// Package record provides the binding layer that maps named-field records
// onto the engine's digest/blob interface.
//
// A record type declares a class name and the subset of its fields that
// form the key. The binding derives a canonical 16-byte digest from a
// field map by concatenating the key-field values in sorted field-name
// order, appending the class tag, and hashing the result with MD5. The
// class tag is mandatory: distinct record types with colliding key values
// must never collide in the store.
//
// Record bodies are opaque to the engine. Each type carries a codec that
// serializes the full field map for storage and decodes it on retrieval;
// the default codec uses JSON. Codecs are pluggable per type for callers
// that need a different wire representation.
//
// The registry sorts each type's key fields exactly once at registration
// and keeps the sorted list on the type, so digest computation never
// re-sorts on the hot path.
package record

import (
	"crypto/md5"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/iamNilotpal/seafair/internal/table"
	"github.com/iamNilotpal/seafair/pkg/errors"
	"github.com/iamNilotpal/seafair/pkg/storefile"
	"go.uber.org/zap"
)

// Fields is a named-field record: a mapping from field names to values.
type Fields map[string]any

// Codec serializes record bodies. Encode receives the full field map and
// returns the opaque blob the engine stores; Decode inverts it.
type Codec interface {
	Encode(fields Fields) ([]byte, error)
	Decode(data []byte) (Fields, error)
}

// Type describes one record class: its name (the namespace tag scoping
// every digest), the fields that form the key, and the body codec.
type Type struct {
	// Name is the class tag. It namespaces the key digests and, in
	// per-file mode, names the store file that holds the class.
	Name string

	// KeyFields lists the fields that form the key. The registry sorts
	// and deduplicates the list at registration; afterwards it must be
	// treated as read-only.
	KeyFields []string

	// Codec serializes record bodies. Left nil, the registry installs
	// the JSON codec.
	Codec Codec
}

// Digest derives the canonical key digest for a field map: the string
// forms of the key-field values concatenated in sorted field-name order,
// followed by the class tag, hashed with MD5. Every key field must be
// present in the map.
func (t *Type) Digest(fields Fields, operation string) (table.Digest, error) {
	var b strings.Builder

	for _, field := range t.KeyFields {
		value, ok := fields[field]
		if !ok {
			return table.Digest{}, errors.NewIncompleteKeyError(t.Name, operation, field, t.KeyFields)
		}
		fmt.Fprint(&b, value)
	}
	b.WriteString(t.Name)

	return md5.Sum([]byte(b.String())), nil
}

// KeyOnly returns the subset of a field map that participates in the key.
// Lookups accept a full record and hash only its key fields.
func (t *Type) KeyOnly(fields Fields) Fields {
	key := make(Fields, len(t.KeyFields))
	for _, field := range t.KeyFields {
		if value, ok := fields[field]; ok {
			key[field] = value
		}
	}
	return key
}

// Registry holds the record types registered with a store. It is safe for
// concurrent readers; registration takes the write lock.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
	log   *zap.SugaredLogger
}

// Config encapsulates the configuration parameters required to initialize a Registry.
type Config struct {
	Logger *zap.SugaredLogger
}

// New creates an empty registry.
func New(config *Config) (*Registry, error) {
	if config == nil || config.Logger == nil {
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "Registry configuration is required",
		).WithField("config").WithRule("required").WithProvided(config)
	}

	return &Registry{
		log:   config.Logger,
		types: make(map[string]*Type),
	}, nil
}

// Register validates and records a record type. The type's key fields are
// sorted and deduplicated here, once, so every later digest computation
// walks them in canonical order without sorting.
func (r *Registry) Register(t *Type) error {
	if t == nil {
		return errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "Record type is required",
		).WithField("type").WithRule("required")
	}

	if err := storefile.ValidateClass(t.Name); err != nil {
		return errors.NewValidationError(
			err, errors.ErrorCodeInvalidInput, "Record type name is not usable as a class tag",
		).WithField("name").WithRule("format").WithProvided(t.Name)
	}

	if len(t.KeyFields) == 0 {
		return errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "Record type must declare at least one key field",
		).WithField("keyFields").WithRule("required").WithDetail("class", t.Name)
	}

	for _, field := range t.KeyFields {
		if field == "" {
			return errors.NewRequiredFieldError("keyFields").
				WithDetail("class", t.Name).
				WithDetail("validationIssue", "key field names must be non-empty")
		}
	}

	// Canonicalize the key-field list: sorted, unique. This is the sort
	// the digest path relies on never having to repeat.
	sorted := slices.Clone(t.KeyFields)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	t.KeyFields = sorted

	if t.Codec == nil {
		t.Codec = JSONCodec{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[t.Name]; exists {
		return errors.NewRecordError(
			nil, errors.ErrorCodeRecordTypeExists, "record type is already registered",
		).WithClass(t.Name).WithOperation("Register")
	}

	r.types[t.Name] = t
	r.log.Infow("Registered record type", "class", t.Name, "keyFields", t.KeyFields)
	return nil
}

// Lookup returns the registered type for a class.
func (r *Registry) Lookup(class string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[class]
	return t, ok
}

// Classes returns the registered class names in sorted order.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	classes := make([]string, 0, len(r.types))
	for class := range r.types {
		classes = append(classes, class)
	}
	slices.Sort(classes)
	return classes
}
