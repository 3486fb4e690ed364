// Package options provides data structures and functions for configuring
// a seafair store. It defines the parameters that control storage behavior
// and durability, such as the data directory, the flush discipline applied
// to mutations, and the sizing of the in-memory membership filter.
package options

import (
	"strings"
)

// Durability selects the flush discipline applied to every mutation.
// The level is fixed when a store is opened and applies to all of its
// record types.
type Durability string

const (
	// DurabilityNone favors throughput: mutations are synced to disk only
	// every FlushInterval-th write and when the store closes. A power
	// failure may lose the most recent batch of writes.
	DurabilityNone Durability = "none"

	// DurabilityApp makes writes durable across a process crash. Writes
	// reach the operating system's page cache in program order before a
	// mutation returns, so only a kernel or power failure can lose them.
	DurabilityApp Durability = "app"

	// DurabilityOS makes writes durable across power loss. Every mutation
	// syncs the file after the value write and again after the entry
	// write, so a committed write can never dangle.
	DurabilityOS Durability = "os"
)

// Valid reports whether the durability level is one of the three defined
// disciplines.
func (d Durability) Valid() bool {
	switch d {
	case DurabilityNone, DurabilityApp, DurabilityOS:
		return true
	}
	return false
}

// Configures the in-memory membership filter that lets lookups skip
// probing entirely when a key is definitely absent. The filter is rebuilt
// from the table regions when a store file is opened and updated on every
// write; it never touches the on-disk format.
type filterOptions struct {
	// Enables the filter. Disabling it trades miss latency for zero
	// memory overhead and a faster open.
	//
	// Default: true
	Enabled bool `json:"enabled"`

	// The number of distinct keys the filter is sized for. Exceeding it
	// degrades the false-positive rate gracefully.
	//
	// Default: 1,000,000
	ExpectedKeys uint `json:"expectedKeys"`

	// The target false-positive probability.
	//
	// Default: 0.01
	FalsePositiveRate float64 `json:"falsePositiveRate"`
}

// Defines the configuration parameters for a seafair store.
// It provides control over placement, durability and lookup behavior.
type Options struct {
	// Specifies the directory where store files are kept, one
	// `<class>.sea` file per record type unless SharedFile is set.
	// The directory is created when the first store file in it is opened,
	// if it does not exist.
	//
	// Default: "./data"
	DataDir string `json:"dataDir"`

	// Selects the flush discipline applied to every mutation.
	//
	// Default: DurabilityApp
	Durability Durability `json:"durability"`

	// Defines how many mutations may accumulate between syncs when
	// Durability is DurabilityNone. Ignored at the other levels.
	//
	// Default: 100
	FlushInterval int `json:"flushInterval"`

	// Places every record type in one shared store file instead of one
	// file per class. The class tag already namespaces each digest, so
	// distinct types never collide within the shared file.
	//
	// Default: false
	SharedFile bool `json:"sharedFile"`

	// Configures the in-memory membership filter.
	Filter *filterOptions `json:"filter"`
}

// OptionFunc is a function type that modifies the store's configuration.
type OptionFunc func(*Options)

// WithDataDir sets the directory where store files are kept.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// WithDurability selects the flush discipline for all mutations.
func WithDurability(level Durability) OptionFunc {
	return func(o *Options) {
		if level.Valid() {
			o.Durability = level
		}
	}
}

// WithFlushInterval sets how many mutations may accumulate between syncs
// at the DurabilityNone level.
func WithFlushInterval(interval int) OptionFunc {
	return func(o *Options) {
		if interval > 0 {
			o.FlushInterval = interval
		}
	}
}

// WithSharedFile places every record type in one shared store file.
func WithSharedFile() OptionFunc {
	return func(o *Options) {
		o.SharedFile = true
	}
}

// WithMembershipFilter sizes the in-memory membership filter.
func WithMembershipFilter(expectedKeys uint, falsePositiveRate float64) OptionFunc {
	return func(o *Options) {
		if expectedKeys > 0 {
			o.Filter.ExpectedKeys = expectedKeys
		}
		if falsePositiveRate > 0 && falsePositiveRate < 1 {
			o.Filter.FalsePositiveRate = falsePositiveRate
		}
	}
}

// WithoutMembershipFilter disables the in-memory membership filter.
func WithoutMembershipFilter() OptionFunc {
	return func(o *Options) {
		o.Filter.Enabled = false
	}
}
