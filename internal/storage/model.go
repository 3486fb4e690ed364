package storage

import (
	"os"
	"sync/atomic"

	"github.com/iamNilotpal/seafair/pkg/options"
	"go.uber.org/zap"
)

// Storage represents the file layer of a seafair store: one regular file
// holding the pointer header, every hash table and the append-only value
// region. It exposes positioned reads and writes in the units the engine
// works with (header slots, sectors, entries and blobs) while owning the
// file handle, the tracked end-of-file position and the sync policy
// counters.
//
// The struct encapsulates all the state needed to manage the data file
// effectively: the open handle, configuration options that control
// durability behavior, a logger for observability, and the current file
// size used to place appends.
type Storage struct {
	size     int64              // Current size of the data file in bytes; appends land here.
	unsynced int                // Mutations since the last sync, used by the batched flush policy.
	closed   atomic.Bool        // Flag indicating whether the storage has been closed.
	file     *os.File           // The open data file.
	path     string             // Full path of the data file.
	fileName string             // Base name of the data file, kept for error context.
	options  *options.Options   // Configuration parameters controlling storage behavior.
	log      *zap.SugaredLogger // Structured logger for operational visibility and debugging.
}

// Config encapsulates all the configuration parameters required to initialize a Storage instance.
type Config struct {
	Path    string
	Options *options.Options
	Logger  *zap.SugaredLogger
}
