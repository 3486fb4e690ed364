package options

const (
	// Specifies the default directory where store files are kept.
	// If no other directory is specified during initialization, this path will be used.
	DefaultDataDir = "./data"

	// Defines the default flush discipline: durable across a process
	// crash without paying an fsync per mutation.
	DefaultDurability = DurabilityApp

	// Defines how many mutations may accumulate between syncs at the
	// DurabilityNone level.
	DefaultFlushInterval = 100

	// Specifies the number of distinct keys the membership filter is
	// sized for by default.
	DefaultFilterExpectedKeys uint = 1_000_000

	// Specifies the default false-positive probability of the membership filter.
	DefaultFilterFalsePositiveRate = 0.01

	// Defines the file name used when every record type shares one store file.
	DefaultSharedFileName = "seafair.sea"
)

// Holds the default configuration settings for a seafair store.
var defaultOptions = Options{
	DataDir:       DefaultDataDir,
	Durability:    DefaultDurability,
	FlushInterval: DefaultFlushInterval,
	Filter: &filterOptions{
		Enabled:           true,
		ExpectedKeys:      DefaultFilterExpectedKeys,
		FalsePositiveRate: DefaultFilterFalsePositiveRate,
	},
}

// NewDefaultOptions returns a fresh copy of the default configuration.
// The nested filter options are copied so callers can mutate the result
// without affecting the shared defaults table.
func NewDefaultOptions() Options {
	opts := defaultOptions
	filter := *defaultOptions.Filter
	opts.Filter = &filter
	return opts
}
