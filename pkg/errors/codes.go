package errors

// ErrorCode represents a standardized way to categorize different types of errors.
type ErrorCode string

// Base error codes represent the fundamental categories of failures that can
// occur across any software system. These codes provide the foundation layer
// of error classification.
const (
	// ErrorCodeIO represents failures in input/output operations across any
	// system boundary. For a store this is almost always a read, write,
	// seek or sync against the data file failing at the operating-system
	// level.
	ErrorCodeIO ErrorCode = "IO_ERROR"

	// ErrorCodeInvalidInput represents client-side errors where the provided
	// data doesn't meet the system's requirements or constraints. This
	// indicates problems with the request itself rather than system
	// failures.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrorCodeInternal represents unexpected system failures that don't fit
	// into other categories. These indicate bugs, assertion failures, or
	// other programming errors that shouldn't occur during normal
	// operation.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Storage-specific error codes extend the base taxonomy with the failure
// modes of the single-file store: a fixed pointer header, geometrically
// growing hash tables and an append-only value region all fail in
// distinct, recognizable ways.
const (
	// ErrorCodeHeaderCorrupted indicates that the pointer header at the
	// start of the file is unreadable or inconsistent: the file is shorter
	// than the fixed header, a table offset points outside the file, or a
	// non-zero slot follows a zero slot. A corrupt header makes every
	// table unreachable, so the store refuses to open.
	ErrorCodeHeaderCorrupted ErrorCode = "HEADER_CORRUPTED"

	// ErrorCodeCapacityExhausted indicates that the pointer header already
	// holds the maximum number of tables and an insertion required
	// promoting to a new one. The store stays readable but can accept no
	// further writes.
	ErrorCodeCapacityExhausted ErrorCode = "CAPACITY_EXHAUSTED"

	// ErrorCodeBlobTooLarge indicates a value whose length cannot be
	// recorded in an entry's 32-bit size field. The write is rejected
	// before any bytes reach the file.
	ErrorCodeBlobTooLarge ErrorCode = "BLOB_TOO_LARGE"

	// ErrorCodeSectorReadFailure occurs when the system cannot read a
	// probing sector from one of the hash tables. The table structure is
	// known but the slot region itself is inaccessible.
	ErrorCodeSectorReadFailure ErrorCode = "SECTOR_READ_FAILURE"

	// ErrorCodeBlobReadFailure indicates problems reading a value blob
	// after its entry was successfully located. This is a more localized
	// failure than a sector problem: the directory is intact but the
	// referenced data region is inaccessible.
	ErrorCodeBlobReadFailure ErrorCode = "BLOB_READ_FAILURE"

	// ErrorCodePermissionDenied indicates insufficient permissions to access a resource.
	// This is distinct from generic IO errors because it has a specific resolution path:
	// the user needs to adjust file/directory permissions or run with elevated privileges.
	ErrorCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// ErrorCodeDiskFull indicates that the storage device has run out of space.
	// This requires specific handling like cleanup operations or alerting administrators.
	ErrorCodeDiskFull ErrorCode = "DISK_FULL"

	// ErrorCodeFilesystemReadonly indicates that the filesystem is mounted read-only.
	// This requires administrative intervention to remount the filesystem with write permissions.
	ErrorCodeFilesystemReadonly ErrorCode = "FILESYSTEM_READONLY"
)

// Record-specific error codes address the failure modes of the binding
// layer that maps named-field records onto the engine's digest/blob
// interface.
const (
	// ErrorCodeRecordTypeUnknown indicates an operation referenced a
	// record type (namespace tag) that was never registered with the
	// store.
	ErrorCodeRecordTypeUnknown ErrorCode = "RECORD_TYPE_UNKNOWN"

	// ErrorCodeRecordTypeExists indicates an attempt to register a record
	// type whose name is already taken.
	ErrorCodeRecordTypeExists ErrorCode = "RECORD_TYPE_EXISTS"

	// ErrorCodeRecordKeyIncomplete indicates a get or set supplied a field
	// map that is missing one of the type's declared key fields, so no
	// canonical digest can be derived.
	ErrorCodeRecordKeyIncomplete ErrorCode = "RECORD_KEY_INCOMPLETE"

	// ErrorCodeRecordCodecFailure indicates the type's codec could not
	// encode or decode a record body.
	ErrorCodeRecordCodecFailure ErrorCode = "RECORD_CODEC_FAILURE"
)
