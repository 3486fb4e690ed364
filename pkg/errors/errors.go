// Package errors provides the structured error system used throughout the
// seafair store.
//
// This package addresses the fundamental challenge that generic error handling presents in complex
// systems: when an error occurs, developers and operators need much more than just "something went wrong."
// They need to understand exactly what failed, why it failed, where it failed, and most importantly,
// what they can do about it.
//
// Architecture and Design Philosophy:
//
// The error system is built around a hierarchical structure that starts with a foundational baseError
// and extends into domain-specific error types. This design maintains consistency across all error
// types while allowing specialized context for different domains, enables rich error chaining that
// preserves the complete failure context, and supports programmatic error handling through
// standardized error codes.
//
// The system recognizes that different parts of a storage application fail in fundamentally different
// ways and require different types of contextual information for effective diagnosis and recovery.
// A validation error needs to know which field failed and what rule was violated. A storage error
// needs to know which file, table and byte offset were involved. A record error needs to know which
// class and operation were being processed. By capturing this domain-specific context at the point of
// failure, the system enables much more intelligent error handling throughout the application stack.
//
// Error Classification and Codes:
//
// Central to this system is an error code taxonomy that provides standardized categorization of
// failures. Base codes cover fundamental failure types: IO_ERROR for input/output failures,
// INVALID_INPUT for client-side validation problems, and INTERNAL_ERROR for unexpected system
// failures. Storage-specific codes handle the unique failure modes of the single-file store:
// HEADER_CORRUPTED for an unreadable pointer header, CAPACITY_EXHAUSTED when the 64-table limit is
// reached, BLOB_TOO_LARGE for oversized values, and read-failure codes for sectors and blobs.
// Record-specific codes address the binding layer: unknown or duplicate record types, incomplete
// key field maps, and codec failures.
package errors

import (
	stdErrors "errors"
	"os"
	"syscall"
)

// IsValidationError checks if the given error is a ValidationError or contains one in its error chain.
//
// Example usage:
//
//	if errors.IsValidationError(err) {
//	    // Handle validation-specific error recovery,
//	    // maybe highlight specific fields for the caller.
//	}
func IsValidationError(err error) bool {
	var ve *ValidationError
	return stdErrors.As(err, &ve)
}

// IsStorageError determines if an error is related to storage operations, such as file I/O,
// disk space issues, or a corrupt pointer header. Storage errors often require different
// handling strategies than other error types because they may indicate hardware issues,
// capacity problems, or data integrity concerns that need immediate attention.
//
// Example usage:
//
//	if errors.IsStorageError(err) {
//	    storageErr, _ := errors.AsStorageError(err)
//	    switch storageErr.Code() {
//	    case ErrorCodeDiskFull:
//	        triggerCleanupProcedures()
//	    case ErrorCodePermissionDenied:
//	        alertAdministrator(storageErr.Path())
//	    }
//	}
func IsStorageError(err error) bool {
	var se *StorageError
	return stdErrors.As(err, &se)
}

// IsRecordError identifies errors that occurred in the record-binding layer, such as
// operations against unregistered classes, incomplete key field maps, or codec failures.
// Record errors carry the class and operation involved, which is essential for pointing
// callers at the misused record type.
func IsRecordError(err error) bool {
	var re *RecordError
	return stdErrors.As(err, &re)
}

// AsValidationError safely extracts a ValidationError from an error chain, providing access
// to validation-specific context such as which field failed, what rule was violated, and
// what values were provided versus expected.
//
// The extracted ValidationError provides access to specialized methods like Field(),
// Rule(), Provided(), and Expected(), which contain the detailed context needed for
// sophisticated error handling.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stdErrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// AsStorageError extracts StorageError context from an error chain, providing access to
// storage-specific information such as table indices, file offsets, file names, and paths.
// This context is crucial for implementing storage error recovery procedures and for
// providing detailed information to system administrators.
func AsStorageError(err error) (*StorageError, bool) {
	var se *StorageError
	if stdErrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// AsRecordError extracts RecordError context, providing access to the class, operation
// and declared key fields involved in a binding failure.
func AsRecordError(err error) (*RecordError, bool) {
	var re *RecordError
	if stdErrors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from any error that supports it, or returns
// ErrorCodeInternal for errors that don't have specific codes. This function provides
// a consistent way to categorize errors for monitoring and handling purposes.
//
// Example usage:
//
//	switch errors.GetErrorCode(err) {
//	case errors.ErrorCodeCapacityExhausted:
//	    stopAcceptingWrites()
//	case errors.ErrorCodeDiskFull:
//	    triggerDiskSpaceAlert()
//	}
func GetErrorCode(err error) ErrorCode {
	// Try ValidationError first.
	if ve, ok := AsValidationError(err); ok {
		return ve.Code()
	}

	// Try StorageError next.
	if se, ok := AsStorageError(err); ok {
		return se.Code()
	}

	// Try RecordError.
	if re, ok := AsRecordError(err); ok {
		return re.Code()
	}

	// For any other error, return a generic internal error code.
	return ErrorCodeInternal
}

// GetErrorDetails extracts structured details from any error that supports them,
// returning an empty map for errors without details. This function provides consistent
// access to additional error context regardless of the specific error type.
//
// Example usage:
//
//	details := errors.GetErrorDetails(err)
//	if len(details) > 0 {
//	    logger.Errorw("Operation failed", "error", err, "details", details)
//	}
func GetErrorDetails(err error) map[string]any {
	// Try ValidationError first.
	if ve, ok := AsValidationError(err); ok {
		if details := ve.Details(); details != nil {
			return details
		}
	}

	// Try StorageError next.
	if se, ok := AsStorageError(err); ok {
		if details := se.Details(); details != nil {
			return details
		}
	}

	// Try RecordError.
	if re, ok := AsRecordError(err); ok {
		if details := re.Details(); details != nil {
			return details
		}
	}

	// Return empty map for errors without details.
	return make(map[string]any)
}

// ClassifyDirectoryCreationError analyzes directory creation failures and
// returns appropriate error codes based on the underlying system error.
// This helps clients understand exactly what went wrong and how they might fix it.
func ClassifyDirectoryCreationError(err error, path string) error {
	// Check if this is a permission denied error.
	if os.IsPermission(err) {
		return NewStorageError(
			err, ErrorCodePermissionDenied,
			"Insufficient permissions to create data directory",
		).WithPath(path).
			WithDetail("operation", "directory_creation").
			WithDetail("required_permission", "write").
			WithDetail("suggestion", "check directory permissions or run with elevated privileges")
	}

	// Check for disk space issues using syscall analysis.
	if code, ok := classifyErrno(err); ok {
		switch code {
		case ErrorCodeDiskFull:
			return NewStorageError(
				err, ErrorCodeDiskFull,
				"Insufficient disk space to create data directory",
			).WithPath(path).
				WithDetail("operation", "directory_creation").
				WithDetail("suggestion", "free up disk space or choose a different location")
		case ErrorCodeFilesystemReadonly:
			return NewStorageError(
				err, ErrorCodeFilesystemReadonly,
				"Cannot create directory on read-only filesystem",
			).WithPath(path).
				WithDetail("operation", "directory_creation").
				WithDetail("suggestion", "remount filesystem with write permissions")
		}
	}

	// For any other I/O errors, provide the generic I/O error with context
	return NewStorageError(
		err, ErrorCodeIO, "Failed to create data directory",
	).WithPath(path).WithDetail("operation", "directory_creation")
}

// ClassifyFileOpenError analyzes file opening failures and returns appropriate
// error codes based on the underlying system error. This provides much more
// specific information than a generic I/O error.
func ClassifyFileOpenError(err error, filePath, fileName string) error {
	// Check if this is a permission denied error.
	if os.IsPermission(err) {
		return NewStorageError(
			err, ErrorCodePermissionDenied,
			"Insufficient permissions to open store file",
		).WithPath(filePath).
			WithFileName(fileName).
			WithDetail("operation", "file_open").
			WithDetail("required_permission", "read_write").
			WithDetail("suggestion", "check file permissions or run with elevated privileges")
	}

	// Check for disk space issues and other system-level conditions.
	if code, ok := classifyErrno(err); ok {
		switch code {
		case ErrorCodeDiskFull:
			return NewStorageError(
				err, ErrorCodeDiskFull,
				"Insufficient disk space to create store file",
			).WithPath(filePath).
				WithFileName(fileName).
				WithDetail("operation", "file_open").
				WithDetail("suggestion", "free up disk space")
		case ErrorCodeFilesystemReadonly:
			return NewStorageError(
				err, ErrorCodeFilesystemReadonly,
				"Cannot create file on read-only filesystem",
			).WithPath(filePath).
				WithFileName(fileName).
				WithDetail("operation", "file_open").
				WithDetail("suggestion", "remount filesystem with write permissions")
		}
	}

	// For any other I/O errors during file opening.
	return NewStorageError(err, ErrorCodeIO, "Failed to open store file").
		WithPath(filePath).
		WithFileName(fileName).
		WithDetail("operation", "file_open").
		WithDetail("flags", []string{"O_CREATE", "O_RDWR"})
}

// ClassifyWriteError analyzes write failures against the store file and
// returns appropriate error codes. Write failures are the most common path
// through which disk exhaustion surfaces.
func ClassifyWriteError(err error, fileName, filePath string, offset int64) error {
	if code, ok := classifyErrno(err); ok {
		switch code {
		case ErrorCodeDiskFull:
			return NewStorageError(
				err, ErrorCodeDiskFull,
				"Cannot write to store file: insufficient disk space",
			).WithFileName(fileName).
				WithPath(filePath).
				WithOffset(offset).
				WithDetail("operation", "file_write").
				WithDetail("suggestion", "free up disk space before continuing")
		case ErrorCodeFilesystemReadonly:
			return NewStorageError(
				err, ErrorCodeFilesystemReadonly,
				"Cannot write to store file: filesystem is read-only",
			).WithFileName(fileName).
				WithPath(filePath).
				WithOffset(offset).
				WithDetail("operation", "file_write").
				WithDetail("suggestion", "remount filesystem with write permissions")
		}
	}

	return NewStorageError(
		err, ErrorCodeIO, "Failed to write to store file",
	).WithFileName(fileName).WithPath(filePath).WithOffset(offset).
		WithDetail("operation", "file_write")
}

// ClassifySyncError analyzes sync operation failures and returns appropriate
// error codes. Sync failures can indicate various underlying issues from
// disk space problems to filesystem corruption.
func ClassifySyncError(err error, fileName, filePath string) error {
	if code, ok := classifyErrno(err); ok {
		switch code {
		case ErrorCodeDiskFull:
			return NewStorageError(
				err, ErrorCodeDiskFull,
				"Cannot sync file: insufficient disk space",
			).WithFileName(fileName).
				WithPath(filePath).
				WithDetail("operation", "file_sync").
				WithDetail("suggestion", "free up disk space before continuing")
		case ErrorCodeFilesystemReadonly:
			return NewStorageError(
				err, ErrorCodeFilesystemReadonly,
				"Cannot sync file: filesystem is read-only",
			).WithFileName(fileName).
				WithPath(filePath).
				WithDetail("operation", "file_sync").
				WithDetail("suggestion", "remount filesystem with write permissions")
		}
	}

	if errno, ok := extractErrno(err); ok && errno == syscall.EIO {
		// I/O error during sync often indicates hardware or corruption issues.
		return NewStorageError(
			err, ErrorCodeIO,
			"I/O error during file sync - possible hardware or corruption issue",
		).WithFileName(fileName).
			WithPath(filePath).
			WithDetail("operation", "file_sync").
			WithDetail("severity", "high").
			WithDetail("suggestion", "check filesystem integrity and hardware health")
	}

	// For any other sync errors, provide generic I/O error with context
	return NewStorageError(
		err, ErrorCodeIO, "Failed to sync store file to disk",
	).WithFileName(fileName).WithPath(filePath).
		WithDetail("operation", "file_sync")
}

// classifyErrno maps well-known system error numbers onto storage error
// codes. The second return value reports whether a mapping exists.
func classifyErrno(err error) (ErrorCode, bool) {
	errno, ok := extractErrno(err)
	if !ok {
		return "", false
	}

	switch errno {
	case syscall.ENOSPC:
		return ErrorCodeDiskFull, true
	case syscall.EROFS:
		return ErrorCodeFilesystemReadonly, true
	}
	return "", false
}

// extractErrno digs the raw errno out of the *os.PathError wrapping that
// file operations produce.
func extractErrno(err error) (syscall.Errno, bool) {
	var pathErr *os.PathError
	if stdErrors.As(err, &pathErr) {
		if errno, ok := pathErr.Err.(syscall.Errno); ok {
			return errno, true
		}
	}

	var errno syscall.Errno
	if stdErrors.As(err, &errno) {
		return errno, true
	}
	return 0, false
}
