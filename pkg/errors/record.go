package errors

// RecordError provides specialized error handling for record-binding
// operations. This structure extends the base error system with
// record-specific context while properly supporting method chaining
// through all base error methods.
type RecordError struct {
	// Embed the base error to inherit all standard error functionality
	// including error chaining, structured details, and error codes.
	*baseError

	// Identifies which record class (namespace tag) was being processed
	// when the error occurred. Every key digest is scoped by a class, so
	// this tells you exactly which key space was involved.
	class string

	// Describes what binding operation was being performed when the
	// error occurred (e.g., "Get", "Set", "Save", "Find", "Register").
	operation string

	// Lists the key fields the record type declares, if known. Comparing
	// this against the fields a caller supplied usually explains an
	// incomplete-key failure immediately.
	keyFields []string
}

// NewRecordError creates a new record-specific error with the provided context.
// This constructor follows the same pattern as other error types in the system,
// taking a causing error, error code, and descriptive message.
func NewRecordError(err error, code ErrorCode, msg string) *RecordError {
	return &RecordError{baseError: NewBaseError(err, code, msg)}
}

// Override base error methods to return *RecordError instead of *baseError.

// WithMessage updates the error message while maintaining the RecordError type.
func (re *RecordError) WithMessage(msg string) *RecordError {
	re.baseError.WithMessage(msg)
	return re
}

// WithCode sets the error code while preserving the RecordError type.
func (re *RecordError) WithCode(code ErrorCode) *RecordError {
	re.baseError.WithCode(code)
	return re
}

// WithDetail adds contextual information while maintaining the RecordError type.
func (re *RecordError) WithDetail(key string, value any) *RecordError {
	re.baseError.WithDetail(key, value)
	return re
}

// Record-specific methods that add domain-specific context to the error.

// WithClass records which record class was being processed.
func (re *RecordError) WithClass(class string) *RecordError {
	re.class = class
	return re
}

// WithOperation records what binding operation was being performed.
func (re *RecordError) WithOperation(operation string) *RecordError {
	re.operation = operation
	return re
}

// WithKeyFields captures the key fields the record type declares.
func (re *RecordError) WithKeyFields(fields []string) *RecordError {
	re.keyFields = fields
	return re
}

// Getter methods provide access to the RecordError-specific context.

// Class returns the record class that was being processed when the error occurred.
func (re *RecordError) Class() string {
	return re.class
}

// Operation returns the name of the operation that was being performed.
func (re *RecordError) Operation() string {
	return re.operation
}

// KeyFields returns the key fields the record type declares.
func (re *RecordError) KeyFields() []string {
	return re.keyFields
}

// Helper functions for creating common record errors with appropriate context.

// NewUnknownTypeError creates a specialized error for operations against
// a class that was never registered.
func NewUnknownTypeError(class, operation string) *RecordError {
	return NewRecordError(nil, ErrorCodeRecordTypeUnknown, "record type is not registered").
		WithClass(class).
		WithOperation(operation).
		WithDetail("suggestion", "register the record type before using it")
}

// NewIncompleteKeyError creates an error for a field map that is missing
// one of the type's declared key fields.
func NewIncompleteKeyError(class, operation, missing string, keyFields []string) *RecordError {
	return NewRecordError(nil, ErrorCodeRecordKeyIncomplete, "field map is missing a declared key field").
		WithClass(class).
		WithOperation(operation).
		WithKeyFields(keyFields).
		WithDetail("missingField", missing)
}

// NewCodecError creates an error for a record body that could not be
// encoded or decoded by the type's codec.
func NewCodecError(class, operation string, cause error) *RecordError {
	return NewRecordError(cause, ErrorCodeRecordCodecFailure, "record codec failed").
		WithClass(class).
		WithOperation(operation)
}
