// Package errors carries a machine readable code on every failure so the
// control loop can tell a missing device from a bad zone or a lost sensor,
// and so logs can be filtered on error_code.
package errors

// ErrorCode identifies a failure class. Packages declare their own codes with
// a package prefix, for example "device_io_failure".
type ErrorCode string

// Error is a coded failure. WithMessage and WithData return copies and never
// modify the receiver.
type Error interface {
	error
	Code() ErrorCode
	// WithMessage replaces the registered message for this code.
	WithMessage(msg string) Error
	// WithData attaches the offending value, such as a zone or RPM.
	WithData(data any) Error
	GetData() any
	// Unwrap returns the cause, nil for errors built with New.
	Unwrap() error
}

// Factory builds coded errors.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
