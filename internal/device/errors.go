package device

import "codeberg.org/mutker/unifanctl/internal/errors"

const (
	ErrDeviceNotFound = errors.ErrorCode("device_not_found")
	ErrIOFailure      = errors.ErrorCode("device_io_failure")
	ErrClosed         = errors.ErrorCode("device_closed")
	ErrInitFailed     = errors.ErrorCode("device_init_failed")
	ErrEnumerate      = errors.ErrorCode("device_enumerate_failed")
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrDeviceNotFound: "No supported fan controller found",
		ErrIOFailure:      "Device I/O failure",
		ErrClosed:         "Device is closed",
		ErrInitFailed:     "Device initialization failed",
		ErrEnumerate:      "Failed to enumerate HID devices",
	})
}
