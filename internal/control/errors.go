package control

import "codeberg.org/mutker/unifanctl/internal/errors"

const (
	ErrNoTransport   = errors.ErrorCode("control_no_transport")
	ErrInvalidOption = errors.ErrInvalidArgument
	ErrApplyZone     = errors.ErrApplyZone
	ErrCycleSkipped  = errors.ErrorCode("control_cycle_skipped")
	ErrAlreadyActive = errors.ErrAlreadyRunning
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrNoTransport:  "Control loop needs a device transport",
		ErrCycleSkipped: "Control cycle skipped",
	})
}
