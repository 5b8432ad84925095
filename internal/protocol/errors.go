package protocol

import "codeberg.org/mutker/unifanctl/internal/errors"

const (
	ErrInvalidZone  = errors.ErrorCode("protocol_invalid_zone")
	ErrInvalidSpeed = errors.ErrorCode("protocol_invalid_speed")
	ErrInvalidColor = errors.ErrorCode("protocol_invalid_color")
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrInvalidZone:  "Invalid zone",
		ErrInvalidSpeed: "Invalid fan speed",
		ErrInvalidColor: "Invalid hex color",
	})
}
