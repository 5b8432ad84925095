package policy

import "codeberg.org/mutker/unifanctl/internal/errors"

const (
	ErrNoTemperatureData = errors.ErrorCode("policy_no_temperature_data")
	ErrInvalidMode       = errors.ErrInvalidMode
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrNoTemperatureData: "No temperature data for quiet mode",
	})
}
