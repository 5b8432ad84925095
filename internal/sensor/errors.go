package sensor

import (
	"codeberg.org/mutker/unifanctl/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	ErrSensorUnavailable = errors.ErrorCode("sensor_unavailable")
	ErrNVMLInitFailed    = errors.ErrorCode("sensor_nvml_init_failed")
	ErrNVMLShutdown      = errors.ErrorCode("sensor_nvml_shutdown_failed")
	ErrNoGPU             = errors.ErrorCode("sensor_no_gpu")
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrSensorUnavailable: "No usable temperature sensor",
		ErrNVMLInitFailed:    "Failed to initialize NVML",
		ErrNVMLShutdown:      "Failed to shut down NVML",
		ErrNoGPU:             "No GPU found",
	})
}

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}

// IsNVMLSuccess checks if a Return value indicates success
func IsNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}
