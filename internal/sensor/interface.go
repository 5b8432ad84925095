package sensor

import "context"

// Celsius is a temperature reading in degrees Celsius.
type Celsius float64

// Source reads one host temperature.
type Source interface {
	// Name identifies the sensor in logs and metrics.
	Name() string
	// Read returns the current temperature, or an error carrying
	// ErrSensorUnavailable when no reading can be taken. A zero or negative
	// value is a genuine reading.
	Read(ctx context.Context) (Celsius, error)
	Close() error
}

// Kind selects which family of sensors a mode needs.
type Kind int

const (
	KindNone Kind = iota
	KindCPU
	KindGPU
)

func (k Kind) String() string {
	switch k {
	case KindCPU:
		return "cpu"
	case KindGPU:
		return "gpu"
	default:
		return "none"
	}
}
