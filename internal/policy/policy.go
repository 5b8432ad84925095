// Package policy maps the operating mode and a temperature sample to the
// per-zone fan targets.
package policy

import (
	"math"
	"strings"

	"codeberg.org/mutker/unifanctl/internal/errors"
	"codeberg.org/mutker/unifanctl/internal/protocol"
	"codeberg.org/mutker/unifanctl/internal/sensor"
)

type Mode string

const (
	ModeFixed    Mode = "fixed"
	ModeQuietCPU Mode = "quietcpu"
	ModeQuietGPU Mode = "quietgpu"
)

// ParseMode accepts the config spelling and the dashed CLI spelling.
func ParseMode(s string) (Mode, error) {
	normalized := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch Mode(normalized) {
	case ModeFixed, ModeQuietCPU, ModeQuietGPU:
		return Mode(normalized), nil
	default:
		return "", errors.New().WithData(ErrInvalidMode, s)
	}
}

// SensorKind returns the temperature source family the mode reads.
func (m Mode) SensorKind() sensor.Kind {
	switch m {
	case ModeQuietCPU:
		return sensor.KindCPU
	case ModeQuietGPU:
		return sensor.KindGPU
	default:
		return sensor.KindNone
	}
}

func (m Mode) String() string {
	return string(m)
}

// Curve maps temperature to RPM linearly between two anchor points.
type Curve struct {
	MinTemp sensor.Celsius
	MaxTemp sensor.Celsius
	MinRPM  int
	MaxRPM  int
}

// DefaultCurve runs from 805 RPM at 30°C to 1900 RPM at 80°C.
func DefaultCurve() Curve {
	return Curve{
		MinTemp: 30,
		MaxTemp: 80,
		MinRPM:  protocol.MinRPM,
		MaxRPM:  protocol.MaxRPM,
	}
}

// RPM is non-decreasing in temp and always within [MinRPM, MaxRPM].
func (c Curve) RPM(temp sensor.Celsius) int {
	t := float64(temp)
	switch {
	case math.IsNaN(t), t <= float64(c.MinTemp):
		return c.MinRPM
	case t >= float64(c.MaxTemp):
		return c.MaxRPM
	}

	ratio := (t - float64(c.MinTemp)) / float64(c.MaxTemp-c.MinTemp)
	rpm := int(math.Round(float64(c.MinRPM) + ratio*float64(c.MaxRPM-c.MinRPM)))

	return clamp(rpm, c.MinRPM, c.MaxRPM)
}

// Fixed is the static state from configuration.
type Fixed struct {
	Color      protocol.Color
	Brightness float64
	Speed      int
}

// Target is the state one zone should be driven to.
type Target struct {
	Zone       protocol.Zone
	Color      protocol.Color
	Brightness float64
	Speed      int
}

// Map computes the target for one zone. Quiet modes need a temperature and
// fail with ErrNoTemperatureData when temp is nil; only the speed follows the
// temperature, color and brightness stay static.
func Map(mode Mode, temp *sensor.Celsius, fixed Fixed, curve Curve) (Target, error) {
	target := Target{
		Color:      fixed.Color,
		Brightness: fixed.Brightness,
		Speed:      fixed.Speed,
	}

	switch mode {
	case ModeFixed:
		return target, nil
	case ModeQuietCPU, ModeQuietGPU:
		if temp == nil {
			return Target{}, errors.New().WithData(ErrNoTemperatureData, string(mode))
		}
		target.Speed = curve.RPM(*temp)

		return target, nil
	default:
		return Target{}, errors.New().WithData(ErrInvalidMode, string(mode))
	}
}

// Policy combines the mode with the per-zone enable flags.
type Policy struct {
	Mode    Mode
	Fixed   Fixed
	Curve   Curve
	Enabled map[protocol.Zone]bool
}

// Targets returns one target per enabled zone in zone order. Disabled zones
// are absent from the result.
func (p Policy) Targets(temp *sensor.Celsius) ([]Target, error) {
	targets := make([]Target, 0, protocol.ZoneCount)
	for _, zone := range protocol.Zones() {
		if !p.Enabled[zone] {
			continue
		}

		target, err := Map(p.Mode, temp, p.Fixed, p.Curve)
		if err != nil {
			return nil, err
		}
		target.Zone = zone
		targets = append(targets, target)
	}

	return targets, nil
}

func clamp(value, minValue, maxValue int) int {
	if value < minValue {
		return minValue
	}

	if value > maxValue {
		return maxValue
	}

	return value
}
