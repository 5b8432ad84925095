package metrics

import (
	"codeberg.org/mutker/unifanctl/internal/protocol"
	"codeberg.org/mutker/unifanctl/internal/sensor"
)

// Cycle results recorded by CycleCompleted.
const (
	ResultApplied = "applied"
	ResultSkipped = "skipped"
	ResultPartial = "partial"
)

// Report kinds recorded by ReportSent.
const (
	KindColor = "color"
	KindSpeed = "speed"
)

// Collector records control loop activity.
type Collector interface {
	ObserveTemperature(source string, temp sensor.Celsius)
	ObserveTarget(zone protocol.Zone, rpm int)
	ReportSent(zone protocol.Zone, kind string)
	ZoneFailed(zone protocol.Zone)
	CycleCompleted(result string)
	// Flush writes the current values out, if there is anywhere to write.
	Flush() error
	Close() error
}
