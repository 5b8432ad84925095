package device

import (
	"time"

	"codeberg.org/mutker/unifanctl/internal/protocol"
)

// Transport is the single writer to the fan controller.
type Transport interface {
	// Send writes one output report.
	Send(report protocol.Report) error
	// SendFeature writes one feature report.
	SendFeature(report []byte) error
	// Read reads the controller status feature report.
	Read() ([]byte, error)
	// Commit latches the last color report.
	Commit() error
	Close() error
}

// Reconnector is implemented by transports that can recover a handle lost to
// an unplugged cable or a power-cycled controller.
type Reconnector interface {
	Broken() bool
	Reconnect() error
}

// hidDevice is the subset of a hidapi handle used by the controller.
type hidDevice interface {
	Write(p []byte) (int, error)
	SendFeatureReport(p []byte) (int, error)
	GetFeatureReport(p []byte) (int, error)
	Close() error
}

// Opener opens a HID device by exact vendor and product ID.
type Opener func(vendorID, productID uint16) (hidDevice, error)

// Pacing holds the delays the firmware needs between commands.
type Pacing struct {
	Init   time.Duration
	Report time.Duration
	Commit time.Duration
}

// DefaultPacing matches the delays the controller was observed to need.
func DefaultPacing() Pacing {
	return Pacing{
		Init:   100 * time.Millisecond,
		Report: 100 * time.Millisecond,
		Commit: 50 * time.Millisecond,
	}
}

// Info describes an attached controller.
type Info struct {
	Path      string
	VendorID  uint16
	ProductID uint16
	Product   string
	Serial    string
}
