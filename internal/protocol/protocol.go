// Package protocol encodes color and speed reports for the UNI FAN controller.
package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"codeberg.org/mutker/unifanctl/internal/errors"
)

type (
	// Zone identifies one fan channel, 1 through ZoneCount.
	Zone int

	// Report is one fixed-size output report.
	Report []byte

	Color struct {
		R, G, B uint8
	}
)

// Zones returns every addressable zone in ascending order.
func Zones() []Zone {
	zones := make([]Zone, ZoneCount)
	for i := range zones {
		zones[i] = Zone(i + 1)
	}

	return zones
}

func (z Zone) Valid() bool {
	return z >= 1 && z <= ZoneCount
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHex parses "#rrggbb" or "rrggbb".
func ParseHex(s string) (Color, error) {
	errFactory := errors.New()
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return Color{}, errFactory.WithData(ErrInvalidColor, s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, errFactory.WithData(ErrInvalidColor, s)
	}

	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Scale applies a brightness percentage to every channel.
// Brightness outside [0,100] is clamped, NaN counts as 0.
func Scale(c Color, brightness float64) Color {
	b := clampBrightness(brightness)

	return Color{
		R: scaleChannel(c.R, b),
		G: scaleChannel(c.G, b),
		B: scaleChannel(c.B, b),
	}
}

func clampBrightness(b float64) float64 {
	switch {
	case math.IsNaN(b), b < 0:
		return 0
	case b > 100:
		return 100
	default:
		return b
	}
}

func scaleChannel(v uint8, brightness float64) uint8 {
	scaled := math.Round(float64(v) * brightness / 100)
	if scaled < 0 {
		return 0
	}
	if scaled > math.MaxUint8 {
		return math.MaxUint8
	}

	return uint8(scaled)
}

// Duty converts an RPM target into the firmware duty byte, 805 RPM -> 0, 1900 RPM -> 255.
func Duty(rpm int) byte {
	ratio := float64(rpm-MinRPM) / float64(MaxRPM-MinRPM)

	return byte(math.Min(math.Max(ratio, 0)*math.MaxUint8, math.MaxUint8))
}

// Encode builds a color report using the default layout.
func Encode(zone Zone, color Color, brightness float64) (Report, error) {
	return UniFan.Encode(zone, color, brightness)
}

// EncodeSpeed builds a speed report using the default layout.
func EncodeSpeed(zone Zone, rpm int) (Report, error) {
	return UniFan.EncodeSpeed(zone, rpm)
}

// Encode builds the color report for one zone.
func (l Layout) Encode(zone Zone, color Color, brightness float64) (Report, error) {
	id, ok := l.ColorZoneIDs[zone]
	if !ok {
		return nil, errors.New().WithData(ErrInvalidZone, int(zone))
	}

	report := l.header(CommandColor, id)
	report[OffsetSegmentCount] = byte(l.Segments)
	report[OffsetBytesPerSegment] = BytesPerSegment

	scaled := Scale(color, brightness)
	for i := 0; i < l.Segments; i++ {
		off := OffsetPayload + i*BytesPerSegment
		report[off] = scaled.R
		report[off+1] = scaled.G
		report[off+2] = scaled.B
	}

	return report, nil
}

// EncodeSpeed builds the speed report for one zone. The report also carries
// the channel mask that takes the zone out of motherboard PWM control.
func (l Layout) EncodeSpeed(zone Zone, rpm int) (Report, error) {
	errFactory := errors.New()
	id, ok := l.SpeedZoneIDs[zone]
	if !ok {
		return nil, errFactory.WithData(ErrInvalidZone, int(zone))
	}
	if rpm < MinRPM || rpm > MaxRPM {
		return nil, errFactory.WithData(ErrInvalidSpeed,
			fmt.Sprintf("%d RPM (must be between %d and %d)", rpm, MinRPM, MaxRPM))
	}

	report := l.header(CommandSpeed, id)
	report[OffsetChannelMask] = 0x10 << (zone - 1)
	report[OffsetDuty] = Duty(rpm)
	binary.BigEndian.PutUint16(report[OffsetRPM:OffsetRPM+2], uint16(rpm))

	return report, nil
}

func (l Layout) header(command, zoneID byte) Report {
	report := make(Report, l.ReportSize)
	report[OffsetReportID] = ReportID
	report[OffsetCommand] = command
	binary.BigEndian.PutUint16(report[OffsetVendorID:OffsetVendorID+2], VendorID)
	report[OffsetZoneSelector] = zoneID

	return report
}
