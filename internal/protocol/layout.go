package protocol

// Offsets and sizes below come from captured USB traffic of the UNI FAN
// controller firmware. They are grouped per device variant in Layout so
// another controller revision only needs a new table.

const (
	VendorID uint16 = 0x0cf2

	// ReportSize is the length of every color and speed output report.
	ReportSize = 389
	// HeaderSize is the length of the header preceding the payload.
	HeaderSize = 32
	// SegmentCount is the number of LED segments addressed per zone.
	SegmentCount = 16
	// BytesPerSegment is the size of one RGB triple.
	BytesPerSegment = 3

	// FeatureReportSize is the length of init and commit feature reports.
	FeatureReportSize = 11
	// FeatureReadSize is the buffer used to read the status feature report.
	FeatureReadSize = 65

	ZoneCount = 4

	MinRPM = 805
	MaxRPM = 1900
)

// Header offsets.
const (
	OffsetReportID        = 0
	OffsetCommand         = 1
	OffsetSegmentCount    = 2
	OffsetBytesPerSegment = 3
	OffsetVendorID        = 4 // big endian, two bytes
	OffsetZoneSelector    = 31
	OffsetPayload         = HeaderSize
)

// Speed payload offsets, relative to the start of the report.
const (
	OffsetChannelMask = OffsetPayload
	OffsetDuty        = OffsetPayload + 1
	OffsetRPM         = OffsetPayload + 2 // big endian, two bytes
)

const (
	ReportID     byte = 0xe0
	CommandColor byte = 0x30
	CommandSpeed byte = 0x20
)

// ProductIDs lists the supported controllers in the order they are probed.
var ProductIDs = []uint16{0x7750, 0xa100, 0xa101, 0xa102, 0xa103, 0xa104, 0xa105}

// Layout describes the framing of one controller variant.
type Layout struct {
	Name         string
	ReportSize   int
	Segments     int
	ColorZoneIDs map[Zone]byte
	SpeedZoneIDs map[Zone]byte
}

// UniFan is the layout of the supported controller family.
var UniFan = Layout{
	Name:       "uni-fan",
	ReportSize: ReportSize,
	Segments:   SegmentCount,
	// firmware IDs, not a dense range
	ColorZoneIDs: map[Zone]byte{1: 0x30, 2: 0x31, 3: 0x32, 4: 0x33},
	SpeedZoneIDs: map[Zone]byte{1: 0x20, 2: 0x21, 3: 0x22, 4: 0x23},
}

// initSequence switches every channel into software controlled mode.
var initSequence = [][]byte{
	{0xe0, 0x50, 0x01},
	{0xe0, 0x10, 0x32, 0x03},
	{0xe0, 0x10, 0x32, 0x13},
	{0xe0, 0x10, 0x32, 0x23},
	{0xe0, 0x10, 0x32, 0x33},
}

// commitSequence latches the last color report into the LEDs.
var commitSequence = [][]byte{
	{0xe0, 0x10, 0x01},
	{0xe0, 0x11, 0x01},
	{0xe0, 0x60, 0x00, 0x01},
}

// InitSequence returns the feature reports sent once after opening the device.
func InitSequence() [][]byte {
	return padFeatures(initSequence)
}

// CommitSequence returns the feature reports sent after each color report.
func CommitSequence() [][]byte {
	return padFeatures(commitSequence)
}

func padFeatures(src [][]byte) [][]byte {
	out := make([][]byte, len(src))
	for i, cmd := range src {
		buf := make([]byte, FeatureReportSize)
		copy(buf, cmd)
		out[i] = buf
	}

	return out
}
