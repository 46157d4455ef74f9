// Package lepton describes the VoSPI telemetry stream geometry of the
// FLIR Lepton sensor family.
package lepton

import "fmt"

const (
	// PacketSize is the fixed size of one VoSPI packet in bytes.
	PacketSize = 164
	// PacketWords is PacketSize viewed as 16-bit words.
	PacketWords = PacketSize / 2
	// HeaderWords is the number of non-pixel words at the start of
	// every packet (ID and CRC).
	HeaderWords = 2
	// PixelWordsPerPacket is the number of radiometric samples carried
	// by one packet.
	PixelWordsPerPacket = PacketWords - HeaderWords

	// PacketsPerSegment is fixed across the sensor family.
	PacketsPerSegment = 60

	// SegmentIDPacket is the packet whose ID field carries the segment
	// identifier nibble on multi-segment sensors.
	SegmentIDPacket = 20

	discardMask = 0x0F
)

// Variant selects the sensor generation. It fixes the segment count and
// output resolution; everything downstream takes geometry from here
// instead of branching on the model.
type Variant struct {
	Name     string
	Width    int
	Height   int
	Segments int
}

var (
	// Lepton2 streams one 60-packet segment per 80x60 frame.
	Lepton2 = Variant{Name: "lepton2", Width: 80, Height: 60, Segments: 1}
	// Lepton3 streams four segments per 160x120 frame.
	Lepton3 = Variant{Name: "lepton3", Width: 160, Height: 120, Segments: 4}
)

// VariantFor maps the -tl flag value to a Variant.
func VariantFor(typeLepton int) (Variant, error) {
	switch typeLepton {
	case 2:
		return Lepton2, nil
	case 3:
		return Lepton3, nil
	default:
		return Variant{}, fmt.Errorf("unsupported lepton type %d (want 2 or 3)", typeLepton)
	}
}

// SegmentBytes is the size of one full segment burst.
func (v Variant) SegmentBytes() int {
	return PacketsPerSegment * PacketSize
}

// FrameBytes is the size of one assembled raw frame, headers included.
func (v Variant) FrameBytes() int {
	return v.Segments * v.SegmentBytes()
}

// Pixels is the number of radiometric samples per frame.
func (v Variant) Pixels() int {
	return v.Width * v.Height
}

// VisualBytes is the size of the packed RGB buffer handed to the sink.
func (v Variant) VisualBytes() int {
	return v.Pixels() * 3
}

// PacketNumber returns the packet index field of a raw packet.
func PacketNumber(packet []byte) int {
	return int(packet[1])
}

// IsDiscard reports whether a packet carries the discard marker in its
// ID field. Discard packets are emitted while the sensor has no frame
// ready and carry no usable index.
func IsDiscard(packet []byte) bool {
	return packet[0]&discardMask == discardMask
}

// SegmentID returns the segment identifier nibble of a raw segment
// burst, taken from the designated header packet. Zero means the sensor
// has not tagged the segment (or the stream is not a Lepton 3 stream).
func SegmentID(segment []byte) int {
	return int(segment[SegmentIDPacket*PacketSize]>>4) & 0x0F
}
