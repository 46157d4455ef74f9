package types

// RawFrame is the CBOR envelope carrying one assembled raw frame
// between the streamer and a relay. Data holds the full frame bytes,
// packet headers included, exactly as read off the bus.
type RawFrame struct {
	Type      string `cbor:"type" json:"type"`
	Seq       uint64 `cbor:"seq" json:"seq"`
	Timestamp int64  `cbor:"timestamp" json:"timestamp"`
	Variant   string `cbor:"variant" json:"variant"`
	Width     int    `cbor:"width" json:"width"`
	Height    int    `cbor:"height" json:"height"`
	Data      []byte `cbor:"data" json:"-"`
}

// MessageTypeFrame tags a RawFrame envelope.
const MessageTypeFrame = "frame"
