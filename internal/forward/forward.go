// Package forward publishes raw frames to a network peer, so a more
// capable machine can do the heavy processing (the lepton-relay role).
package forward

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"github.com/bijoymg2023/RESOFLY/internal/lepton"
	"github.com/bijoymg2023/RESOFLY/internal/types"
)

// sendHWM bounds the outbound queue; a dead relay must not make the
// capture side accumulate frames.
const sendHWM = 4

// Publisher pushes CBOR frame envelopes over a ZMQ PUSH socket. It is
// used from the capture goroutine only.
type Publisher struct {
	socket  *zmq4.Socket
	variant lepton.Variant
	seq     uint64

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewPublisher connects to the relay endpoint, e.g. tcp://host:5005.
func NewPublisher(endpoint string, variant lepton.Variant) (*Publisher, error) {
	socket, err := zmq4.NewSocket(zmq4.PUSH)
	if err != nil {
		return nil, err
	}
	if err := socket.SetSndhwm(sendHWM); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.SetLinger(time.Second); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("connect forward endpoint %q: %w", endpoint, err)
	}
	return &Publisher{socket: socket, variant: variant}, nil
}

// Publish sends one raw frame without blocking. Frames the relay
// cannot keep up with are dropped and counted.
func (p *Publisher) Publish(raw []byte) {
	p.seq++
	envelope := types.RawFrame{
		Type:      types.MessageTypeFrame,
		Seq:       p.seq,
		Timestamp: time.Now().UnixNano(),
		Variant:   p.variant.Name,
		Width:     p.variant.Width,
		Height:    p.variant.Height,
		Data:      raw,
	}
	payload, err := cbor.Marshal(envelope)
	if err != nil {
		log.Printf("forward encode failed: %v", err)
		return
	}
	if _, err := p.socket.SendBytes(payload, zmq4.DONTWAIT); err != nil {
		p.dropped.Add(1)
		return
	}
	p.published.Add(1)
}

// Published and Dropped report cumulative counts for the status
// endpoint.
func (p *Publisher) Published() uint64 { return p.published.Load() }
func (p *Publisher) Dropped() uint64   { return p.dropped.Load() }

// Close releases the socket.
func (p *Publisher) Close() error {
	return p.socket.Close()
}
