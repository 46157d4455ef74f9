// Package spibus owns the SPI link to the sensor. One Session wraps one
// open, configured spidev port and performs blocking burst transfers.
package spibus

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// MinSpeedMHz and MaxSpeedMHz bound the usable clock range of the
	// VoSPI interface.
	MinSpeedMHz = 10
	MaxSpeedMHz = 30
	// DefaultSpeedMHz is comfortably inside the usable range for a
	// short ribbon cable.
	DefaultSpeedMHz = 20

	// DefaultSettle is how long the sensor needs after a close before
	// the stream re-synchronizes on reopen.
	DefaultSettle = 750 * time.Millisecond
)

var hostOnce sync.Once

// Session is an open SPI connection to the sensor. It is owned by a
// single goroutine; no internal locking is provided.
type Session struct {
	selector string
	speed    physic.Frequency
	settle   time.Duration

	port spi.PortCloser
	conn spi.Conn
}

// Open opens and configures the SPI link: mode 3 (clock idle high,
// sample on the trailing edge), 8-bit words, fixed clock speed. Any
// failure here means a broken environment, not a transient condition.
func Open(selector string, speedMHz int) (*Session, error) {
	if speedMHz < MinSpeedMHz || speedMHz > MaxSpeedMHz {
		return nil, fmt.Errorf("spi speed %d MHz out of range (%d-%d)", speedMHz, MinSpeedMHz, MaxSpeedMHz)
	}

	var initErr error
	hostOnce.Do(func() {
		_, initErr = host.Init()
	})
	if initErr != nil {
		return nil, fmt.Errorf("host init: %w", initErr)
	}

	s := &Session{
		selector: selector,
		speed:    physic.Frequency(speedMHz) * physic.MegaHertz,
		settle:   DefaultSettle,
	}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) connect() error {
	port, err := spireg.Open(s.selector)
	if err != nil {
		return fmt.Errorf("open spi port %q: %w", s.selector, err)
	}
	conn, err := port.Connect(s.speed, spi.Mode3, 8)
	if err != nil {
		_ = port.Close()
		return fmt.Errorf("configure spi port %q: %w", s.selector, err)
	}
	s.port = port
	s.conn = conn
	return nil
}

// ReadSegment performs one burst of packetCount reads of packetSize
// bytes each without releasing chip select between packets. Releasing
// CS mid-segment would let another bus client interleave and corrupt
// the framing, so the whole segment is a single transaction.
func (s *Session) ReadSegment(packetCount, packetSize int) ([]byte, error) {
	if s.conn == nil {
		return nil, fmt.Errorf("spi session %q is closed", s.selector)
	}
	buf := make([]byte, packetCount*packetSize)
	packets := make([]spi.Packet, packetCount)
	for i := range packets {
		packets[i].R = buf[i*packetSize : (i+1)*packetSize]
		packets[i].KeepCS = i != packetCount-1
	}
	if err := s.conn.TxPackets(packets); err != nil {
		return nil, fmt.Errorf("spi segment transfer: %w", err)
	}
	return buf, nil
}

// Close releases the port.
func (s *Session) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.conn = nil
	if err != nil {
		return fmt.Errorf("close spi port %q: %w", s.selector, err)
	}
	return nil
}

// Reopen bounces the link: close, wait for the sensor's stream to
// settle, reconnect. The synchronizer calls this when re-reads alone
// cannot recover a jammed byte stream.
func (s *Session) Reopen() error {
	if err := s.Close(); err != nil {
		return err
	}
	time.Sleep(s.settle)
	return s.connect()
}
