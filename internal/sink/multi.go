package sink

import "fmt"

// Writer is one frame destination.
type Writer interface {
	Write(frame []byte) error
}

// Func adapts a function to Writer.
type Func func(frame []byte) error

// Write implements Writer.
func (f Func) Write(frame []byte) error { return f(frame) }

// Multi fans one frame out to several writers in order. The first error
// stops the fan-out; with the loopback device first, a preview tap can
// never mask a device failure.
type Multi []Writer

// Write implements Writer.
func (m Multi) Write(frame []byte) error {
	for i, w := range m {
		if err := w.Write(frame); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}
