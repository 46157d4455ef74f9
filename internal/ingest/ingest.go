// Package ingest receives raw frame envelopes published by a capture
// node. It is the relay-side counterpart of the forward package.
package ingest

import (
	"context"
	"log"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"github.com/bijoymg2023/RESOFLY/internal/lepton"
	"github.com/bijoymg2023/RESOFLY/internal/types"
)

// recvTimeout bounds each receive so the goroutine notices context
// cancellation.
const recvTimeout = time.Second

var decodeFailures atomic.Uint64

// DecodeFailures reports how many messages were rejected since start.
func DecodeFailures() uint64 { return decodeFailures.Load() }

// Stream binds the endpoint and returns a channel of validated raw
// frames. The channel closes when ctx is cancelled.
func Stream(ctx context.Context, endpoint string, variant lepton.Variant) (<-chan types.RawFrame, error) {
	return streamWithConfig(ctx, endpoint, variant, 1)
}

// StreamWithLogEvery is Stream with rate-limited error logging: only
// every logEvery-th problem is printed.
func StreamWithLogEvery(ctx context.Context, endpoint string, variant lepton.Variant, logEvery int) (<-chan types.RawFrame, error) {
	if logEvery < 1 {
		logEvery = 1
	}
	return streamWithConfig(ctx, endpoint, variant, logEvery)
}

func streamWithConfig(ctx context.Context, endpoint string, variant lepton.Variant, logEvery int) (<-chan types.RawFrame, error) {
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, err
	}
	if err := socket.SetRcvtimeo(recvTimeout); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Bind(endpoint); err != nil {
		_ = socket.Close()
		return nil, err
	}

	out := make(chan types.RawFrame, 8)
	go func() {
		defer close(out)
		defer socket.Close()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, err := socket.RecvBytes(0)
			if err != nil {
				// EAGAIN after the receive timeout is the
				// normal idle path.
				if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
					continue
				}
				logEveryN(logEvery, "ingest recv error: %v", err)
				continue
			}

			frame, ok := decodeFrame(msg, variant, logEvery)
			if !ok {
				decodeFailures.Add(1)
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- frame:
			}
		}
	}()

	return out, nil
}

func decodeFrame(msg []byte, variant lepton.Variant, logEvery int) (types.RawFrame, bool) {
	var frame types.RawFrame
	if err := cbor.Unmarshal(msg, &frame); err != nil {
		logEveryN(logEvery, "ingest CBOR decode error: %v", err)
		return types.RawFrame{}, false
	}
	if frame.Type != types.MessageTypeFrame {
		logEveryN(logEvery, "ingest ignoring message type %q", frame.Type)
		return types.RawFrame{}, false
	}
	if len(frame.Data) != variant.FrameBytes() {
		logEveryN(logEvery, "ingest frame size %d, want %d", len(frame.Data), variant.FrameBytes())
		return types.RawFrame{}, false
	}
	if frame.Width != variant.Width || frame.Height != variant.Height {
		logEveryN(logEvery, "ingest geometry %dx%d, want %dx%d",
			frame.Width, frame.Height, variant.Width, variant.Height)
		return types.RawFrame{}, false
	}
	return frame, true
}

var logCounter int

func logEveryN(n int, format string, args ...any) {
	logCounter++
	if logCounter%n == 0 {
		log.Printf(format, args...)
	}
}
