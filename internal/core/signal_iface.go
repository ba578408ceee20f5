package core

import "errors"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Frame is one encoded signaling message.
type Frame []byte

// SignalConnection abstracts the per-peer messaging transport.
// Owned by the adapter. TrySend never blocks: it either queues the frame or
// reports ErrBackpressure / ErrConnClosed. Close flushes queued frames and
// releases the transport; it is idempotent.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
