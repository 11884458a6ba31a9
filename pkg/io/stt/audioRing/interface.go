package audioring

import (
	"context"
	"encoding/binary"
	"errors"
	"time"
)

var (
	ErrClosed        = errors.New("audio queue closed")
	ErrFrameTooLarge = errors.New("audio frame too large for buffer")
	errShortFrame    = errors.New("audio frame truncated")
)

// AudioInput is one encoded chunk as received from the browser.
type AudioInput struct {
	Data      []byte
	Timestamp time.Time
}

const frameHeader = 8 + 4

func (a *AudioInput) MarshalBinary() ([]byte, error) {
	// timestamp(8) + dataLen(4) + data
	buf := make([]byte, frameHeader+len(a.Data))
	binary.LittleEndian.PutUint64(buf[0:], uint64(a.Timestamp.UnixNano()))
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(a.Data)))
	copy(buf[frameHeader:], a.Data)
	return buf, nil
}

func (a *AudioInput) UnmarshalBinary(data []byte) error {
	if len(data) < frameHeader {
		return errShortFrame
	}
	a.Timestamp = time.Unix(0, int64(binary.LittleEndian.Uint64(data[0:])))
	dataLen := int(binary.LittleEndian.Uint32(data[8:]))
	if len(data[frameHeader:]) < dataLen {
		return errShortFrame
	}
	a.Data = make([]byte, dataLen)
	copy(a.Data, data[frameHeader:frameHeader+dataLen])
	return nil
}

// FrameQueue is a bounded single-producer single-consumer queue of audio
// frames. Overflow drops the oldest frames. Close places the end-of-stream
// sentinel: frames already queued are still delivered, then Dequeue reports
// ErrClosed.
type FrameQueue interface {
	Enqueue(frame AudioInput) error
	Dequeue(ctx context.Context) (AudioInput, error)
	// Drain discards every queued frame and returns how many were dropped.
	Drain() int
	Close()
	Closed() bool
	Len() int
	Capacity() int
	Dropped() int
}
