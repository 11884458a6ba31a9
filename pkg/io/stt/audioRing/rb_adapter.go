package audioring

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/smallnest/ringbuffer"
)

const sizePrefix = 4

type rb_impl struct {
	mu      sync.Mutex
	size    int
	rb      *ringbuffer.RingBuffer
	frames  int
	dropped int
	closed  bool
	notify  chan struct{}
}

func New(size int) FrameQueue {
	return &rb_impl{
		size:   size,
		rb:     ringbuffer.New(size).SetBlocking(false), // overflow is handled by dropping frames
		notify: make(chan struct{}, 1),
	}
}

func (r *rb_impl) signal() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Enqueue implements FrameQueue.
func (r *rb_impl) Enqueue(frame AudioInput) error {
	data, err := frame.MarshalBinary()
	if err != nil {
		return err
	}
	required := len(data) + sizePrefix

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if required > r.rb.Capacity() {
		r.mu.Unlock()
		return ErrFrameTooLarge
	}
	for r.rb.Free() < required {
		if !r.removeOldestFrame() {
			r.resetLocked()
			break
		}
		r.dropped++
	}

	prefix := make([]byte, sizePrefix)
	binary.LittleEndian.PutUint32(prefix, uint32(len(data)))
	if _, err := r.rb.Write(prefix); err != nil {
		r.mu.Unlock()
		return err
	}
	if _, err := r.rb.Write(data); err != nil {
		r.mu.Unlock()
		return err
	}
	r.frames++
	r.mu.Unlock()

	r.signal()
	return nil
}

// Dequeue implements FrameQueue.
func (r *rb_impl) Dequeue(ctx context.Context) (AudioInput, error) {
	for {
		r.mu.Lock()
		if r.frames > 0 {
			frame, ok := r.readFrame()
			r.mu.Unlock()
			if ok {
				return frame, nil
			}
			continue
		}
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return AudioInput{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return AudioInput{}, ctx.Err()
		case <-r.notify:
		}
	}
}

// readFrame pops one frame; a corrupt buffer is reset and reported as !ok.
func (r *rb_impl) readFrame() (AudioInput, bool) {
	prefix := make([]byte, sizePrefix)
	if n, err := r.rb.Read(prefix); err != nil || n != sizePrefix {
		r.resetLocked()
		return AudioInput{}, false
	}
	size := int(binary.LittleEndian.Uint32(prefix))
	data := make([]byte, size)
	if n, err := r.rb.Read(data); err != nil || n != size {
		r.resetLocked()
		return AudioInput{}, false
	}
	r.frames--

	var frame AudioInput
	if err := frame.UnmarshalBinary(data); err != nil {
		return AudioInput{}, false
	}
	return frame, true
}

// removeOldestFrame removes the oldest complete audio frame from the buffer
func (r *rb_impl) removeOldestFrame() bool {
	if r.rb.IsEmpty() {
		return false
	}
	prefix := make([]byte, sizePrefix)
	if n, err := r.rb.Read(prefix); err != nil || n != sizePrefix {
		return false
	}
	size := int(binary.LittleEndian.Uint32(prefix))
	if size > 0 {
		skip := make([]byte, size)
		if n, err := r.rb.Read(skip); err != nil || n != size {
			return false
		}
	}
	r.frames--
	return true
}

func (r *rb_impl) resetLocked() {
	r.rb.Reset()
	r.frames = 0
}

// Drain implements FrameQueue.
func (r *rb_impl) Drain() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.frames
	r.resetLocked()
	return n
}

// Close implements FrameQueue.
func (r *rb_impl) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.signal()
}

func (r *rb_impl) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Len reports queued frames.
func (r *rb_impl) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *rb_impl) Capacity() int {
	return r.size
}

func (r *rb_impl) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
