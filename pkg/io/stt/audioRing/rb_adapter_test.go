package audioring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(b ...byte) AudioInput {
	return AudioInput{Data: b, Timestamp: time.Now()}
}

func TestFrameQueueRoundTrip(t *testing.T) {
	q := New(1024)
	assert.Equal(t, 1024, q.Capacity())
	assert.Equal(t, 0, q.Len())

	require.NoError(t, q.Enqueue(frame(1, 2, 3, 4, 5)))
	assert.Equal(t, 1, q.Len())

	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, got.Data)
	assert.Equal(t, 0, q.Len())
}

func TestFrameQueuePreservesOrder(t *testing.T) {
	q := New(1024)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(frame(byte(i), byte(i+1))))
	}
	for i := 0; i < 3; i++ {
		got, err := q.Dequeue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, byte(i), got.Data[0])
	}
}

func TestFrameQueueDropsOldestOnOverflow(t *testing.T) {
	// each frame costs 4 + 12 + 8 = 24 bytes
	q := New(60)
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Enqueue(frame(byte(i), 0, 0, 0, 0, 0, 0, 0)))
	}
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 2, q.Dropped())

	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, byte(2), got.Data[0])
}

func TestFrameQueueRejectsOversizedFrame(t *testing.T) {
	q := New(16)
	err := q.Enqueue(frame(make([]byte, 32)...))
	assert.True(t, errors.Is(err, ErrFrameTooLarge))
}

func TestFrameQueueSentinelAfterPendingFrames(t *testing.T) {
	q := New(1024)
	require.NoError(t, q.Enqueue(frame(7)))
	q.Close()

	assert.ErrorIs(t, q.Enqueue(frame(8)), ErrClosed)

	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, got.Data)

	_, err = q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFrameQueueDequeueBlocksUntilFrame(t *testing.T) {
	q := New(1024)
	done := make(chan AudioInput, 1)
	go func() {
		f, err := q.Dequeue(context.Background())
		if err == nil {
			done <- f
		}
	}()

	select {
	case <-done:
		t.Fatal("dequeue returned before a frame was queued")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Enqueue(frame(9)))
	select {
	case f := <-done:
		assert.Equal(t, []byte{9}, f.Data)
	case <-time.After(time.Second):
		t.Fatal("dequeue never woke up")
	}
}

func TestFrameQueueDequeueHonoursContext(t *testing.T) {
	q := New(1024)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFrameQueueDrain(t *testing.T) {
	q := New(1024)
	require.NoError(t, q.Enqueue(frame(1)))
	require.NoError(t, q.Enqueue(frame(2)))

	assert.Equal(t, 2, q.Drain())
	assert.Equal(t, 0, q.Len())

	require.NoError(t, q.Enqueue(frame(3)))
	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, got.Data)
}

func TestAudioInputBinaryRoundTrip(t *testing.T) {
	in := AudioInput{Data: []byte{1, 2, 3}, Timestamp: time.Unix(0, 42)}
	raw, err := in.MarshalBinary()
	require.NoError(t, err)

	var out AudioInput
	require.NoError(t, out.UnmarshalBinary(raw))
	assert.Equal(t, in.Data, out.Data)
	assert.True(t, in.Timestamp.Equal(out.Timestamp))

	assert.Error(t, out.UnmarshalBinary(raw[:5]))
}
