package session

import (
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
)

// Direction marks whether a recorded frame was sent or received.
type Direction int

const (
	DirOut Direction = iota
	DirIn
)

func (d Direction) String() string {
	if d == DirIn {
		return "in"
	}
	return "out"
}

// FrameRecord is one protocol frame kept for debugging (watch --frames,
// bridge trace logging).
type FrameRecord struct {
	When    time.Time
	Dir     Direction
	Cmd     byte
	Payload []byte
}

// recorderCapacity bounds the debug frame history.
const recorderCapacity = 64

// frameRecorder keeps the most recent protocol frames in a lock-free
// overwrite-oldest ring buffer.
type frameRecorder struct {
	buf mpmc.RichOverlappedRingBuffer[FrameRecord]
}

func newFrameRecorder() *frameRecorder {
	return &frameRecorder{
		buf: mpmc.NewOverlappedRingBuffer[FrameRecord](recorderCapacity),
	}
}

func (r *frameRecorder) record(dir Direction, cmd byte, payload []byte) {
	rec := FrameRecord{
		When:    time.Now(),
		Dir:     dir,
		Cmd:     cmd,
		Payload: append([]byte(nil), payload...),
	}
	// Overwrite-oldest; enqueue cannot fail in a way we care about here.
	_, _ = r.buf.EnqueueM(rec)
}

// drain removes and returns all buffered frames, oldest first.
func (r *frameRecorder) drain() []FrameRecord {
	var out []FrameRecord
	for {
		rec, err := r.buf.Dequeue()
		if err != nil {
			return out
		}
		out = append(out, rec)
	}
}
