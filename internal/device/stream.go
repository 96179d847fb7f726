package device

import "sync"

// Stream is a logical submission queue. Work enqueued on one stream runs in
// submission order on a dedicated goroutine; separate streams have no
// ordering relationship unless the caller synchronizes them. Launch entry
// points return once their kernel body is enqueued, not when it completes.
type Stream struct {
	name string
	work chan func()

	closeOnce sync.Once
	done      chan struct{}
}

const streamQueueDepth = 64

func NewStream(name string) *Stream {
	s := &Stream{
		name: name,
		work: make(chan func(), streamQueueDepth),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Stream) run() {
	defer close(s.done)
	for f := range s.work {
		f()
	}
}

func (s *Stream) Name() string {
	return s.name
}

func (s *Stream) enqueue(f func()) {
	s.work <- f
}

// Synchronize blocks until every operation submitted before the call has
// completed.
func (s *Stream) Synchronize() {
	marker := make(chan struct{})
	s.work <- func() { close(marker) }
	<-marker
}

// Close drains the stream and stops its worker. The stream is unusable
// afterwards.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.work) })
	<-s.done
}

var defaultStream = NewStream("default")

// DefaultStream returns the process-wide default submission stream.
func DefaultStream() *Stream {
	return defaultStream
}

// resolveStream maps a nil stream option to the default stream.
func resolveStream(s *Stream) *Stream {
	if s == nil {
		return defaultStream
	}
	return s
}
