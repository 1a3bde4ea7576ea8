package executable

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sys/unix"
)

// Output holds the bytes captured from the child's output streams.
// A field is nil when that stream wasn't captured.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Communicator transfers input to the child's stdin while draining its stdout and stderr.
//
// Communicate returns once stdin has been closed and every captured output has reached
// end-of-stream. It takes ownership of streams and closes every end before returning.
// Transfer errors are per-stream: the returned Output holds everything captured up to the
// failure, and the error joins one IOError per failed stream.
type Communicator interface {
	Communicate(streams *Streams, input InputFunc) (Output, error)
}

// Mode selects a Communicator implementation
type Mode int

const (
	// Multiplexed runs the transfer on the calling goroutine using poll(2)
	Multiplexed Mode = iota
	// Threaded runs one goroutine per pipe direction
	Threaded
)

func (m Mode) String() string {
	switch m {
	case Multiplexed:
		return "multiplexed"
	case Threaded:
		return "threaded"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "multiplexed" (or "poll") and "threaded" (or "goroutines")
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "multiplexed", "poll":
		return Multiplexed, nil
	case "threaded", "goroutines":
		return Threaded, nil
	default:
		return Multiplexed, fmt.Errorf("unknown communicate mode %q (valid options: multiplexed, threaded)", value)
	}
}

// NewCommunicator returns the Communicator for mode
func NewCommunicator(mode Mode) Communicator {
	switch mode {
	case Multiplexed:
		return &MultiplexedCommunicator{}
	case Threaded:
		return &ThreadedCommunicator{}
	default:
		panic(fmt.Sprintf("childproc internal error - unknown communicate mode: %v", mode))
	}
}

func readChunkSize(configured int) int {
	if configured > 0 {
		return configured
	}
	return GetReadChunkSize()
}

// outputSink accumulates one captured output stream
type outputSink struct {
	stream Stream
	end    *ReadEnd
	buffer bytes.Buffer
}

func newOutputSinks(streams *Streams) []*outputSink {
	sinks := make([]*outputSink, 0, 2)

	if streams.Stdout != nil {
		sinks = append(sinks, &outputSink{stream: Stdout, end: streams.Stdout})
	}
	if streams.Stderr != nil {
		sinks = append(sinks, &outputSink{stream: Stderr, end: streams.Stderr})
	}

	return sinks
}

func (s *outputSink) isDone() bool {
	return s.end.IsClosed()
}

// readOnce performs a single bounded read. End-of-stream closes the end.
func (s *outputSink) readOnce(chunk []byte) error {
	n, err := s.end.Read(chunk)
	s.buffer.Write(chunk[:n])

	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		s.end.Close()
		return nil
	case errors.Is(err, unix.EAGAIN):
		// Spurious readiness
		return nil
	default:
		return s.fail("read", err)
	}
}

// drain reads until end-of-stream on a blocking descriptor
func (s *outputSink) drain(chunkSize int) error {
	if err := s.end.setNonblock(false); err != nil {
		return s.fail("set blocking", err)
	}

	chunk := make([]byte, chunkSize)
	for !s.isDone() {
		if err := s.readOnce(chunk); err != nil {
			return err
		}
	}

	return nil
}

func (s *outputSink) fail(op string, err error) error {
	closeIfOpen(s.end)
	return &IOError{Stream: s.stream, Op: op, Err: err}
}

func (s *outputSink) bytes() []byte {
	return bytes.Clone(s.buffer.Bytes())
}

func collectOutput(sinks []*outputSink) Output {
	var output Output

	for _, sink := range sinks {
		// Captured streams always yield a non-nil slice, even when empty
		captured := sink.bytes()
		if captured == nil {
			captured = []byte{}
		}

		if sink.stream == Stdout {
			output.Stdout = captured
		} else {
			output.Stderr = captured
		}
	}

	return output
}

// inputSource feeds the child's stdin from an InputFunc
type inputSource struct {
	end     *WriteEnd
	produce InputFunc
	pending []byte
	done    bool
}

func newInputSource(end *WriteEnd, produce InputFunc) *inputSource {
	if produce == nil {
		produce = NoInput()
	}
	return &inputSource{end: end, produce: produce}
}

func (s *inputSource) isDone() bool {
	return s.end.IsClosed()
}

// next pulls the next chunk into pending. It returns false once the producer is exhausted.
func (s *inputSource) next() (bool, error) {
	if s.done {
		return false, nil
	}

	chunk, err := s.produce()
	s.pending = chunk

	if errors.Is(err, io.EOF) {
		s.done = true
		return len(chunk) > 0, nil
	}
	if err != nil {
		s.done = true
		s.pending = nil
		return false, s.fail("produce input", err)
	}

	return true, nil
}

// writeOnce performs at most one write on a non-blocking descriptor
func (s *inputSource) writeOnce() error {
	if len(s.pending) == 0 {
		more, err := s.next()
		if err != nil {
			return err
		}
		if !more {
			s.end.Close()
			return nil
		}
		if len(s.pending) == 0 {
			return nil
		}
	}

	n, err := s.end.Write(s.pending)
	if errors.Is(err, unix.EAGAIN) {
		return nil
	}
	if err != nil {
		return s.fail("write", err)
	}

	s.pending = s.pending[n:]

	if len(s.pending) == 0 && s.done {
		s.end.Close()
	}

	return nil
}

// pumpAll writes every chunk to a blocking descriptor, then closes it
func (s *inputSource) pumpAll() error {
	if err := s.end.setNonblock(false); err != nil {
		return s.fail("set blocking", err)
	}

	for {
		more, err := s.next()
		if err != nil {
			return err
		}
		if !more {
			s.end.Close()
			return nil
		}

		if err := s.end.writeAll(s.pending); err != nil {
			return s.fail("write", err)
		}
		s.pending = nil
	}
}

func (s *inputSource) fail(op string, err error) error {
	closeIfOpen(s.end)
	return &IOError{Stream: Stdin, Op: op, Err: err}
}
