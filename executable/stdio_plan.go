package executable

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Stream identifies one of the child's standard streams
type Stream int

const (
	Stdin Stream = iota
	Stdout
	Stderr
)

var allStreams = [...]Stream{Stdin, Stdout, Stderr}

func (s Stream) String() string {
	switch s {
	case Stdin:
		return "stdin"
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return fmt.Sprintf("stream(%d)", int(s))
	}
}

// Redirection is where a child's standard stream points
type Redirection int

const (
	// Inherit binds the parent's own stream
	Inherit Redirection = iota
	// Discard binds the null device
	Discard
	// Capture connects the stream to the parent through a pipe
	Capture
)

func (r Redirection) String() string {
	switch r {
	case Inherit:
		return "inherit"
	case Discard:
		return "discard"
	case Capture:
		return "capture"
	default:
		return fmt.Sprintf("redirection(%d)", int(r))
	}
}

// ParseRedirection parses "inherit", "discard" (or "null") and "capture" (or "pipe")
func ParseRedirection(value string) (Redirection, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "inherit":
		return Inherit, nil
	case "discard", "null":
		return Discard, nil
	case "capture", "pipe":
		return Capture, nil
	default:
		return Inherit, fmt.Errorf("unknown redirection %q (valid options: inherit, discard, capture)", value)
	}
}

// StdioConfig holds one Redirection per standard stream
type StdioConfig struct {
	Stdin  Redirection
	Stdout Redirection
	Stderr Redirection
}

// CaptureOutput captures stdout and stderr and discards stdin
func CaptureOutput() StdioConfig {
	return StdioConfig{Stdin: Discard, Stdout: Capture, Stderr: Capture}
}

// CaptureAll captures all three streams
func CaptureAll() StdioConfig {
	return StdioConfig{Stdin: Capture, Stdout: Capture, Stderr: Capture}
}

func (c StdioConfig) redirection(stream Stream) Redirection {
	switch stream {
	case Stdin:
		return c.Stdin
	case Stdout:
		return c.Stdout
	case Stderr:
		return c.Stderr
	default:
		panic(fmt.Sprintf("childproc internal error - unknown stream: %v", stream))
	}
}

// Streams are the pipe ends retained by the parent. Ends are nil for streams that weren't captured.
type Streams struct {
	Stdin  *WriteEnd
	Stdout *ReadEnd
	Stderr *ReadEnd
}

// Close closes every end that is still open
func (s *Streams) Close() error {
	if s == nil {
		return nil
	}
	return closeAllWithCloserFunc(closeIfOpen, s.Stdin, s.Stdout, s.Stderr)
}

// StdioPlan maps a StdioConfig to the file each child stream is bound to and the end the parent keeps
type StdioPlan struct {
	childFiles [3]*os.File

	// childOwned holds files the plan opened for the child. They are closed once the child has started.
	childOwned []*os.File

	streams *Streams
}

// NewStdioPlan resolves config into concrete descriptors.
// On failure every descriptor created so far is closed.
func NewStdioPlan(config StdioConfig) (*StdioPlan, error) {
	plan := &StdioPlan{streams: &Streams{}}

	for _, stream := range allStreams {
		if err := plan.bind(stream, config.redirection(stream)); err != nil {
			plan.CloseAll()
			return nil, err
		}
	}

	return plan, nil
}

func (p *StdioPlan) bind(stream Stream, redirection Redirection) error {
	switch redirection {
	case Inherit:
		p.childFiles[stream] = inheritedFile(stream)
	case Discard:
		file, err := openNullDevice(stream)
		if err != nil {
			return &PipeError{Op: fmt.Sprintf("open %s for %s", os.DevNull, stream), Err: err}
		}
		p.childFiles[stream] = file
		p.childOwned = append(p.childOwned, file)
	case Capture:
		readEnd, writeEnd, err := NewPipe(stream)
		if err != nil {
			return err
		}

		// The child reads its stdin and writes its outputs, the parent gets the opposite end
		var file *os.File
		if stream == Stdin {
			file = readEnd.detach()
			p.streams.Stdin = writeEnd
		} else {
			file = writeEnd.detach()
			if stream == Stdout {
				p.streams.Stdout = readEnd
			} else {
				p.streams.Stderr = readEnd
			}
		}
		p.childFiles[stream] = file
		p.childOwned = append(p.childOwned, file)
	default:
		panic(fmt.Sprintf("childproc internal error - unknown redirection for %s: %v", stream, redirection))
	}

	return nil
}

// ChildFile returns the file the child's stream is bound to
func (p *StdioPlan) ChildFile(stream Stream) *os.File {
	return p.childFiles[stream]
}

// CloseChildStreams closes the descriptors opened for the child. Call after the child has started.
func (p *StdioPlan) CloseChildStreams() error {
	closers := make([]io.Closer, 0, len(p.childOwned))
	for _, file := range p.childOwned {
		closers = append(closers, file)
	}
	p.childOwned = nil

	return closeAllWithCloserFunc(closeIfOpen, closers...)
}

// TakeStreams hands the parent-side ends to the caller. The plan no longer owns them afterwards.
func (p *StdioPlan) TakeStreams() *Streams {
	streams := p.streams
	p.streams = &Streams{}
	return streams
}

// CloseAll closes both the child-side and parent-side descriptors still owned by the plan
func (p *StdioPlan) CloseAll() error {
	var firstError error

	// best effort
	if err := p.CloseChildStreams(); err != nil {
		firstError = err
	}

	if err := p.streams.Close(); err != nil && firstError == nil {
		firstError = err
	}

	return firstError
}

func inheritedFile(stream Stream) *os.File {
	switch stream {
	case Stdin:
		return os.Stdin
	case Stdout:
		return os.Stdout
	default:
		return os.Stderr
	}
}

func openNullDevice(stream Stream) (*os.File, error) {
	if stream == Stdin {
		return os.Open(os.DevNull)
	}
	return os.OpenFile(os.DevNull, os.O_WRONLY, 0)
}
