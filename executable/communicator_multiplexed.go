package executable

import (
	"errors"

	"golang.org/x/sys/unix"
)

// MultiplexedCommunicator drives every pipe from the calling goroutine, suspending only in poll(2)
type MultiplexedCommunicator struct {
	// ReadChunkSize bounds each read. Zero uses GetReadChunkSize().
	ReadChunkSize int
}

func (c *MultiplexedCommunicator) Communicate(streams *Streams, input InputFunc) (Output, error) {
	if streams == nil {
		return Output{}, nil
	}
	defer streams.Close()

	var errs []error

	sinks := newOutputSinks(streams)
	for _, sink := range sinks {
		if err := sink.end.setNonblock(true); err != nil {
			errs = append(errs, sink.fail("set non-blocking", err))
		}
	}

	var source *inputSource
	if streams.Stdin != nil {
		source = newInputSource(streams.Stdin, input)
		if err := source.end.setNonblock(true); err != nil {
			errs = append(errs, source.fail("set non-blocking", err))
		}
	}

	chunk := make([]byte, readChunkSize(c.ReadChunkSize))
	pollFds := make([]unix.PollFd, 0, 3)
	polledSinks := make([]*outputSink, 0, 2)

	for {
		pollFds = pollFds[:0]
		polledSinks = polledSinks[:0]

		for _, sink := range sinks {
			if sink.isDone() {
				continue
			}
			pollFds = append(pollFds, unix.PollFd{Fd: int32(sink.end.Fd()), Events: unix.POLLIN})
			polledSinks = append(polledSinks, sink)
		}

		stdinIndex := -1
		if source != nil && !source.isDone() {
			stdinIndex = len(pollFds)
			pollFds = append(pollFds, unix.PollFd{Fd: int32(source.end.Fd()), Events: unix.POLLOUT})
		}

		if len(pollFds) == 0 {
			break
		}

		if err := poll(pollFds); err != nil {
			// Readiness can't be queried anymore, so nothing left can make progress
			for _, sink := range polledSinks {
				errs = append(errs, sink.fail("poll", err))
			}
			if stdinIndex >= 0 {
				errs = append(errs, source.fail("poll", err))
			}
			break
		}

		// POLLHUP and POLLERR are handled by the read or write that follows
		for i, sink := range polledSinks {
			if pollFds[i].Revents == 0 {
				continue
			}
			if err := sink.readOnce(chunk); err != nil {
				errs = append(errs, err)
			}
		}

		if stdinIndex >= 0 && pollFds[stdinIndex].Revents != 0 {
			if err := source.writeOnce(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return collectOutput(sinks), errors.Join(errs...)
}

// poll blocks until at least one descriptor is ready, retrying on EINTR
func poll(fds []unix.PollFd) error {
	for {
		_, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		return err
	}
}
