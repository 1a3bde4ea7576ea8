package executable

import (
	"errors"

	"golang.org/x/sync/errgroup"
)

// ThreadedCommunicator runs one goroutine per pipe direction and joins them all before returning
type ThreadedCommunicator struct {
	// ReadChunkSize bounds each read. Zero uses GetReadChunkSize().
	ReadChunkSize int
}

func (c *ThreadedCommunicator) Communicate(streams *Streams, input InputFunc) (Output, error) {
	if streams == nil {
		return Output{}, nil
	}
	defer streams.Close()

	sinks := newOutputSinks(streams)
	chunkSize := readChunkSize(c.ReadChunkSize)

	// One slot per goroutine, nothing else is shared between them
	errs := make([]error, len(sinks)+1)

	// Errors are isolated per stream, so the group is only used to join
	var group errgroup.Group

	if streams.Stdin != nil {
		source := newInputSource(streams.Stdin, input)
		group.Go(func() error {
			errs[0] = source.pumpAll()
			return nil
		})
	}

	for i, sink := range sinks {
		group.Go(func() error {
			errs[i+1] = sink.drain(chunkSize)
			return nil
		})
	}

	group.Wait()

	return collectOutput(sinks), errors.Join(errs...)
}
