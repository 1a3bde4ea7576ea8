package executable

import (
	"errors"
	"io"
)

// InputFunc produces the next chunk of input for the child's stdin.
// It returns io.EOF once there is no more input; any other error ends stdin with an IOError.
//
// Communicators call it from a single goroutine and never after it has returned an error.
type InputFunc func() ([]byte, error)

// NoInput reports completion immediately
func NoInput() InputFunc {
	return func() ([]byte, error) {
		return nil, io.EOF
	}
}

// ChunkInput yields each chunk in order, one per call
func ChunkInput(chunks ...[]byte) InputFunc {
	return func() ([]byte, error) {
		if len(chunks) == 0 {
			return nil, io.EOF
		}

		chunk := chunks[0]
		chunks = chunks[1:]
		return chunk, nil
	}
}

// StringInput yields each string in order, one per call
func StringInput(values ...string) InputFunc {
	chunks := make([][]byte, len(values))
	for i, value := range values {
		chunks[i] = []byte(value)
	}
	return ChunkInput(chunks...)
}

// ReaderInput streams r in chunks of at most chunkSize bytes without reading it all upfront
func ReaderInput(r io.Reader, chunkSize int) InputFunc {
	if chunkSize <= 0 {
		chunkSize = GetReadChunkSize()
	}

	return func() ([]byte, error) {
		buf := make([]byte, chunkSize)

		for {
			n, err := r.Read(buf)
			if n > 0 {
				// Deliver what we have, a pending error will come back on the next call
				return buf[:n], nil
			}
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			if err != nil {
				return nil, err
			}
		}
	}
}
