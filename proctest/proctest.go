// Package proctest has helpers for tests that spawn processes.
//
// Helpers take the testing.T interface from go-testing-interface so they can be used from
// regular tests as well as from harnesses that run outside of `go test`.
package proctest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mitchellh/go-testing-interface"
	"github.com/stretchr/testify/assert"
)

// descriptorDirs lists where the current process' open descriptors can be enumerated
var descriptorDirs = []string{"/proc/self/fd", "/dev/fd"}

// OpenDescriptorTotal returns the number of descriptors open in the current process
func OpenDescriptorTotal() (int, error) {
	var lastErr error

	for _, dir := range descriptorDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			lastErr = err
			continue
		}

		total := 0
		for _, entry := range entries {
			if _, err := strconv.Atoi(entry.Name()); err == nil {
				total++
			}
		}

		// The directory's own descriptor is listed while it's being read
		return max(total-1, 0), nil
	}

	return 0, fmt.Errorf("can't enumerate open descriptors: %w", lastErr)
}

// OpenDescriptorCount returns the number of open descriptors, skipping the test where that can't be determined
func OpenDescriptorCount(t testing.T) int {
	t.Helper()

	total, err := OpenDescriptorTotal()
	if err != nil {
		t.Skipf("skipping: %s", err)
	}

	return total
}

// AssertNoDescriptorLeak runs fn twice and asserts that the second run leaves the number of open
// descriptors unchanged. The first run absorbs descriptors the runtime opens lazily (e.g. the poller).
func AssertNoDescriptorLeak(t testing.T, fn func()) bool {
	t.Helper()

	fn()
	before := OpenDescriptorCount(t)

	fn()
	after := OpenDescriptorCount(t)

	return assert.Equal(t, before, after, "open descriptors before and after differ")
}

// WriteScript writes an executable /bin/sh script with body into a temporary directory and returns its path
func WriteScript(t testing.T, name string, body string) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "proctest")
	if err != nil {
		t.Fatalf("create script dir: %s", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("write script %s: %s", path, err)
	}

	return path
}
