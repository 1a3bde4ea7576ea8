package executable

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allModes = []Mode{Multiplexed, Threaded}

func assertErrorContains(t *testing.T, err error, expectedMsg string) {
	t.Helper()

	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), expectedMsg)
	}
}

// spawnAndCommunicate runs command to completion through the given mode
func spawnAndCommunicate(t *testing.T, mode Mode, command Command, stdio StdioConfig, input InputFunc) (Output, ExitStatus) {
	t.Helper()

	handle, streams, err := Spawn(command, stdio)
	if !assert.NoError(t, err) {
		t.FailNow()
	}

	output, err := NewCommunicator(mode).Communicate(streams, input)
	assert.NoError(t, err)

	status, err := handle.Wait()
	assert.NoError(t, err)

	return output, status
}
