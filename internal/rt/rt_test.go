package rt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/synth/internal/rt"
)

func TestLockThread(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		unlock, err := rt.LockThread()
		defer unlock()
		// unprivileged runs are not allowed to raise priority
		if err != nil {
			assert.Contains(t, err.Error(), "set thread priority")
		}
	}()
	<-done
}
