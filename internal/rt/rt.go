// Package rt prepares goroutines that drive the audio callback.
package rt

import "runtime"

// Nice is the niceness requested for audio threads.
const Nice = -10

// LockThread wires the calling goroutine to its OS thread and tries to
// raise the thread priority. The goroutine stays locked even if the
// priority can't be changed, the error is returned to be logged. The
// returned function unlocks the thread.
func LockThread() (func(), error) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread, raisePriority()
}
