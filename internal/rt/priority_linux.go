package rt

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// raisePriority sets niceness of the current thread. It requires
// CAP_SYS_NICE or a matching RLIMIT_NICE.
func raisePriority() error {
	if err := unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), Nice); err != nil {
		return fmt.Errorf("set thread priority %d: %w", Nice, err)
	}
	return nil
}
