//go:build !linux

package rt

func raisePriority() error {
	return nil
}
