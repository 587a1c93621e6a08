//go:build !windows

package timer

import "time"

func raiseResolution() {}

type sleepWaiter struct{}

func newWaiter() (waiter, error) {
	return sleepWaiter{}, nil
}

func (sleepWaiter) wait(d time.Duration) {
	time.Sleep(d)
}

func (sleepWaiter) close() error {
	return nil
}
