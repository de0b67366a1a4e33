package newsletter

import "errors"

var (
	// ErrCycleInProgress is returned when another process holds the send lock.
	ErrCycleInProgress = errors.New("send cycle already in progress")
	// ErrNoSubscribers is returned when a send request names no recipients.
	ErrNoSubscribers = errors.New("no subscribers to send to")
)
