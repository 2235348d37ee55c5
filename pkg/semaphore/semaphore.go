// Package semaphore limits the number of concurrent sessions.
package semaphore

// ConnSemaphore hands out a fixed number of slots. It uses a buffered channel
// holding the free slots.
type ConnSemaphore struct {
	sem chan struct{}
}

// New creates a semaphore with capacity n. All slots start free.
func New(n int) *ConnSemaphore {
	sem := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		sem <- struct{}{}
	}
	return &ConnSemaphore{sem: sem}
}

// TryAcquire takes a slot if one is free and reports whether it did.
// A nil semaphore always succeeds.
func (s *ConnSemaphore) TryAcquire() bool {
	if s == nil {
		return true
	}

	select {
	case <-s.sem:
		return true
	default:
		return false
	}
}

// Release frees a slot taken before.
func (s *ConnSemaphore) Release() {
	if s == nil {
		return
	}
	s.sem <- struct{}{}
}

// InUse returns the number of slots currently taken.
func (s *ConnSemaphore) InUse() int {
	if s == nil {
		return 0
	}
	return cap(s.sem) - len(s.sem)
}
