package stream

// InitialCredit is the number of DATA frames a peer may send on a stream
// before it has to wait for a CONTINUE. The same value is announced for the
// session as a whole on stream 0.
const InitialCredit uint32 = 127

// Credit counts down the DATA frames a stream may still receive.
// The zero value is not ready for use, see NewCredit.
type Credit struct {
	remaining uint32
}

// NewCredit returns a full window.
func NewCredit() Credit {
	return Credit{remaining: InitialCredit}
}

// Remaining returns the frames left in the current window.
func (c *Credit) Remaining() uint32 {
	return c.remaining
}

// Consume accounts for one received DATA frame. When the window is used up
// it is refilled and exhausted is true: the caller must announce the new
// window with CONTINUE(InitialCredit).
func (c *Credit) Consume() (remaining uint32, exhausted bool) {
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining == 0 {
		c.remaining = InitialCredit
		return c.remaining, true
	}
	return c.remaining, false
}
