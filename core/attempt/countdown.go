package attempt

import "time"

// Countdown drives the hard deadline of a session. Stopping is best effort:
// a fire that races a stop is neutralized by the session's finalize guard,
// not prevented here.
type Countdown struct {
	timer *time.Timer
}

func newCountdown(d time.Duration, fire func()) *Countdown {
	return &Countdown{timer: time.AfterFunc(d, fire)}
}

// Stop cancels the deadline. Safe to call multiple times and after firing.
func (c *Countdown) Stop() {
	if c == nil || c.timer == nil {
		return
	}
	c.timer.Stop()
}
