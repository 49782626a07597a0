package activity

import "time"

// Status is the coarse state of an agent on the dashboard.
type Status string

const (
	StatusWorking Status = "working"
	StatusIdle    Status = "idle"
	StatusOffline Status = "offline"
)

// DefaultWorkingWindow is how recent the last message must be for an
// agent to count as working.
const DefaultWorkingWindow = 5 * time.Minute

// Classifier derives working/idle from the age of the last activity.
// It never returns StatusOffline; offline means no session exists at all
// and is decided by the caller.
type Classifier struct {
	Window time.Duration
}

// Classify reports working when now-last is strictly less than the
// window. A zero last time is treated as absent and yields idle.
func (c Classifier) Classify(last, now time.Time) Status {
	if last.IsZero() {
		return StatusIdle
	}
	window := c.Window
	if window <= 0 {
		window = DefaultWorkingWindow
	}
	if now.Sub(last) < window {
		return StatusWorking
	}
	return StatusIdle
}

// Classify applies the default five-minute window.
func Classify(last, now time.Time) Status {
	return Classifier{Window: DefaultWorkingWindow}.Classify(last, now)
}
