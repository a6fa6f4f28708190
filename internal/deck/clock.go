package deck

import "time"

// Clock is a monotonic time source. Now only ever increases.
type Clock interface {
	Now() time.Duration
}

type monotonicClock struct {
	epoch time.Time
}

// SystemClock returns a clock backed by the runtime's monotonic reading.
func SystemClock() Clock {
	return monotonicClock{epoch: time.Now()}
}

func (c monotonicClock) Now() time.Duration {
	return time.Since(c.epoch)
}

func seconds(d time.Duration) float64 {
	return d.Seconds()
}

func duration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
