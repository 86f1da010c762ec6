package clock

import (
	"time"

	"github.com/smallbiznis/eroom/internal/config"
	"go.uber.org/fx"
)

// Clock abstracts wall time so date-driven rules can be tested.
type Clock interface {
	Now() time.Time
}

// SystemClock reports the current time in the business timezone.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// Today is the business date of c.Now(), see DateOf.
func Today(c Clock) time.Time {
	return DateOf(c.Now())
}

// DateOf keeps the calendar day of t as seen in its own location and
// returns it as midnight UTC. All stored dates use this form.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func NewSystemClock(cfg config.Config) Clock {
	return SystemClock{Location: cfg.Location()}
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
