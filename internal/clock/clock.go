package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts time for components that measure windows or uptime.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System returns the wall clock.
func System() Clock { return systemClock{} }

var Module = fx.Module("clock",
	fx.Provide(System),
)
