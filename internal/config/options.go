package config

import (
	"imgview/internal/core/scheduler"
	"imgview/internal/core/walk"
)

// SchedulerOptions maps c onto scheduler options. Collaborators (decoder,
// provider, sink, logger) are left for the caller.
func (c Config) SchedulerOptions() scheduler.Options {
	return scheduler.Options{
		Order:          c.Order(),
		Cycle:          c.Cycle,
		Radius:         c.Radius,
		Workers:        c.Workers,
		Step:           c.Step,
		ScrollPolicy:   c.Policy(),
		ScrollCapacity: c.ScrollCapacity,
		Settle:         c.Settle(),
		ScrollFPS:      c.ScrollFPS,
		SlideShow:      c.SlideShow(),
		ColorManage:    c.ColorManage,
		Profile:        c.Profile,
		Rotate:         c.Rotate,
		Background:     c.BackgroundColor(),
		ScaleToFit:     c.ScaleToFit,
	}
}

func (c Config) Walk() walk.Options {
	return walk.Options{Recursive: c.Recursive}
}
