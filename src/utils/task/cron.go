package task

import (
	"sync/atomic"

	"github.com/robfig/cron"
)

// Runs f according to the cron schedule until the task is stopped.
// A run that is still in progress when the next one is due makes the scheduler skip it.
func (self *Task) WithCronSubtaskFunc(schedule string, f func() error) *Task {
	var (
		scheduler  = cron.New()
		inProgress atomic.Bool
	)

	self.onBeforeStart = append(self.onBeforeStart, func() error {
		return scheduler.AddFunc(schedule, func() {
			if !inProgress.CompareAndSwap(false, true) {
				self.Log.Warn("Previous run still in progress, skipping")
				return
			}
			defer inProgress.Store(false)

			err := f()
			if err != nil {
				self.Log.WithError(err).Error("Scheduled run failed")
			}
		})
	})

	self.subtasksFunc = append(self.subtasksFunc, func() error {
		scheduler.Start()
		<-self.StopChannel
		scheduler.Stop()
		self.Log.Debug("Scheduler stopped")
		return nil
	})

	return self
}
