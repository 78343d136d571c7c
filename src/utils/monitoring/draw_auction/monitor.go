package monitor_draw_auction

import (
	"net/http"
	"time"

	"github.com/generationsoftware/autotasks/src/utils/monitoring/report"
	"github.com/generationsoftware/autotasks/src/utils/task"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Stores and computes monitor counters
type Monitor struct {
	*task.Task

	Report    report.Report
	collector *Collector

	// Health check fails if there was no finished pass for this long
	maxPassAge time.Duration
}

func NewMonitor() (self *Monitor) {
	self = new(Monitor)

	self.Report = report.Report{
		Run:         &report.RunReport{},
		DrawAuction: &report.DrawAuctionReport{},
	}

	// Initialization
	self.Report.Run.State.StartTimestamp.Store(time.Now().Unix())
	self.maxPassAge = 30 * time.Minute

	self.collector = NewCollector().WithMonitor(self)

	self.Task = task.NewTask(nil, "monitor").
		WithPeriodicSubtaskFunc(30*time.Second, self.monitor)

	return
}

func (self *Monitor) WithMaxPassAge(v time.Duration) *Monitor {
	self.maxPassAge = v
	return self
}

func (self *Monitor) GetReport() *report.Report {
	return &self.Report
}

func (self *Monitor) GetPrometheusCollector() (collector prometheus.Collector) {
	return self.collector
}

func (self *Monitor) IsOK() bool {
	now := time.Now().Unix()
	if now-self.Report.Run.State.StartTimestamp.Load() < int64(self.maxPassAge.Seconds()) {
		// Give it time to finish the first pass
		return true
	}

	return now-self.Report.DrawAuction.State.LastPassTimestamp.Load() < int64(self.maxPassAge.Seconds())
}

func (self *Monitor) monitor() (err error) {
	self.Report.Run.State.UpForSeconds.Store(uint64(time.Now().Unix() - self.Report.Run.State.StartTimestamp.Load()))
	return nil
}

func (self *Monitor) OnGetState(c *gin.Context) {
	self.Report.Run.State.UpForSeconds.Store(uint64(time.Now().Unix() - self.Report.Run.State.StartTimestamp.Load()))

	c.JSON(http.StatusOK, &self.Report)
}

func (self *Monitor) OnGetHealth(c *gin.Context) {
	if self.IsOK() {
		c.Status(http.StatusOK)
	} else {
		c.Status(http.StatusServiceUnavailable)
	}
}
