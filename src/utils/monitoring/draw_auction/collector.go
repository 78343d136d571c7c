package monitor_draw_auction

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	monitor *Monitor

	// Run
	UpForSeconds *prometheus.Desc

	// Draw auction
	PassesStarted         *prometheus.Desc
	PassesFinished        *prometheus.Desc
	LastPassDurationMs    *prometheus.Desc
	RelayTargets          *prometheus.Desc
	RngStartSubmitted     *prometheus.Desc
	RngRelaySubmitted     *prometheus.Desc
	PrivateSubmissions    *prometheus.Desc
	Skipped               *prometheus.Desc
	LastExpectedProfitUsd *prometheus.Desc

	// Errors
	SetupFailures          *prometheus.Desc
	ContextUnavailable     *prometheus.Desc
	SubmissionFailures     *prometheus.Desc
	TargetDeadlineExceeded *prometheus.Desc
	InvalidRewardFractions *prometheus.Desc
}

func NewCollector() *Collector {
	return &Collector{
		// Run
		UpForSeconds: prometheus.NewDesc("up_for_seconds", "", nil, nil),

		// Draw auction
		PassesStarted:         prometheus.NewDesc("draw_auction_passes_started", "", nil, nil),
		PassesFinished:        prometheus.NewDesc("draw_auction_passes_finished", "", nil, nil),
		LastPassDurationMs:    prometheus.NewDesc("draw_auction_last_pass_duration_ms", "", nil, nil),
		RelayTargets:          prometheus.NewDesc("draw_auction_relay_targets", "", nil, nil),
		RngStartSubmitted:     prometheus.NewDesc("draw_auction_rng_start_submitted", "", nil, nil),
		RngRelaySubmitted:     prometheus.NewDesc("draw_auction_rng_relay_submitted", "", nil, nil),
		PrivateSubmissions:    prometheus.NewDesc("draw_auction_private_submissions", "", nil, nil),
		Skipped:               prometheus.NewDesc("draw_auction_skipped", "", nil, nil),
		LastExpectedProfitUsd: prometheus.NewDesc("draw_auction_last_expected_profit_usd", "", nil, nil),

		// Errors
		SetupFailures:          prometheus.NewDesc("error_draw_auction_setup", "", nil, nil),
		ContextUnavailable:     prometheus.NewDesc("error_draw_auction_context_unavailable", "", nil, nil),
		SubmissionFailures:     prometheus.NewDesc("error_draw_auction_submission", "", nil, nil),
		TargetDeadlineExceeded: prometheus.NewDesc("error_draw_auction_target_deadline_exceeded", "", nil, nil),
		InvalidRewardFractions: prometheus.NewDesc("error_draw_auction_invalid_reward_fraction", "", nil, nil),
	}
}

func (self *Collector) WithMonitor(m *Monitor) *Collector {
	self.monitor = m
	return self
}

func (self *Collector) Describe(ch chan<- *prometheus.Desc) {
	// Run
	ch <- self.UpForSeconds

	// Draw auction
	ch <- self.PassesStarted
	ch <- self.PassesFinished
	ch <- self.LastPassDurationMs
	ch <- self.RelayTargets
	ch <- self.RngStartSubmitted
	ch <- self.RngRelaySubmitted
	ch <- self.PrivateSubmissions
	ch <- self.Skipped
	ch <- self.LastExpectedProfitUsd

	// Errors
	ch <- self.SetupFailures
	ch <- self.ContextUnavailable
	ch <- self.SubmissionFailures
	ch <- self.TargetDeadlineExceeded
	ch <- self.InvalidRewardFractions
}

// Collect implements required collect function for all promehteus collectors
func (self *Collector) Collect(ch chan<- prometheus.Metric) {
	run := &self.monitor.Report.Run.State
	state := &self.monitor.Report.DrawAuction.State
	errors := &self.monitor.Report.DrawAuction.Errors

	// Run
	ch <- prometheus.MustNewConstMetric(self.UpForSeconds, prometheus.GaugeValue, float64(run.UpForSeconds.Load()))

	// Draw auction
	ch <- prometheus.MustNewConstMetric(self.PassesStarted, prometheus.CounterValue, float64(state.PassesStarted.Load()))
	ch <- prometheus.MustNewConstMetric(self.PassesFinished, prometheus.CounterValue, float64(state.PassesFinished.Load()))
	ch <- prometheus.MustNewConstMetric(self.LastPassDurationMs, prometheus.GaugeValue, float64(state.LastPassDurationMs.Load()))
	ch <- prometheus.MustNewConstMetric(self.RelayTargets, prometheus.GaugeValue, float64(state.RelayTargets.Load()))
	ch <- prometheus.MustNewConstMetric(self.RngStartSubmitted, prometheus.CounterValue, float64(state.RngStartSubmitted.Load()))
	ch <- prometheus.MustNewConstMetric(self.RngRelaySubmitted, prometheus.CounterValue, float64(state.RngRelaySubmitted.Load()))
	ch <- prometheus.MustNewConstMetric(self.PrivateSubmissions, prometheus.CounterValue, float64(state.PrivateSubmissions.Load()))
	ch <- prometheus.MustNewConstMetric(self.Skipped, prometheus.CounterValue, float64(state.Skipped.Load()))
	ch <- prometheus.MustNewConstMetric(self.LastExpectedProfitUsd, prometheus.GaugeValue, state.LastExpectedProfitUsd.Load())

	// Errors
	ch <- prometheus.MustNewConstMetric(self.SetupFailures, prometheus.CounterValue, float64(errors.SetupFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.ContextUnavailable, prometheus.CounterValue, float64(errors.ContextUnavailable.Load()))
	ch <- prometheus.MustNewConstMetric(self.SubmissionFailures, prometheus.CounterValue, float64(errors.SubmissionFailures.Load()))
	ch <- prometheus.MustNewConstMetric(self.TargetDeadlineExceeded, prometheus.CounterValue, float64(errors.TargetDeadlineExceeded.Load()))
	ch <- prometheus.MustNewConstMetric(self.InvalidRewardFractions, prometheus.CounterValue, float64(errors.InvalidRewardFractions.Load()))
}
