package draw_auction

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/generationsoftware/autotasks/src/utils/config"
	"github.com/generationsoftware/autotasks/src/utils/monitoring"
	monitor_draw_auction "github.com/generationsoftware/autotasks/src/utils/monitoring/draw_auction"
	"github.com/generationsoftware/autotasks/src/utils/task"
)

// Runs passes over the RNG chain and all relay targets
type Controller struct {
	*task.Task

	registry   *Registry
	aggregator *Aggregator
	evaluator  *Evaluator
	dispatcher *Dispatcher
	monitor    *monitor_draw_auction.Monitor

	rngConfig    RelayConfig
	relayConfigs []RelayConfig
}

func NewController(config *config.Config) (self *Controller) {
	self = new(Controller)
	self.Task = task.NewTask(config, "draw-auction")

	self.registry = NewRegistry(config)
	self.aggregator = NewAggregator(config)
	self.evaluator = NewEvaluator()
	self.dispatcher = NewDispatcher(config)
	self.monitor = monitor_draw_auction.NewMonitor()

	self.rngConfig, self.relayConfigs = RelayConfigsFromConfig(config)

	return
}

func (self *Controller) WithRegistry(registry *Registry) *Controller {
	self.registry = registry
	return self
}

func (self *Controller) WithAggregator(aggregator *Aggregator) *Controller {
	self.aggregator = aggregator
	return self
}

func (self *Controller) WithRelayConfigs(rng RelayConfig, relays []RelayConfig) *Controller {
	self.rngConfig = rng
	self.relayConfigs = relays
	return self
}

func (self *Controller) GetMonitor() *monitor_draw_auction.Monitor {
	return self.monitor
}

// Runs passes on schedule and serves monitoring endpoints until stopped
func (self *Controller) WithSchedule() *Controller {
	server := monitoring.NewServer(self.Config).
		WithMonitor(self.monitor)

	self.Task = self.Task.
		WithCronSubtaskFunc(self.Config.DrawAuction.Schedule, self.runScheduled).
		WithSubtask(self.monitor.Task).
		WithConditionalSubtask(self.Config.RESTListenAddress != "", server.Task)
	return self
}

func (self *Controller) runScheduled() (err error) {
	report, err := self.RunPass(self.Ctx)
	if err != nil {
		return
	}

	self.Log.WithField("rng", report.Rng.Status).
		WithField("relays", len(report.Relays)).
		Info("Pass finished")
	return
}

// One pass over the RNG chain and then every relay target. Only setup errors are returned,
// everything that goes wrong with a single target ends up in the report.
func (self *Controller) RunPass(ctx context.Context) (report *PassReport, err error) {
	state := &self.monitor.Report.DrawAuction.State
	state.PassesStarted.Inc()

	start := time.Now()
	defer func() {
		state.LastPassDurationMs.Store(time.Since(start).Milliseconds())
	}()

	if self.Config.DrawAuction.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, self.Config.DrawAuction.PassTimeout)
		defer cancel()
	}

	rng, err := self.registry.BuildRngTarget(ctx, self.rngConfig)
	if err != nil {
		self.monitor.Report.DrawAuction.Errors.SetupFailures.Inc()
		self.Log.WithError(err).Error("Failed to set up RNG chain")
		return nil, err
	}
	defer rng.Close()

	targets, err := self.registry.BuildRelayTargets(ctx, self.relayConfigs)
	if err != nil {
		self.monitor.Report.DrawAuction.Errors.SetupFailures.Inc()
		self.Log.WithError(err).Error("Failed to set up relay targets")
		return nil, err
	}
	for _, target := range targets {
		defer target.Close()
	}
	state.RelayTargets.Store(uint64(len(targets)))

	report = new(PassReport)

	var rngCtx *AuctionContext
	rngCtx, report.Rng = self.runRng(ctx, rng, targets)
	self.record(report.Rng)

	report.Relays = self.runRelays(ctx, targets, rngCtx)

	state.PassesFinished.Inc()
	state.LastPassTimestamp.Store(time.Now().Unix())
	return
}

func (self *Controller) suggestGasPrice(ctx context.Context, target *RelayTarget) (*big.Int, error) {
	if self.Config.DrawAuction.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, self.Config.DrawAuction.ReadTimeout)
		defer cancel()
	}
	return target.ReadConnection.SuggestGasPrice(ctx)
}

func (self *Controller) runRng(ctx context.Context, rng *RelayTarget, targets []*RelayTarget) (rngCtx *AuctionContext, outcome Outcome) {
	gasPrice, err := self.suggestGasPrice(ctx, rng)
	if err != nil {
		return nil, self.fail(ctx, PhaseRngStart, rng.ChainId, unavailable(rng.ChainId, err))
	}

	rngContracts, err := self.aggregator.ResolveRngContracts(ctx, rng, gasPrice)
	if err != nil {
		return nil, self.fail(ctx, PhaseRngStart, rng.ChainId, err)
	}

	rngCtx, err = self.aggregator.RngContext(ctx, rng, rngContracts, targets, gasPrice)
	if err != nil {
		return nil, self.fail(ctx, PhaseRngStart, rng.ChainId, err)
	}

	action := Action{
		Phase:           PhaseRngStart,
		ChainId:         rng.ChainId,
		To:              rngContracts.Helper,
		RewardRecipient: rng.RewardRecipient(),
		GasLimit:        self.Config.DrawAuction.RngStartGasLimit,
	}

	outcome = self.decideAndDispatch(ctx, rng, rngCtx.Snapshot(action.GasLimit, action), gasPrice)
	return
}

// Relay targets are independent, a failing one never stops the others
func (self *Controller) runRelays(ctx context.Context, targets []*RelayTarget, rngCtx *AuctionContext) (outcomes []Outcome) {
	outcomes = make([]Outcome, len(targets))

	pool := workerpool.New(max(1, self.Config.DrawAuction.RelayConcurrency))
	for i, target := range targets {
		i, target := i, target
		pool.Submit(func() {
			outcomes[i] = self.runRelaySafe(ctx, target, rngCtx)
			self.record(outcomes[i])
		})
	}
	pool.StopWait()

	return
}

func (self *Controller) runRelaySafe(ctx context.Context, target *RelayTarget, rngCtx *AuctionContext) (outcome Outcome) {
	defer func() {
		if p := recover(); p != nil {
			self.Log.WithField("chainId", target.ChainId).WithField("panic", p).Error("Panic while processing relay target")
			outcome = failed(PhaseRngRelay, target.ChainId, fmt.Errorf("%w: %v", ErrFatal, p))
		}
	}()

	if ctx.Err() != nil {
		self.monitor.Report.DrawAuction.Errors.TargetDeadlineExceeded.Inc()
		return skipped(PhaseRngRelay, target.ChainId, ReasonDeadlineExceeded)
	}

	return self.runRelay(ctx, target, rngCtx)
}

// Pass deadline is checked on ctx, the target's own timeout only bounds its work
func (self *Controller) runRelay(ctx context.Context, target *RelayTarget, rngCtx *AuctionContext) Outcome {
	if rngCtx == nil {
		return self.fail(ctx, PhaseRngRelay, target.ChainId, fmt.Errorf("%w: rng chain state unknown", ErrContextUnavailable))
	}

	targetCtx := ctx
	if self.Config.DrawAuction.TargetTimeout > 0 {
		var cancel context.CancelFunc
		targetCtx, cancel = context.WithTimeout(ctx, self.Config.DrawAuction.TargetTimeout)
		defer cancel()
	}

	gasPrice, err := self.suggestGasPrice(targetCtx, target)
	if err != nil {
		return self.fail(ctx, PhaseRngRelay, target.ChainId, unavailable(target.ChainId, err))
	}

	relayCtx, err := self.aggregator.RelayContext(targetCtx, target, rngCtx)
	if err != nil {
		return self.fail(ctx, PhaseRngRelay, target.ChainId, err)
	}

	action := Action{
		Phase:           PhaseRngRelay,
		ChainId:         target.ChainId,
		To:              target.Contracts.RngAuctionRelayer,
		RewardRecipient: target.RewardRecipient(),
		RngRelayAuction: target.Contracts.RngRelayAuction,
		GasLimit:        self.Config.DrawAuction.RngRelayGasLimit,
	}

	return self.decideAndDispatch(targetCtx, target, relayCtx.Snapshot(action.GasLimit, action), gasPrice)
}

func (self *Controller) decideAndDispatch(ctx context.Context, target *RelayTarget, snapshot Snapshot, gasPrice *big.Int) Outcome {
	phase := snapshot.Phase

	decision, err := self.evaluator.Evaluate(snapshot, target.Config.MinProfitThresholdUsd, gasPrice)
	if err != nil {
		if errors.Is(err, ErrFatal) {
			self.monitor.Report.DrawAuction.Errors.InvalidRewardFractions.Inc()
		}
		return failed(phase, target.ChainId, err)
	}

	if !decision.Act {
		outcome := skipped(phase, target.ChainId, decision.Reason)
		if decision.Reason == ReasonPriceUnavailable {
			outcome.Err = ErrPriceUnavailable
		}
		return outcome
	}

	handle, err := self.dispatcher.Dispatch(ctx, decision.Action, target.Signer, gasPrice, target.Config.UseFlashbots)
	if err != nil {
		// The transaction may have been broadcast already, never reported as a skip
		self.Log.WithError(err).WithField("chainId", target.ChainId).WithField("phase", phase).Error("Submission failed")
		return failed(phase, target.ChainId, err)
	}

	if handle.Private {
		self.monitor.Report.DrawAuction.State.PrivateSubmissions.Inc()
	}
	self.monitor.Report.DrawAuction.State.LastExpectedProfitUsd.Store(decision.ExpectedProfitUsd)

	return submitted(phase, target.ChainId, handle, decision.ExpectedProfitUsd)
}

// Read failures caused by the pass deadline are reported as skips
func (self *Controller) fail(ctx context.Context, phase Phase, chainId int64, err error) Outcome {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		self.monitor.Report.DrawAuction.Errors.TargetDeadlineExceeded.Inc()
		self.Log.WithError(err).WithField("chainId", chainId).WithField("phase", phase).Warn("Pass deadline exceeded, target abandoned")
		return skipped(phase, chainId, ReasonDeadlineExceeded)
	}

	self.Log.WithError(err).WithField("chainId", chainId).WithField("phase", phase).Error("Target failed")
	return failed(phase, chainId, err)
}

func (self *Controller) record(outcome Outcome) {
	report := self.monitor.Report.DrawAuction

	switch outcome.Status {
	case StatusSubmitted:
		report.State.LastSuccessfulSubmission.Store(time.Now().Unix())
		if outcome.Phase == PhaseRngStart {
			report.State.RngStartSubmitted.Inc()
		} else {
			report.State.RngRelaySubmitted.Inc()
		}
	case StatusSkipped:
		report.State.Skipped.Inc()
	case StatusFailed:
		if errors.Is(outcome.Err, ErrContextUnavailable) {
			report.Errors.ContextUnavailable.Inc()
		}
		if errors.Is(outcome.Err, ErrSubmissionFailed) {
			report.Errors.SubmissionFailures.Inc()
		}
	}
}
