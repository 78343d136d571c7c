package report

import (
	"go.uber.org/atomic"
)

type DrawAuctionErrors struct {
	SetupFailures          atomic.Uint64 `json:"setup_failures"`
	ContextUnavailable     atomic.Uint64 `json:"context_unavailable"`
	SubmissionFailures     atomic.Uint64 `json:"submission_failures"`
	TargetDeadlineExceeded atomic.Uint64 `json:"target_deadline_exceeded"`
	InvalidRewardFractions atomic.Uint64 `json:"invalid_reward_fractions"`
}

type DrawAuctionState struct {
	PassesStarted            atomic.Uint64  `json:"passes_started"`
	PassesFinished           atomic.Uint64  `json:"passes_finished"`
	LastPassTimestamp        atomic.Int64   `json:"last_pass_timestamp"`
	LastPassDurationMs       atomic.Int64   `json:"last_pass_duration_ms"`
	RelayTargets             atomic.Uint64  `json:"relay_targets"`
	RngStartSubmitted        atomic.Uint64  `json:"rng_start_submitted"`
	RngRelaySubmitted        atomic.Uint64  `json:"rng_relay_submitted"`
	PrivateSubmissions       atomic.Uint64  `json:"private_submissions"`
	Skipped                  atomic.Uint64  `json:"skipped"`
	LastExpectedProfitUsd    atomic.Float64 `json:"last_expected_profit_usd"`
	LastSuccessfulSubmission atomic.Int64   `json:"last_successful_submission_timestamp"`
}

type DrawAuctionReport struct {
	State  DrawAuctionState  `json:"state"`
	Errors DrawAuctionErrors `json:"errors"`
}
