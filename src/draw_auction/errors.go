package draw_auction

import "errors"

var (
	// Broken deployment: bad config, unreachable rpc or signer. Aborts the whole run
	ErrSetup = errors.New("setup error")

	// Batched read failed, the target is skipped in this pass
	ErrContextUnavailable = errors.New("context unavailable")

	// No usable price, decisions skip instead of failing
	ErrPriceUnavailable = errors.New("price unavailable")

	// Network or signing failure during submission. Never retried within a pass
	ErrSubmissionFailed = errors.New("submission failed")

	// Internal invariant violated, e.g. reward fraction outside [0, 1]
	ErrFatal = errors.New("fatal error")
)
