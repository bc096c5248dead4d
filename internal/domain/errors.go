package domain

import "errors"

// Error taxonomy. Stage rejections are values (ValidationOutcome), not
// errors; these sentinels cover the cases that are not plain rejections.
var (
	// ErrUnsupportedAssetClass is a configuration error, fatal at
	// scorer resolution time.
	ErrUnsupportedAssetClass = errors.New("unsupported asset class")

	// ErrCircuitOpen signals transient dependency unavailability. The
	// pipeline converts it into a stage rejection, never a crash.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrInvariantViolation marks a misconfiguration detected at load
	// time (e.g. per-trade >= per-campaign). Fatal at startup.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrCampaignTerminal is returned when a transition is attempted
	// on a COMPLETED or INVALIDATED campaign.
	ErrCampaignTerminal = errors.New("campaign is in a terminal state")
)
