package broadcast

import "errors"

// Custom broadcast session errors
var (
	// ErrNotLoaded indicates a query was issued against an unloaded session
	ErrNotLoaded = errors.New("no channel loaded")

	// ErrSwitchInProgress indicates a channel switch was requested while one is already in flight
	ErrSwitchInProgress = errors.New("channel switch already in progress")

	// ErrGuardTripped indicates the playback failure guard has tripped and auto-skip is suspended
	ErrGuardTripped = errors.New("playback failure guard tripped")

	// ErrNoChannel indicates the tuner has no channel tuned
	ErrNoChannel = errors.New("no channel tuned")
)

// IsNotLoaded checks if the error is a not loaded error
func IsNotLoaded(err error) bool {
	return errors.Is(err, ErrNotLoaded)
}

// IsSwitchInProgress checks if the error is a switch in progress error
func IsSwitchInProgress(err error) bool {
	return errors.Is(err, ErrSwitchInProgress)
}

// IsGuardTripped checks if the error is a guard tripped error
func IsGuardTripped(err error) bool {
	return errors.Is(err, ErrGuardTripped)
}

// IsNoChannel checks if the error is a no channel error
func IsNoChannel(err error) bool {
	return errors.Is(err, ErrNoChannel)
}
