package channel

import "errors"

// Custom channel service errors
var (
	// ErrDuplicateChannelName indicates a channel with the same name already exists
	ErrDuplicateChannelName = errors.New("channel name already exists")

	// ErrDuplicateChannelNumber indicates a channel with the same number already exists
	ErrDuplicateChannelNumber = errors.New("channel number already exists")

	// ErrInvalidMode indicates an unknown playback mode
	ErrInvalidMode = errors.New("playback mode must be sequential or shuffle")

	// ErrInvalidTimezone indicates the timezone name does not resolve to an IANA location
	ErrInvalidTimezone = errors.New("invalid timezone")

	// ErrChannelNotFound indicates the requested channel does not exist
	ErrChannelNotFound = errors.New("channel not found")

	// ErrMediaNotFound indicates the requested media does not exist
	ErrMediaNotFound = errors.New("media not found")

	// ErrLineupEntryNotFound indicates the requested lineup entry does not exist
	ErrLineupEntryNotFound = errors.New("lineup entry not found")

	// ErrInvalidPosition indicates the position is negative
	ErrInvalidPosition = errors.New("position must be non-negative")

	// ErrEmptyLineup indicates the lineup has no entries
	ErrEmptyLineup = errors.New("lineup is empty")
)

// IsDuplicateName checks if the error is a duplicate channel name error
func IsDuplicateName(err error) bool {
	return errors.Is(err, ErrDuplicateChannelName)
}

// IsDuplicateNumber checks if the error is a duplicate channel number error
func IsDuplicateNumber(err error) bool {
	return errors.Is(err, ErrDuplicateChannelNumber)
}

// IsInvalidMode checks if the error is an invalid playback mode error
func IsInvalidMode(err error) bool {
	return errors.Is(err, ErrInvalidMode)
}

// IsInvalidTimezone checks if the error is an invalid timezone error
func IsInvalidTimezone(err error) bool {
	return errors.Is(err, ErrInvalidTimezone)
}

// IsChannelNotFound checks if the error is a channel not found error
func IsChannelNotFound(err error) bool {
	return errors.Is(err, ErrChannelNotFound)
}

// IsMediaNotFound checks if the error is a media not found error
func IsMediaNotFound(err error) bool {
	return errors.Is(err, ErrMediaNotFound)
}

// IsLineupEntryNotFound checks if the error is a lineup entry not found error
func IsLineupEntryNotFound(err error) bool {
	return errors.Is(err, ErrLineupEntryNotFound)
}

// IsInvalidPosition checks if the error is an invalid position error
func IsInvalidPosition(err error) bool {
	return errors.Is(err, ErrInvalidPosition)
}

// IsEmptyLineup checks if the error is an empty lineup error
func IsEmptyLineup(err error) bool {
	return errors.Is(err, ErrEmptyLineup)
}
