package schedule

import "errors"

// Custom scheduling engine errors
var (
	// ErrEmptyContent indicates an index build was attempted with no items
	ErrEmptyContent = errors.New("content list is empty")

	// ErrInvalidDuration indicates an item with a non-positive duration reached the builder
	ErrInvalidDuration = errors.New("item duration must be positive")
)

// IsEmptyContent checks if the error is an empty content error
func IsEmptyContent(err error) bool {
	return errors.Is(err, ErrEmptyContent)
}

// IsInvalidDuration checks if the error is an invalid duration error
func IsInvalidDuration(err error) bool {
	return errors.Is(err, ErrInvalidDuration)
}
