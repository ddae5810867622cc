package spacedrep

import "errors"

// Sentinel errors. All of them describe caller or configuration bugs, so
// retrying the same call never helps. Match with errors.Is.
var (
	ErrInvalidState  = errors.New("spacedrep: invalid memory state")
	ErrInvalidRating = errors.New("spacedrep: invalid rating")
	ErrConfig        = errors.New("spacedrep: invalid configuration")
	ErrItemMismatch  = errors.New("spacedrep: review log belongs to another item")
)
