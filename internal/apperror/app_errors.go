package apperror

import "errors"

var (
	ErrMatchNotFound      = errors.New("match not found")
	ErrUnknownParticipant = errors.New("participant is not part of the match")
	ErrSameParticipant    = errors.New("match needs two distinct participants")
	ErrInvalidGridSize    = errors.New("grid size must be positive")
	ErrGridSizeTooLarge   = errors.New("grid size too large")
	ErrCellOccupied       = errors.New("cell is already occupied")
	ErrCellOutOfRange     = errors.New("cell is out of range")
)
