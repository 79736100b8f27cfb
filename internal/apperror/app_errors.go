package apperror

import "errors"

var (
	ErrMatchFull       = errors.New("match is full")
	ErrMatchReserved   = errors.New("match is reserved for matched players")
	ErrMatchNotFound   = errors.New("match not found")
	ErrStatsNotFound   = errors.New("player stats not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrQueueOverflow   = errors.New("match event queue is full")
)
