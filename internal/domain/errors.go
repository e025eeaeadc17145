package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrStateConflict = errors.New("auction state conflict")
	ErrContention    = errors.New("auction is busy, retry later")
	ErrCancelled     = errors.New("operation cancelled")
	ErrAlreadyExists = errors.New("already exists")

	// ErrVersionConflict is raised by stores when a versioned write finds the row changed.
	ErrVersionConflict = errors.New("version conflict")
)

type BidTooLowError struct {
	Amount  int64
	Minimum int64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid amount %d is below the minimum %d", e.Amount, e.Minimum)
}

func (e *BidTooLowError) Unwrap() error {
	return ErrValidation
}

type AuctionNotOpenError struct {
	AuctionID int64
	Status    AuctionStatus
}

func (e *AuctionNotOpenError) Error() string {
	return fmt.Sprintf("cannot place bid: auction %d is %s", e.AuctionID, e.Status)
}

func (e *AuctionNotOpenError) Unwrap() error {
	return ErrStateConflict
}
