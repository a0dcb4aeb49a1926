package database

import "errors"

// Set of error variables for decoding and ledger rules.
var (
	ErrUnknownOperationLayout = errors.New("unknown operation layout")
	ErrAmountOverflow         = errors.New("amount overflows a signed balance")
	ErrDuplicateEntity        = errors.New("entity already exists")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrNegativeBalance        = errors.New("negative balance after replay")
)
