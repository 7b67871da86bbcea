package errors

import "github.com/pkg/errors"

var (
	// common errors
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrResponseTooLarge  = errors.New("server response exceeded size ceiling")

	// sync engine errors
	ErrAuthFailed   = errors.New("authentication rejected by server")
	ErrSelectFailed = errors.New("folder select rejected by server")
	ErrFetchFailed  = errors.New("fetch rejected by server")
	ErrMissingUID   = errors.New("fetch block has no uid")

	// account errors
	ErrAccountNotFound = errors.New("mail account not found")
)
