package errors

import (
	"errors"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrNilUser            = errors.New("user is nil")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")

	// ErrAssetNotFound also stands for "exists, but the caller may not touch it"
	// so that ownership failures do not reveal that the asset exists.
	ErrAssetNotFound      = errors.New("asset not found")
	ErrNilAsset           = errors.New("asset is nil")
	ErrInvalidAssetStatus = errors.New("invalid asset status")

	ErrRequestNotFound   = errors.New("request not found")
	ErrNilRequest        = errors.New("request is nil")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrRequestNotPending = errors.New("request is no longer pending")
	ErrForbidden         = errors.New("unauthorized")
)
