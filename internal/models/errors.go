package models

import "errors"

// Backend errors reported for vault operations.
var (
	ErrVaultNotFound  = errors.New("vault not found")
	ErrVaultExists    = errors.New("vault already exists")
	ErrWrongPassword  = errors.New("invalid vault password")
	ErrMetaNotSet     = errors.New("vault metadata not set")
	ErrInvalidAddress = errors.New("invalid account address")
	ErrInvalidName    = errors.New("invalid vault name")
)
