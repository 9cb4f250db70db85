package storage

import "errors"

var (
	ErrCartNotFound  = errors.New("cart not found")
	ErrCartExists    = errors.New("cart already exists")
	ErrInvalidData   = errors.New("invalid data")
	ErrStorageInit   = errors.New("storage initialization failed")
	ErrFileOperation = errors.New("file operation failed")
	ErrUnknownType   = errors.New("unknown storage type")
)
