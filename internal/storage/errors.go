package storage

import "errors"

// Image storage error types
var (
	ErrInvalidPath   = errors.New("image path outside upload directory")
	ErrImageNotFound = errors.New("image not found")
	ErrNotAnImage    = errors.New("file is not a decodable image")
)
