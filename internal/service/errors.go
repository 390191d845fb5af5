package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("username or email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrDatasetNotFound    = errors.New("data not found")
	ErrInvalidDataType    = errors.New("invalid data type")
)
