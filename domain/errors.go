package domain

import "errors"

var (
	ErrTooManyThreads = errors.New("thread table is full")
	ErrPriorityRange  = errors.New("priority out of range")
	ErrNiceRange      = errors.New("nice out of range")
	ErrThreadNotFound = errors.New("thread not found")
)
