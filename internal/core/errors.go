package core

import "errors"

var (
	// ErrInvalidTaskCount is returned by Init when the task slice is empty
	// or exceeds the configured/compile-time limit.
	ErrInvalidTaskCount = errors.New("ptl: invalid task count")
	// ErrNilEntry is returned by Init when a task's Entry function is nil.
	ErrNilEntry = errors.New("ptl: task entry function is nil")
	// ErrAlreadyInitialized is returned by a second call to Init.
	ErrAlreadyInitialized = errors.New("ptl: already initialized")
	// ErrNotInitialized is returned by Start when Init has not succeeded.
	ErrNotInitialized = errors.New("ptl: not initialized")
	// ErrUnknownTask is returned by TaskStats for an index outside the
	// registry.
	ErrUnknownTask = errors.New("ptl: unknown task")
)
