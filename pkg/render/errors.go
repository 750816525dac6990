package render

import "errors"

var (
	// ErrNotInitialized is returned when a frame is submitted before Init.
	ErrNotInitialized = errors.New("render: pipeline not initialized")

	// ErrNoScene is returned when a frame is submitted with no scene set.
	ErrNoScene = errors.New("render: no scene attached to pipeline")

	// ErrBadDimensions is returned when Init is called with a non-positive
	// width or height.
	ErrBadDimensions = errors.New("render: framebuffer dimensions must be positive")
)
