package database

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrProjectNotFound   = fmt.Errorf("project %w", ErrNotFound)
	ErrPipelineNotFound  = fmt.Errorf("pipeline %w", ErrNotFound)
	ErrSequenceNotFound  = fmt.Errorf("sequence %w", ErrNotFound)
	ErrFrameNotFound     = fmt.Errorf("frame %w", ErrNotFound)
	ErrInvalidAttributes = errors.New("invalid frame attributes")
)
