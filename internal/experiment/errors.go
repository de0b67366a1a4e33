package experiment

import (
	"errors"

	"github.com/ignite/newsletter-engine/internal/stats"
)

// Sentinel errors for the experiment registry.
var (
	ErrNotFound             = errors.New("experiment not found")
	ErrInvalidConfiguration = errors.New("invalid experiment configuration")
	ErrAlreadyExists        = errors.New("experiment already exists")
	ErrInsufficientData     = stats.ErrInsufficientData
)
