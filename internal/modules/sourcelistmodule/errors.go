package sourcelistmodule

import (
	"errors"
)

// Sentinel errors for the source list contract
var (
	ErrBinNotFound     = errors.New("bin not found")
	ErrSourceNotFound  = errors.New("source not found")
	ErrDuplicateBin    = errors.New("bin name already exists")
	ErrDuplicateSource = errors.New("source already registered in bin")
	ErrEmptyBinName    = errors.New("bin name must not be empty")
	ErrNotInitialized  = errors.New("source list not initialized")
)
