package models

import "fmt"

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrInvalidMetadata ErrorType = iota
	ErrArchive
	ErrFileOp
	ErrUnsupportedTarget
	ErrSigning
	ErrInvalidConfig
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrInvalidMetadata:
		return "InvalidMetadata"
	case ErrArchive:
		return "Archive"
	case ErrFileOp:
		return "FileOp"
	case ErrUnsupportedTarget:
		return "UnsupportedTarget"
	case ErrSigning:
		return "Signing"
	case ErrInvalidConfig:
		return "InvalidConfig"
	default:
		return "Unknown"
	}
}

// BuildError represents an error during package assembly
type BuildError struct {
	Type    ErrorType
	Package string
	Err     error
}

// Error implements the error interface
func (e *BuildError) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Package, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Type, e.Err)
}

// Unwrap returns the wrapped error
func (e *BuildError) Unwrap() error {
	return e.Err
}

// NewBuildError wraps err with a category and the package it concerns.
func NewBuildError(t ErrorType, pkg string, err error) *BuildError {
	return &BuildError{Type: t, Package: pkg, Err: err}
}
