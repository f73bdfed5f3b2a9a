// Package validation checks user-supplied paths and snapshot targets, and
// identifies database images by their magic bytes.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Security limits to prevent resource exhaustion (CWE-400).
const (
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
	// MaxImageSize is the largest database image a snapshot may hold (4 GiB).
	MaxImageSize int64 = 4 << 30
)

// Common validation errors.
var (
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrInvalidTarget    = errors.New("invalid snapshot target")
)

// ValidatePath checks a local path for length limits and characters that
// have no business in a file name.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}

	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}

	// Null bytes truncate paths in C APIs, SQLite's included.
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}

	return nil
}

// Scheme is the kind of location a snapshot target names.
type Scheme string

const (
	SchemeLocal Scheme = "local" // plain path
	SchemeFile  Scheme = "file"  // file:// URL
	SchemeS3    Scheme = "s3"    // s3://bucket/key
)

// Target is a parsed snapshot location.
type Target struct {
	Scheme Scheme
	Path   string // local and file targets
	Bucket string // s3 targets
	Key    string // s3 targets
}

func (t Target) String() string {
	switch t.Scheme {
	case SchemeS3:
		return "s3://" + t.Bucket + "/" + t.Key
	case SchemeFile:
		return "file://" + t.Path
	}
	return t.Path
}

// ParseTarget parses a local path, file:// URL or s3://bucket/key URL.
func ParseTarget(target string) (Target, error) {
	lower := strings.ToLower(target)
	switch {
	case strings.HasPrefix(lower, "s3://"):
		bucket, key, ok := strings.Cut(target[len("s3://"):], "/")
		if !ok || bucket == "" || key == "" || strings.HasSuffix(key, "/") {
			return Target{}, fmt.Errorf("%w: %q must look like s3://bucket/key", ErrInvalidTarget, target)
		}
		return Target{Scheme: SchemeS3, Bucket: bucket, Key: key}, nil

	case strings.HasPrefix(lower, "file://"):
		path := target[len("file://"):]
		if err := ValidatePath(path); err != nil {
			return Target{}, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
		}
		return Target{Scheme: SchemeFile, Path: path}, nil

	case strings.Contains(lower, "://"):
		return Target{}, fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidTarget, target)
	}

	if err := ValidatePath(target); err != nil {
		return Target{}, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	return Target{Scheme: SchemeLocal, Path: target}, nil
}

// ValidateTarget reports whether target is a usable snapshot location.
func ValidateTarget(target string) error {
	_, err := ParseTarget(target)
	return err
}

// ImageFormat identifies the encoding of a stored database image.
type ImageFormat string

const (
	FormatSQLite  ImageFormat = "sqlite"
	FormatXZ      ImageFormat = "xz"
	FormatUnknown ImageFormat = "unknown"
)

var magicBytes = []struct {
	format ImageFormat
	magic  []byte
}{
	{FormatXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{FormatSQLite, []byte("SQLite format 3\x00")},
}

// DetectFormat identifies an image from its leading bytes.
func DetectFormat(header []byte) ImageFormat {
	for _, m := range magicBytes {
		if bytes.HasPrefix(header, m.magic) {
			return m.format
		}
	}
	return FormatUnknown
}

// ValidateImage checks that data is an uncompressed SQLite database image.
func ValidateImage(data []byte) error {
	if int64(len(data)) > MaxImageSize {
		return fmt.Errorf("database image of %d bytes exceeds limit of %d", len(data), MaxImageSize)
	}
	if f := DetectFormat(data); f != FormatSQLite {
		return fmt.Errorf("not an SQLite database image (detected %s)", f)
	}
	return nil
}
