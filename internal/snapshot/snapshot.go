// Package snapshot stores exported database images on local disk or in S3,
// optionally xz-compressed, and reads them back with digest verification.
package snapshot

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	sqlerrors "github.com/FocuswithJustin/sqlclient/core/errors"
	"github.com/FocuswithJustin/sqlclient/internal/logging"
	"github.com/FocuswithJustin/sqlclient/internal/validation"
)

// Options configures Write and Read.
type Options struct {
	// Compress xz-compresses the image on Write. Read detects compression
	// from the stored bytes and ignores this field.
	Compress bool
	// S3 configures access to s3:// targets.
	S3 S3Config
	// ExpectBLAKE3, when set, is the hex digest Read must find.
	ExpectBLAKE3 string
	// Database names the exported database in logs.
	Database string
	Logger   *slog.Logger

	// objects replaces the S3 client; set by tests.
	objects objectAPI
}

// Manifest describes a stored image.
type Manifest struct {
	Target     string `json:"target"`
	Size       int64  `json:"size"`        // uncompressed image bytes
	StoredSize int64  `json:"stored_size"` // bytes written to the target
	Compressed bool   `json:"compressed"`
	BLAKE3     string `json:"blake3"` // digest of the uncompressed image
}

// Digest returns the hex BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Write stores the database image data at target: a local path, a file://
// URL or an s3://bucket/key URL.
func Write(ctx context.Context, target string, data []byte, opts Options) (*Manifest, error) {
	t, err := validation.ParseTarget(target)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateImage(data); err != nil {
		return nil, err
	}

	stored := data
	if opts.Compress {
		if stored, err = compress(data); err != nil {
			return nil, err
		}
	}

	st, err := openStore(ctx, t, opts)
	if err != nil {
		return nil, err
	}
	if err := st.put(ctx, stored); err != nil {
		return nil, err
	}

	m := &Manifest{
		Target:     t.String(),
		Size:       int64(len(data)),
		StoredSize: int64(len(stored)),
		Compressed: opts.Compress,
		BLAKE3:     Digest(data),
	}
	logging.Export(ctx, logger(opts), opts.Database, len(data),
		"target", m.Target,
		"stored_size", m.StoredSize,
		"compressed", m.Compressed,
		"blake3", m.BLAKE3)
	return m, nil
}

// Read loads an image stored by Write, decompressing it when needed.
func Read(ctx context.Context, source string, opts Options) ([]byte, *Manifest, error) {
	t, err := validation.ParseTarget(source)
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(ctx, t, opts)
	if err != nil {
		return nil, nil, err
	}
	stored, err := st.get(ctx)
	if err != nil {
		return nil, nil, err
	}

	data := stored
	compressed := validation.DetectFormat(stored) == validation.FormatXZ
	if compressed {
		if data, err = decompress(stored); err != nil {
			return nil, nil, fmt.Errorf("decompress %s: %w", t, err)
		}
	}
	if err := validation.ValidateImage(data); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", t, err)
	}

	digest := Digest(data)
	if opts.ExpectBLAKE3 != "" && !strings.EqualFold(opts.ExpectBLAKE3, digest) {
		return nil, nil, fmt.Errorf("read %s: blake3 mismatch: expected %s, got %s", t, opts.ExpectBLAKE3, digest)
	}

	return data, &Manifest{
		Target:     t.String(),
		Size:       int64(len(data)),
		StoredSize: int64(len(stored)),
		Compressed: compressed,
		BLAKE3:     digest,
	}, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create xz writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish xz stream: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(stored []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(stored))
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(r, validation.MaxImageSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > validation.MaxImageSize {
		return nil, fmt.Errorf("decompressed image exceeds %d bytes", validation.MaxImageSize)
	}
	return data, nil
}

func logger(opts Options) *slog.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return logging.GetLogger()
}

// store moves whole images to and from one location.
type store interface {
	put(ctx context.Context, data []byte) error
	get(ctx context.Context) ([]byte, error)
}

func openStore(ctx context.Context, t validation.Target, opts Options) (store, error) {
	switch t.Scheme {
	case validation.SchemeLocal, validation.SchemeFile:
		return localStore{path: t.Path}, nil
	case validation.SchemeS3:
		objects := opts.objects
		if objects == nil {
			client, err := newS3Client(ctx, opts.S3)
			if err != nil {
				return nil, err
			}
			objects = client
		}
		return &s3Store{objects: objects, bucket: t.Bucket, key: t.Key}, nil
	}
	return nil, sqlerrors.NewUnsupported("snapshot target", string(t.Scheme))
}
