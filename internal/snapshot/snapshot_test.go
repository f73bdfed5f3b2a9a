package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	sqlerrors "github.com/FocuswithJustin/sqlclient/core/errors"
	"github.com/FocuswithJustin/sqlclient/core/sqlite"
	"github.com/FocuswithJustin/sqlclient/internal/validation"
)

// fakeImage looks like a database image to the format checks.
func fakeImage(size int) []byte {
	data := append([]byte("SQLite format 3\x00"), bytes.Repeat([]byte("page"), size/4)...)
	return data
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestDigest(t *testing.T) {
	// BLAKE3 of the empty input.
	require.Equal(t, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262", Digest(nil))
	require.NotEqual(t, Digest([]byte("a")), Digest([]byte("b")))
}

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	data := fakeImage(64 << 10)

	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			target := filepath.Join(t.TempDir(), "nested", "db.sqlite")
			m, err := Write(ctx, target, data, Options{Compress: compress})
			require.NoError(t, err)
			require.Equal(t, target, m.Target)
			require.Equal(t, int64(len(data)), m.Size)
			require.Equal(t, compress, m.Compressed)
			require.Equal(t, Digest(data), m.BLAKE3)

			stored, err := os.ReadFile(target)
			require.NoError(t, err)
			require.Equal(t, int64(len(stored)), m.StoredSize)
			if compress {
				require.Equal(t, validation.FormatXZ, validation.DetectFormat(stored))
				require.Less(t, m.StoredSize, m.Size)
			} else {
				require.Equal(t, data, stored)
			}

			got, rm, err := Read(ctx, target, Options{ExpectBLAKE3: m.BLAKE3})
			require.NoError(t, err)
			require.Equal(t, data, got)
			require.Equal(t, m, rm)
		})
	}
}

func TestFileURLTarget(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db.sqlite.xz")
	data := fakeImage(128)

	m, err := Write(ctx, "file://"+path, data, Options{Compress: true})
	require.NoError(t, err)
	require.Equal(t, "file://"+path, m.Target)

	got, _, err := Read(ctx, path, Options{})
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestS3RoundTrip(t *testing.T) {
	ctx := context.Background()
	objects := newFakeObjects()
	opts := Options{Compress: true, objects: objects}
	data := fakeImage(4096)

	m, err := Write(ctx, "s3://backups/daily/db.sqlite.xz", data, opts)
	require.NoError(t, err)
	require.Equal(t, "s3://backups/daily/db.sqlite.xz", m.Target)
	require.Contains(t, objects.objects, "backups/daily/db.sqlite.xz")

	got, rm, err := Read(ctx, "s3://backups/daily/db.sqlite.xz", Options{objects: objects})
	require.NoError(t, err)
	require.Equal(t, data, got)
	require.True(t, rm.Compressed)

	_, _, err = Read(ctx, "s3://backups/missing", Options{objects: objects})
	require.ErrorContains(t, err, "s3://backups/missing")

	objects.putErr = errors.New("AccessDenied")
	_, err = Write(ctx, "s3://backups/x", data, Options{objects: objects})
	require.ErrorContains(t, err, "AccessDenied")
}

func TestDigestMismatch(t *testing.T) {
	ctx := context.Background()
	target := filepath.Join(t.TempDir(), "db.sqlite")
	_, err := Write(ctx, target, fakeImage(32), Options{})
	require.NoError(t, err)

	_, _, err = Read(ctx, target, Options{ExpectBLAKE3: Digest([]byte("other"))})
	require.ErrorContains(t, err, "blake3 mismatch")
}

func TestRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := Write(ctx, filepath.Join(dir, "x"), []byte("not a database"), Options{})
	require.ErrorContains(t, err, "not an SQLite database image")

	_, err = Write(ctx, "ftp://host/x", fakeImage(8), Options{})
	require.ErrorIs(t, err, validation.ErrInvalidTarget)

	garbage := filepath.Join(dir, "garbage")
	require.NoError(t, os.WriteFile(garbage, []byte("garbage"), 0o644))
	_, _, err = Read(ctx, garbage, Options{})
	require.ErrorContains(t, err, "not an SQLite database image")

	_, _, err = Read(ctx, filepath.Join(dir, "missing"), Options{})
	var ioErr *sqlerrors.IOError
	require.ErrorAs(t, err, &ioErr)
	require.Equal(t, "stat", ioErr.Operation)
}

func TestFailedRenameLeavesNoFile(t *testing.T) {
	orig := osRename
	osRename = func(string, string) error { return errors.New("rename failed") }
	defer func() { osRename = orig }()

	dir := t.TempDir()
	target := filepath.Join(dir, "db.sqlite")
	_, err := Write(context.Background(), target, fakeImage(32), Options{})
	var ioErr *sqlerrors.IOError
	require.ErrorAs(t, err, &ioErr)
	require.Equal(t, "rename", ioErr.Operation)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "temp file must be removed")
}

func TestExportedDatabaseRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.OpenMemory(ctx, "snap", sqlite.Options{})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Execute(ctx, "CREATE TABLE t (v text)", nil)
	require.NoError(t, err)
	_, err = db.Execute(ctx, "INSERT INTO t (v) VALUES ($v)", map[string]any{"v": "hello"})
	require.NoError(t, err)
	image, err := db.Export(ctx)
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "snap.sqlite.xz")
	_, err = Write(ctx, target, image, Options{Compress: true})
	require.NoError(t, err)
	data, _, err := Read(ctx, target, Options{})
	require.NoError(t, err)

	restored, err := sqlite.OpenMemory(ctx, "restored", sqlite.Options{InitialData: data})
	require.NoError(t, err)
	defer restored.Close()
	rows, err := restored.Execute(ctx, "SELECT v FROM t", nil)
	require.NoError(t, err)
	require.Equal(t, "hello", rows[0]["v"])
}
