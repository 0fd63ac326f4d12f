package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ryantate/typingpool-sub000/internal/shared"
)

func testStorageConfig() shared.StorageConfig {
	return shared.StorageConfig{
		Backend: "s3",
		URL:     "https://files.example.com/tp/",
		S3:      shared.S3Config{Bucket: "bucket", Prefix: "tp"},
		SFTP:    shared.SFTPConfig{Path: "/srv/www/tp"},
	}
}

func TestLocation(t *testing.T) {
	loc, err := NewLocation("https://files.example.com/tp/")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	t.Run("Host and BasePath", func(t *testing.T) {
		if loc.Host() != "files.example.com" {
			t.Errorf("unexpected host %s", loc.Host())
		}
		if loc.BasePath() != "/tp" {
			t.Errorf("expected trailing slash trimmed, got %s", loc.BasePath())
		}
	})

	t.Run("Round Trip", func(t *testing.T) {
		for _, name := range []string{"chunk.mp3", "a b.mp3", "clip.7f3a.html"} {
			u := loc.URLForName(name)
			got, err := loc.BasenameForURL(u)
			if err != nil {
				t.Fatalf("BasenameForURL(%s): %v", u, err)
			}
			if got != name {
				t.Errorf("expected %q, got %q", name, got)
			}
		}
	})

	t.Run("Mismatches", func(t *testing.T) {
		tests := []struct {
			name string
			url  string
		}{
			{"other host", "https://elsewhere.example.com/tp/chunk.mp3"},
			{"other path", "https://files.example.com/other/chunk.mp3"},
			{"nested", "https://files.example.com/tp/sub/chunk.mp3"},
			{"base only", "https://files.example.com/tp/"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := loc.BasenameForURL(tt.url); !errors.Is(err, shared.ErrConfigMismatch) {
					t.Errorf("expected ErrConfigMismatch, got %v", err)
				}
			})
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		if _, err := loc.BasenameForURL("not a url"); !errors.Is(err, shared.ErrMalformedReference) {
			t.Errorf("expected ErrMalformedReference, got %v", err)
		}
	})

	t.Run("Invalid Base", func(t *testing.T) {
		if _, err := NewLocation("/no/host"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

type mockS3 struct {
	puts    []*s3.PutObjectInput
	deletes []string
	failKey string
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if *in.Key == m.failKey {
		return nil, errors.New("access denied")
	}
	m.puts = append(m.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.deletes = append(m.deletes, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Storage(t *testing.T) {
	ctx := context.Background()

	t.Run("Put", func(t *testing.T) {
		client := &mockS3{}
		st, err := NewS3StorageWithClient(client, testStorageConfig())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		urls, err := st.Put(ctx, []Upload{
			{Name: "a.mp3", Body: strings.NewReader("a"), ContentType: "audio/mpeg"},
			{Name: "b.mp3", Body: strings.NewReader("b")},
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(urls) != 2 || urls[0] != "https://files.example.com/tp/a.mp3" {
			t.Errorf("unexpected urls %v", urls)
		}
		if *client.puts[0].Key != "tp/a.mp3" || *client.puts[0].Bucket != "bucket" {
			t.Errorf("unexpected object %s/%s", *client.puts[0].Bucket, *client.puts[0].Key)
		}
		if client.puts[0].ACL != types.ObjectCannedACLPublicRead {
			t.Errorf("expected public-read ACL, got %s", client.puts[0].ACL)
		}
		if client.puts[1].ContentType != nil {
			t.Error("expected no content type when none given")
		}
	})

	t.Run("Put Stops At First Failure", func(t *testing.T) {
		client := &mockS3{failKey: "tp/b.mp3"}
		st, _ := NewS3StorageWithClient(client, testStorageConfig())

		urls, err := st.Put(ctx, []Upload{
			{Name: "a.mp3", Body: strings.NewReader("a")},
			{Name: "b.mp3", Body: strings.NewReader("b")},
			{Name: "c.mp3", Body: strings.NewReader("c")},
		})
		if !errors.Is(err, shared.ErrStorage) {
			t.Fatalf("expected ErrStorage, got %v", err)
		}
		if len(urls) != 1 || len(client.puts) != 1 {
			t.Errorf("expected only the first upload to succeed, got urls=%v puts=%d", urls, len(client.puts))
		}
	})

	t.Run("Remove", func(t *testing.T) {
		client := &mockS3{}
		st, _ := NewS3StorageWithClient(client, testStorageConfig())

		if err := st.Remove(ctx, []string{"a.mp3", "b.html"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(client.deletes) != 2 || client.deletes[1] != "tp/b.html" {
			t.Errorf("unexpected deletes %v", client.deletes)
		}
	})
}

type memFile struct {
	bytes.Buffer
	fs   *memFS
	name string
}

func (f *memFile) Close() error {
	f.fs.files[f.name] = f.Bytes()
	return nil
}

type memFS struct {
	files  map[string][]byte
	modes  map[string]os.FileMode
	closed int
}

func newMemFS() *memFS {
	return &memFS{files: map[string][]byte{}, modes: map[string]os.FileMode{}}
}

func (m *memFS) Create(name string) (io.WriteCloser, error) {
	return &memFile{fs: m, name: name}, nil
}

func (m *memFS) Chmod(name string, mode os.FileMode) error {
	m.modes[name] = mode
	return nil
}

func (m *memFS) Remove(name string) error {
	if _, ok := m.files[name]; !ok {
		return os.ErrNotExist
	}
	delete(m.files, name)
	return nil
}

func (m *memFS) Close() error {
	m.closed++
	return nil
}

func TestSFTPStorage(t *testing.T) {
	ctx := context.Background()
	fs := newMemFS()
	st, err := NewSFTPStorageWithDialer(testStorageConfig(), func(context.Context) (RemoteFS, error) { return fs, nil })
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	t.Run("Put", func(t *testing.T) {
		urls, err := st.Put(ctx, []Upload{{Name: "a.mp3", Body: strings.NewReader("audio")}})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if urls[0] != "https://files.example.com/tp/a.mp3" {
			t.Errorf("unexpected url %s", urls[0])
		}
		if string(fs.files["/srv/www/tp/a.mp3"]) != "audio" {
			t.Errorf("unexpected remote content %q", fs.files["/srv/www/tp/a.mp3"])
		}
		if fs.modes["/srv/www/tp/a.mp3"] != 0o644 {
			t.Errorf("expected world readable file, got %v", fs.modes["/srv/www/tp/a.mp3"])
		}
		if fs.closed != 1 {
			t.Errorf("expected session closed once, got %d", fs.closed)
		}
	})

	t.Run("Remove Ignores Missing", func(t *testing.T) {
		if err := st.Remove(ctx, []string{"a.mp3", "never-there.mp3"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, ok := fs.files["/srv/www/tp/a.mp3"]; ok {
			t.Error("expected file removed")
		}
	})

	t.Run("Dial Failure", func(t *testing.T) {
		broken, _ := NewSFTPStorageWithDialer(testStorageConfig(), func(context.Context) (RemoteFS, error) {
			return nil, errors.New("no route to host")
		})
		if _, err := broken.Put(ctx, []Upload{{Name: "x", Body: strings.NewReader("")}}); !errors.Is(err, shared.ErrStorage) {
			t.Errorf("expected ErrStorage, got %v", err)
		}
	})
}
