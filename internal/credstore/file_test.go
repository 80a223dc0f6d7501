package credstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"kelasbot/pkg/logx"
)

func TestFileStoreFirstRun(t *testing.T) {
	t.Parallel()
	s, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "session.bin")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer s.Close()

	blob, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if blob != nil {
		t.Fatalf("first run Load = %v, want nil", blob)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "session.bin")
	s, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer s.Close()

	want := []byte("opaque-session-material")
	if err := s.Save(context.Background(), want); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("Load = %q, want %q", got, want)
	}

	// Reopen: the blob must survive the store instance.
	s2, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s2.Close()
	got, err = s2.Load(context.Background())
	if err != nil {
		t.Fatalf("Load after reopen error: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("Load after reopen = %q, want %q", got, want)
	}
}

func TestFileStoreOverwrite(t *testing.T) {
	t.Parallel()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "session.bin")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Save(ctx, []byte("v1")); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := s.Save(ctx, []byte("v2")); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if string(got) != "v2" {
		t.Fatalf("Load = %q, want v2", got)
	}
}

func TestFileStorePermissions(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "session.bin")
	s, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer s.Close()

	if err := s.Save(context.Background(), []byte("secret")); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat error: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("file mode = %o, want 600", perm)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
