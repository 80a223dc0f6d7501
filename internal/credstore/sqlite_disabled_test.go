//go:build !sqlite
// +build !sqlite

package credstore

import (
	"errors"
	"path/filepath"
	"testing"

	"kelasbot/pkg/logx"
)

func TestSQLiteDriverDisabledWithoutTag(t *testing.T) {
	t.Parallel()
	_, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "session.db")}, logx.Nop())
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}
