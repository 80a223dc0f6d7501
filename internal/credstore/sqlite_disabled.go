//go:build !sqlite
// +build !sqlite

package credstore

import (
	"fmt"

	"kelasbot/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	_ = cfg
	_ = log
	return nil, fmt.Errorf("%w: sqlite driver requires the sqlite build tag", ErrDisabled)
}
