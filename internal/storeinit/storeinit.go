// Package storeinit selects and opens a DocumentStore backend from
// configuration, shared by every command that needs one.
package storeinit

import (
	"context"

	"github.com/desperadomar/bluelatex/internal/config"
	"github.com/desperadomar/bluelatex/internal/store"
)

// Open returns the configured store.Store and a closer to release it.
func Open(cfg config.StoreConfig) (store.Store, func(), error) {
	switch cfg.Backend {
	case "bolt":
		s, err := store.OpenBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "postgres":
		s, err := store.OpenPostgresStore(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return store.NewMemStore(), func() {}, nil
	}
}
