package kvstore

import (
	"fmt"

	"github.com/eosnow-bet/dice/pkg/infra"
)

type StoreType string

const (
	StoreTypeBadger StoreType = "badger"
	StoreTypeMemory StoreType = "memory"
)

type Options struct {
	Type      StoreType
	Directory string
	Prefix    string
}

// New constructs an infra.KVStore from options.
func New(opts Options) (infra.KVStore, error) {
	switch opts.Type {
	case StoreTypeBadger:
		return NewBadgerStore(opts.Directory, opts.Prefix, infra.JSON)
	case StoreTypeMemory:
		return NewMemoryStore(infra.JSON), nil
	default:
		return nil, fmt.Errorf("unsupported kvstore type: %s", opts.Type)
	}
}
