package controller

import (
	"encoding/binary"

	"github.com/veltrix-chain/corechain/internal/backend"
	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/statedelta"
	"github.com/veltrix-chain/corechain/internal/statenode"
)

func newGenesisBackend() backend.Backend {
	return backend.NewMemoryBackend()
}

func readNoncePublic(d *statedelta.Delta, account chain.Account) uint64 {
	space := statenode.SystemSpace(statenode.SpaceTransactionNonce)
	v, ok := d.Get(space.Key(account[:]))
	if !ok || len(v) != 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(v)
}

func readAccountResourcesPublic(d *statedelta.Delta, account chain.Account, fallback uint64) uint64 {
	space := statenode.SystemSpace(statenode.SpaceAccountResources)
	v, ok := d.Get(space.Key(account[:]))
	if !ok || len(v) != 8 {
		return fallback
	}
	return binary.LittleEndian.Uint64(v)
}
