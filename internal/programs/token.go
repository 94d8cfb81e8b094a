package programs

import (
	"encoding/binary"

	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/host"
	"github.com/veltrix-chain/corechain/internal/kerr"
)

const (
	tokenSpaceBalances uint32 = 0
	tokenSpaceSupply   uint32 = 1
)

var tokenSupplyKey = []byte("supply")

// TokenProgram is the native fungible-token system-program: mint, transfer,
// balance_of, total_supply, dispatched by the first call argument. Mint is
// gated behind the configured owner account's authority; transfer is gated
// behind the sending account's.
type TokenProgram struct {
	id    chain.Account
	owner chain.Account
}

// NewTokenProgram builds the token program registered under id, with mint
// authority held by owner.
func NewTokenProgram(id, owner chain.Account) *TokenProgram {
	return &TokenProgram{id: id, owner: owner}
}

func (p *TokenProgram) balances() uint32 { return tokenSpaceBalances }

func (p *TokenProgram) supply() uint32 { return tokenSpaceSupply }

func (p *TokenProgram) Run(h host.Host) (int32, error) {
	args := h.Arguments()
	if len(args) == 0 {
		return 1, nil
	}
	switch args[0] {
	case "authorize":
		// no delegated authorization logic: this program never acts as an
		// authority stand-in for another account.
		if err := h.Write(host.FdStdout, []byte{0}); err != nil {
			return 0, err
		}
		return 0, nil
	case "mint":
		return p.mint(h)
	case "transfer":
		return p.transfer(h)
	case "balance_of":
		return p.balanceOf(h)
	case "total_supply":
		return p.totalSupply(h)
	default:
		return 1, nil
	}
}

func readStdinAll(h host.Host) []byte {
	buf := make([]byte, 0, 128)
	chunk := make([]byte, 128)
	for {
		n, err := h.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if n == 0 || err != nil {
			break
		}
	}
	return buf
}

func getUint64(h host.Host, spaceID uint32, key []byte) uint64 {
	v, ok := h.GetObject(spaceID, key)
	if !ok || len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func putUint64(h host.Host, spaceID uint32, key []byte, value uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, value)
	return h.PutObject(spaceID, key, buf)
}

// mint's payload is to(33 bytes) || amount(8 bytes, big-endian).
func (p *TokenProgram) mint(h host.Host) (int32, error) {
	ok, err := h.CheckAuthority(p.owner)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, kerr.Reversion("unauthorized", "mint requires token owner authority")
	}
	payload := readStdinAll(h)
	if len(payload) != 41 {
		return 1, nil
	}
	to := chain.Account{}
	copy(to[:], payload[:33])
	amount := binary.BigEndian.Uint64(payload[33:41])

	balance := getUint64(h, p.balances(), to[:])
	if err := putUint64(h, p.balances(), to[:], balance+amount); err != nil {
		return 0, err
	}
	supply := getUint64(h, p.supply(), tokenSupplyKey)
	if err := putUint64(h, p.supply(), tokenSupplyKey, supply+amount); err != nil {
		return 0, err
	}
	return 0, nil
}

// transfer's payload is from(33) || to(33) || amount(8).
func (p *TokenProgram) transfer(h host.Host) (int32, error) {
	payload := readStdinAll(h)
	if len(payload) != 74 {
		return 1, nil
	}
	from := chain.Account{}
	copy(from[:], payload[:33])
	to := chain.Account{}
	copy(to[:], payload[33:66])
	amount := binary.BigEndian.Uint64(payload[66:74])

	ok, err := h.CheckAuthority(from)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, kerr.Reversion("unauthorized", "transfer requires sender authority")
	}

	fromBalance := getUint64(h, p.balances(), from[:])
	if fromBalance < amount {
		return 0, kerr.Reversion("insufficient-balance", "token transfer exceeds balance")
	}
	if err := putUint64(h, p.balances(), from[:], fromBalance-amount); err != nil {
		return 0, err
	}
	toBalance := getUint64(h, p.balances(), to[:])
	if err := putUint64(h, p.balances(), to[:], toBalance+amount); err != nil {
		return 0, err
	}
	return 0, nil
}

// balance_of's payload is account(33); writes the 8-byte balance to stdout.
func (p *TokenProgram) balanceOf(h host.Host) (int32, error) {
	payload := readStdinAll(h)
	if len(payload) != 33 {
		return 1, nil
	}
	balance := getUint64(h, p.balances(), payload)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, balance)
	if err := h.Write(host.FdStdout, buf); err != nil {
		return 0, err
	}
	return 0, nil
}

func (p *TokenProgram) totalSupply(h host.Host) (int32, error) {
	supply := getUint64(h, p.supply(), tokenSupplyKey)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, supply)
	if err := h.Write(host.FdStdout, buf); err != nil {
		return 0, err
	}
	return 0, nil
}
