// Package meter implements the three-dimensional resource budget (disk
// storage, network bandwidth, compute bandwidth) and the per-payer session
// that routes consumption through a credit balance.
package meter

import (
	"sync"

	"github.com/google/uuid"

	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/kerr"
)

// Dimension indexes the three metered resources.
type Dimension int

const (
	DimensionDisk Dimension = iota
	DimensionNetwork
	DimensionCompute
	dimensionCount
)

// Limits caps each dimension for one execution.
type Limits struct {
	Disk    uint64
	Network uint64
	Compute uint64
}

func (l Limits) array() [dimensionCount]uint64 {
	return [dimensionCount]uint64{l.Disk, l.Network, l.Compute}
}

// Costs prices one unit of each dimension in resource credits.
type Costs struct {
	Disk    uint64
	Network uint64
	Compute uint64
}

func (c Costs) array() [dimensionCount]uint64 {
	return [dimensionCount]uint64{c.Disk, c.Network, c.Compute}
}

// Session is an initial credit balance drawn from a payer; the meter routes
// per-dimension consumption through it at the dimension's cost. Sessions
// are reference-weak from the meter's perspective: once destroyed,
// consumption falls through to the system bucket.
type Session struct {
	mu      sync.Mutex
	id      uuid.UUID
	payer   chain.Account
	initial uint64
	balance uint64
	destroyed bool
}

// NewSession opens a session with the given initial credit balance.
func NewSession(payer chain.Account, balance uint64) *Session {
	return &Session{id: uuid.New(), payer: payer, initial: balance, balance: balance}
}

func (s *Session) ID() uuid.UUID         { return s.id }
func (s *Session) Payer() chain.Account  { return s.payer }

// Destroy marks the session as gone; future meter consumption while this
// session is attached falls through to the system bucket.
func (s *Session) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
}

func (s *Session) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// RemainingBalance reports the session's unspent credits.
func (s *Session) RemainingBalance() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// Spent reports total credits consumed so far.
func (s *Session) Spent() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initial - s.balance
}

func (s *Session) charge(amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return kerr.Controller("insufficient-resources", "session destroyed")
	}
	if amount > s.balance {
		return kerr.Controller("insufficient-resources", "session balance exhausted")
	}
	s.balance -= amount
	return nil
}

// These are Controller-category by default; the execution context downgrades
// compute-bandwidth-limit-exceeded specifically to a Reversion at the
// operation-dispatch boundary, matching the VM's cooperative-cancellation
// contract.
var limitExceededCode = [dimensionCount]string{
	DimensionDisk:    "disk-storage-limit-exceeded",
	DimensionNetwork:  "network-bandwidth-limit-exceeded",
	DimensionCompute:  "compute-bandwidth-limit-exceeded",
}

// Meter tracks three-dimensional resource use for one execution context.
type Meter struct {
	mu         sync.Mutex
	limit      [dimensionCount]uint64
	cost       [dimensionCount]uint64
	used       [dimensionCount]uint64
	systemUsed [dimensionCount]uint64
	session    *Session
}

// New constructs a meter with the given limits and per-unit costs.
func New(limits Limits, costs Costs) *Meter {
	return &Meter{limit: limits.array(), cost: costs.array()}
}

// Reset zeroes usage and re-arms the limits/costs for a new execution,
// detaching any previously attached session.
func (m *Meter) Reset(limits Limits, costs Costs) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limits.array()
	m.cost = costs.array()
	m.used = [dimensionCount]uint64{}
	m.systemUsed = [dimensionCount]uint64{}
	m.session = nil
}

// AttachSession routes subsequent consumption through s.
func (m *Meter) AttachSession(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
}

// DetachSession reverts subsequent consumption to the system bucket.
func (m *Meter) DetachSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
}

func (m *Meter) use(dim Dimension, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount < 0 {
		dec := uint64(-amount)
		if dec > m.used[dim] {
			m.used[dim] = 0
		} else {
			m.used[dim] -= dec
		}
		return nil
	}
	amt := uint64(amount)
	if m.used[dim]+amt > m.limit[dim] {
		return kerr.Controller(limitExceededCode[dim], "resource limit exceeded")
	}
	price := amt * m.cost[dim]
	if m.session != nil && !m.session.Destroyed() {
		if err := m.session.charge(price); err != nil {
			return err
		}
	} else {
		m.systemUsed[dim] += price
	}
	m.used[dim] += amt
	return nil
}

// UseDiskStorage meters a (possibly negative, on net reclaim) change in
// disk storage bytes.
func (m *Meter) UseDiskStorage(bytes int64) error { return m.use(DimensionDisk, bytes) }

// UseNetworkBandwidth meters a change in network bytes.
func (m *Meter) UseNetworkBandwidth(bytes int64) error { return m.use(DimensionNetwork, bytes) }

// UseComputeBandwidth meters compute ticks.
func (m *Meter) UseComputeBandwidth(ticks int64) error { return m.use(DimensionCompute, ticks) }

func (m *Meter) remaining(dim Dimension) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var meterRemaining uint64
	if m.limit[dim] > m.used[dim] {
		meterRemaining = m.limit[dim] - m.used[dim]
	}
	if m.session == nil || m.session.Destroyed() || m.cost[dim] == 0 {
		return meterRemaining
	}
	sessionRemaining := m.session.RemainingBalance() / m.cost[dim]
	if sessionRemaining < meterRemaining {
		return sessionRemaining
	}
	return meterRemaining
}

func (m *Meter) RemainingDiskStorage() uint64     { return m.remaining(DimensionDisk) }
func (m *Meter) RemainingNetworkBandwidth() uint64 { return m.remaining(DimensionNetwork) }
func (m *Meter) RemainingComputeBandwidth() uint64 { return m.remaining(DimensionCompute) }

// Used returns a snapshot of per-dimension consumption (disk, network, compute).
func (m *Meter) Used() (uint64, uint64, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used[DimensionDisk], m.used[DimensionNetwork], m.used[DimensionCompute]
}

// SystemCost returns the three-dimensional dot product of system-bucket
// usage against per-unit cost, i.e. what was recorded but not charged to
// any payer.
func (m *Meter) SystemCost() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.systemUsed[DimensionDisk] + m.systemUsed[DimensionNetwork] + m.systemUsed[DimensionCompute]
}
