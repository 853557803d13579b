package session

import (
	"sync"

	"github.com/cleanearth/cleanearth-bff-go/internal/domain"

	"github.com/google/uuid"
)

// TempKeyPrefix marks records that exist only in a session's view and have
// not been confirmed by the store yet.
const TempKeyPrefix = "tmp-"

// NewTempKey returns a fresh display-only record key.
func NewTempKey() string {
	return TempKeyPrefix + uuid.New().String()
}

// Keyed is the record contract for optimistic lists.
type Keyed interface {
	Key() string
}

// OptimisticList is an ordered record list that accepts temporary entries
// ahead of store confirmation. Reconciliation swaps the temporary entry in
// place, so list order never shifts under the reader.
type OptimisticList[T Keyed] struct {
	mu    sync.RWMutex
	items []T
}

// Reset replaces the whole list, typically from a fresh store fetch.
func (l *OptimisticList[T]) Reset(items []T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append([]T(nil), items...)
}

// Prepend puts item at the head of the list.
func (l *OptimisticList[T]) Prepend(item T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append([]T{item}, l.items...)
}

// Swap replaces the entry with the given key, keeping its position.
// Returns false when no entry carries that key (e.g. the list was reset
// by a fetch between submission and confirmation).
func (l *OptimisticList[T]) Swap(key string, replacement T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].Key() == key {
			l.items[i] = replacement
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the current list.
func (l *OptimisticList[T]) Snapshot() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]T(nil), l.items...)
}

// FlowState is the modal flow's current step. Transitions only move
// forward: collecting_input → confirming → submitting → done | failed.
type FlowState string

const (
	FlowCollectingInput FlowState = "collecting_input"
	FlowConfirming      FlowState = "confirming"
	FlowSubmitting      FlowState = "submitting"
	FlowDone            FlowState = "done"
	FlowFailed          FlowState = "failed"
)

// Flow walks one modal interaction through its steps. Transitions only
// move forward; anything else is rejected.
type Flow struct {
	mu    sync.Mutex
	state FlowState
}

func NewFlow() *Flow {
	return &Flow{state: FlowCollectingInput}
}

// State returns the current step.
func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// To advances the flow to next. Returns false and stays put when the
// transition is not a legal forward step.
func (f *Flow) To(next FlowState) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	legal := map[FlowState][]FlowState{
		FlowCollectingInput: {FlowConfirming},
		FlowConfirming:      {FlowSubmitting},
		FlowSubmitting:      {FlowDone, FlowFailed},
	}
	for _, s := range legal[f.state] {
		if s == next {
			f.state = next
			return true
		}
	}
	return false
}

// MutationOutcome is the terminal status of a background persistence attempt.
type MutationOutcome string

const (
	MutationSubmitted  MutationOutcome = "submitted"
	MutationReconciled MutationOutcome = "reconciled"
	MutationFailed     MutationOutcome = "failed"
)

// MutationEntry tracks one optimistic mutation from submission to its
// terminal outcome.
type MutationEntry struct {
	TempKey  string
	FinalKey string // set on reconciliation
	Outcome  MutationOutcome
	Err      error

	done chan struct{}
}

// MutationLog records the lifecycle of every optimistic mutation in a
// session's view. Persistence runs detached from the request, so the log
// is also how anything else finds out whether a mutation landed.
type MutationLog struct {
	mu      sync.Mutex
	entries map[string]*MutationEntry
}

func NewMutationLog() *MutationLog {
	return &MutationLog{entries: make(map[string]*MutationEntry)}
}

// Submitted registers a new in-flight mutation under its temp key.
func (g *MutationLog) Submitted(tempKey string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[tempKey] = &MutationEntry{
		TempKey: tempKey,
		Outcome: MutationSubmitted,
		done:    make(chan struct{}),
	}
}

// Reconciled marks the mutation as confirmed under its store-assigned key.
func (g *MutationLog) Reconciled(tempKey, finalKey string) {
	g.finish(tempKey, func(e *MutationEntry) {
		e.FinalKey = finalKey
		e.Outcome = MutationReconciled
	})
}

// Failed marks the mutation as permanently failed. The optimistic view is
// left exactly as it was; nothing is rolled back.
func (g *MutationLog) Failed(tempKey string, err error) {
	g.finish(tempKey, func(e *MutationEntry) {
		e.Err = err
		e.Outcome = MutationFailed
	})
}

func (g *MutationLog) finish(tempKey string, apply func(*MutationEntry)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[tempKey]
	if !ok || e.Outcome != MutationSubmitted {
		return
	}
	apply(e)
	close(e.done)
}

// Lookup returns a copy of the entry for the temp key.
func (g *MutationLog) Lookup(tempKey string) (MutationEntry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[tempKey]
	if !ok {
		return MutationEntry{}, false
	}
	return *e, true
}

// Done returns a channel closed when the mutation reaches a terminal
// outcome. Returns a closed channel for unknown keys.
func (g *MutationLog) Done(tempKey string) <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.entries[tempKey]; ok {
		return e.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// ViewState is the per-session optimistic display state. Mutations render
// into it before, and regardless of whether, the store confirms them.
type ViewState struct {
	Pickups      OptimisticList[domain.Pickup]
	Transactions OptimisticList[domain.Transaction]
	Mutations    *MutationLog

	mu            sync.RWMutex
	walletBalance float64
	walletKnown   bool
}

func NewViewState() *ViewState {
	return &ViewState{Mutations: NewMutationLog()}
}

// SetWalletBalance seeds the displayed balance from a store fetch.
func (v *ViewState) SetWalletBalance(balance float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.walletBalance = balance
	v.walletKnown = true
}

// DeductWallet lowers the displayed balance immediately on withdrawal
// submission. The deduction is display-only and is never restored on
// persistence failure. Before the balance has been seeded there is
// nothing to deduct from; the next store fetch supplies the truth.
func (v *ViewState) DeductWallet(amount float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.walletKnown {
		return
	}
	v.walletBalance -= amount
}

// WalletBalance returns the displayed balance and whether it has been
// seeded yet.
func (v *ViewState) WalletBalance() (float64, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.walletBalance, v.walletKnown
}
