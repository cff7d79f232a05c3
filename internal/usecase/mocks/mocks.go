package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/iho/creditledger/internal/domain"
	"github.com/iho/creditledger/internal/usecase"
)

// FakeLedger is an in-memory LedgerEntryRepository and UserRepository.
// The Func fields override the default behaviour when set.
type FakeLedger struct {
	mu       sync.RWMutex
	entries  map[string][]*domain.LedgerEntry
	balances map[string]*domain.CachedBalance
	writes   []domain.CachedBalance

	ListByUsersFunc         func(ctx context.Context, userIDs []string) (map[string][]*domain.LedgerEntry, error)
	GetCachedBalancesFunc   func(ctx context.Context, userIDs []string) (map[string]*domain.CachedBalance, error)
	UpdateCachedBalanceFunc func(ctx context.Context, tx usecase.Transaction, balance domain.CachedBalance) error
}

// NewFakeLedger creates an empty FakeLedger.
func NewFakeLedger() *FakeLedger {
	return &FakeLedger{
		entries:  make(map[string][]*domain.LedgerEntry),
		balances: make(map[string]*domain.CachedBalance),
	}
}

// AddUser registers a user with its cached balance.
func (f *FakeLedger) AddUser(balance domain.CachedBalance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[balance.UserID] = &balance
}

// AddEntries appends ledger entries to their users.
func (f *FakeLedger) AddEntries(entries ...*domain.LedgerEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		f.entries[e.UserID] = append(f.entries[e.UserID], e)
	}
}

// Writes returns every cached balance written so far.
func (f *FakeLedger) Writes() []domain.CachedBalance {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]domain.CachedBalance(nil), f.writes...)
}

func (f *FakeLedger) ListByUser(_ context.Context, userID string) ([]*domain.LedgerEntry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]*domain.LedgerEntry(nil), f.entries[userID]...), nil
}

func (f *FakeLedger) ListByUsers(ctx context.Context, userIDs []string) (map[string][]*domain.LedgerEntry, error) {
	if f.ListByUsersFunc != nil {
		return f.ListByUsersFunc(ctx, userIDs)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string][]*domain.LedgerEntry, len(userIDs))
	for _, id := range userIDs {
		if entries, ok := f.entries[id]; ok {
			out[id] = append([]*domain.LedgerEntry(nil), entries...)
		}
	}
	return out, nil
}

func (f *FakeLedger) ListPage(_ context.Context, userID string, limit, offset int) ([]*domain.LedgerEntry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entries := f.entries[userID]
	if offset >= len(entries) {
		return []*domain.LedgerEntry{}, nil
	}
	end := min(offset+limit, len(entries))
	return append([]*domain.LedgerEntry(nil), entries[offset:end]...), nil
}

func (f *FakeLedger) GetCachedBalance(_ context.Context, userID string) (*domain.CachedBalance, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, ok := f.balances[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *FakeLedger) GetCachedBalances(ctx context.Context, userIDs []string) (map[string]*domain.CachedBalance, error) {
	if f.GetCachedBalancesFunc != nil {
		return f.GetCachedBalancesFunc(ctx, userIDs)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]*domain.CachedBalance, len(userIDs))
	for _, id := range userIDs {
		if b, ok := f.balances[id]; ok {
			cp := *b
			out[id] = &cp
		}
	}
	return out, nil
}

func (f *FakeLedger) ListUserIDs(_ context.Context, limit, offset int) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, len(f.balances))
	for id := range f.balances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if offset >= len(ids) {
		return []string{}, nil
	}
	return ids[offset:min(offset+limit, len(ids))], nil
}

func (f *FakeLedger) UpdateCachedBalance(ctx context.Context, tx usecase.Transaction, balance domain.CachedBalance) error {
	if f.UpdateCachedBalanceFunc != nil {
		return f.UpdateCachedBalanceFunc(ctx, tx, balance)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.balances[balance.UserID]; !ok {
		return domain.ErrUserNotFound
	}
	cp := balance
	f.balances[balance.UserID] = &cp
	f.writes = append(f.writes, balance)
	return nil
}

// FakeTransactionManager hands out no-op transactions.
type FakeTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func (m *FakeTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &FakeTransaction{}, nil
}

// FakeTransaction records whether it was committed or rolled back.
type FakeTransaction struct {
	Committed  bool
	RolledBack bool
}

func (t *FakeTransaction) Commit(context.Context) error {
	t.Committed = true
	return nil
}

func (t *FakeTransaction) Rollback(context.Context) error {
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

// FakeIDGenerator generates sequential IDs with a prefix.
type FakeIDGenerator struct {
	Prefix  string
	counter atomic.Int64
}

func (g *FakeIDGenerator) Generate() string {
	return fmt.Sprintf("%s%d", g.Prefix, g.counter.Add(1))
}

// RecordingAuditRepository keeps audit logs in memory.
type RecordingAuditRepository struct {
	mu   sync.Mutex
	Logs []*domain.AuditLog
	Err  error
}

func (r *RecordingAuditRepository) Create(_ context.Context, log *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Logs = append(r.Logs, log)
	return nil
}

// RecordingPublisher keeps published events in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []domain.InconsistencyEvent
	Err    error
}

func (p *RecordingPublisher) Publish(_ context.Context, event domain.InconsistencyEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, event)
	return nil
}
