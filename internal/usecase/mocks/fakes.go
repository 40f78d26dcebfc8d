package mocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/shopledger/internal/domain"
	"github.com/iho/shopledger/internal/usecase"
)

// FakeStore is an in-memory ledger shared by the fake repositories.
// Transactions are serialized and a rollback restores the state seen at Begin,
// which gives use case tests the same atomicity as the Postgres store.
type FakeStore struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	parties   map[string]*domain.Party
	entries   map[string]*domain.Entry
	sequences map[string]int64
	events    []*domain.OutboxEvent
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		parties:   make(map[string]*domain.Party),
		entries:   make(map[string]*domain.Entry),
		sequences: make(map[string]int64),
	}
}

type fakeSnapshot struct {
	parties   map[string]*domain.Party
	entries   map[string]*domain.Entry
	sequences map[string]int64
	events    int
}

func (s *FakeStore) snapshot() fakeSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := fakeSnapshot{
		parties:   make(map[string]*domain.Party, len(s.parties)),
		entries:   make(map[string]*domain.Entry, len(s.entries)),
		sequences: make(map[string]int64, len(s.sequences)),
		events:    len(s.events),
	}
	for id, p := range s.parties {
		c := *p
		snap.parties[id] = &c
	}
	for id, e := range s.entries {
		snap.entries[id] = e.Clone()
	}
	for name, v := range s.sequences {
		snap.sequences[name] = v
	}
	return snap
}

func (s *FakeStore) restore(snap fakeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.parties = snap.parties
	s.entries = snap.entries
	s.sequences = snap.sequences
	s.events = s.events[:snap.events]
}

// SeedParty stores p directly, bypassing transactions.
func (s *FakeStore) SeedParty(p *domain.Party) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *p
	s.parties[p.ID] = &c
}

// Party returns a copy of the stored party, deleted or not.
func (s *FakeStore) Party(id string) (*domain.Party, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parties[id]
	if !ok {
		return nil, false
	}
	c := *p
	return &c, true
}

// Entry returns a copy of the stored entry, deleted or not.
func (s *FakeStore) Entry(id string) (*domain.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// EntryCount returns the number of stored entries, deleted included.
func (s *FakeStore) EntryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Events returns the outbox events written so far.
func (s *FakeStore) Events() []*domain.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.OutboxEvent(nil), s.events...)
}

// FakeTransactionManager begins serialized transactions on a FakeStore.
type FakeTransactionManager struct {
	store *FakeStore

	BeginErr  error
	CommitErr error
}

// TxManager returns a transaction manager for s.
func (s *FakeStore) TxManager() *FakeTransactionManager {
	return &FakeTransactionManager{store: s}
}

func (m *FakeTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginErr != nil {
		return nil, m.BeginErr
	}
	m.store.txMu.Lock()
	return &FakeTransaction{store: m.store, snap: m.store.snapshot(), commitErr: m.CommitErr}, nil
}

// BeginSnapshot is Begin: serialized transactions already see one state.
func (m *FakeTransactionManager) BeginSnapshot(ctx context.Context) (usecase.Transaction, error) {
	return m.Begin(ctx)
}

// FakeTransaction is a transaction on a FakeStore.
type FakeTransaction struct {
	store     *FakeStore
	snap      fakeSnapshot
	done      bool
	commitErr error
}

func (t *FakeTransaction) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("transaction already closed")
	}
	if t.commitErr != nil {
		return t.commitErr
	}
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

func (t *FakeTransaction) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.restore(t.snap)
	t.store.txMu.Unlock()
	return nil
}

// FakePartyRepository implements usecase.PartyRepository on a FakeStore.
type FakePartyRepository struct {
	store *FakeStore

	UpdateBalanceErr error
}

// Parties returns a party repository for s.
func (s *FakeStore) Parties() *FakePartyRepository {
	return &FakePartyRepository{store: s}
}

func (r *FakePartyRepository) Create(ctx context.Context, tx usecase.Transaction, party *domain.Party) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, p := range r.store.parties {
		if p.Code == party.Code {
			return domain.NewPersistenceError("create party", fmt.Errorf("duplicate code %s", party.Code))
		}
	}
	c := *party
	r.store.parties[party.ID] = &c
	return nil
}

func (r *FakePartyRepository) GetByID(ctx context.Context, tx usecase.Transaction, kind domain.PartyKind, id string) (*domain.Party, error) {
	p, err := r.GetByIDForUpdate(ctx, nil, kind, id)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted {
		return nil, domain.ErrPartyNotFound
	}
	return p, nil
}

func (r *FakePartyRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, kind domain.PartyKind, id string) (*domain.Party, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	p, ok := r.store.parties[id]
	if !ok || p.Kind != kind {
		return nil, domain.ErrPartyNotFound
	}
	c := *p
	return &c, nil
}

func (r *FakePartyRepository) Update(ctx context.Context, tx usecase.Transaction, party *domain.Party) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.parties[party.ID]
	if !ok {
		return domain.ErrPartyNotFound
	}
	if p.Version != party.Version {
		return domain.ErrVersionConflict
	}
	c := *party
	c.Balance = p.Balance
	c.Version = p.Version + 1
	r.store.parties[party.ID] = &c
	return nil
}

func (r *FakePartyRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, kind domain.PartyKind, id string, balance decimal.Decimal, expectedVersion int64, updatedAt time.Time) error {
	if r.UpdateBalanceErr != nil {
		return r.UpdateBalanceErr
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.parties[id]
	if !ok || p.Kind != kind {
		return domain.ErrPartyNotFound
	}
	if p.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	p.Balance = balance
	p.Version++
	p.UpdatedAt = updatedAt
	return nil
}

func (r *FakePartyRepository) List(ctx context.Context, tx usecase.Transaction, filter domain.PartyFilter) ([]*domain.Party, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Party
	for _, p := range r.store.parties {
		if p.IsDeleted || (filter.Kind != "" && p.Kind != filter.Kind) {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name+" "+p.OwnerName+" "+p.Code), strings.ToLower(filter.Search)) {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return page(out, filter.Limit, filter.Offset), nil
}

// FakeEntryRepository implements usecase.EntryRepository on a FakeStore.
type FakeEntryRepository struct {
	store *FakeStore

	CreateErr error
}

// Entries returns an entry repository for s.
func (s *FakeStore) Entries() *FakeEntryRepository {
	return &FakeEntryRepository{store: s}
}

func (r *FakeEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.entries[entry.ID] = entry.Clone()
	return nil
}

func (r *FakeEntryRepository) GetByID(ctx context.Context, kind domain.EntryKind, id string) (*domain.Entry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	e, ok := r.store.entries[id]
	if !ok || e.Kind != kind || e.IsDeleted {
		return nil, domain.ErrEntryNotFound
	}
	return e.Clone(), nil
}

func (r *FakeEntryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, kind domain.EntryKind, id string) (*domain.Entry, error) {
	return r.GetByID(ctx, kind, id)
}

// GetByIDForShare needs no lock: FakeStore transactions are serialized.
func (r *FakeEntryRepository) GetByIDForShare(ctx context.Context, tx usecase.Transaction, kind domain.EntryKind, id string) (*domain.Entry, error) {
	return r.GetByID(ctx, kind, id)
}

func (r *FakeEntryRepository) Update(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.entries[entry.ID]; !ok {
		return domain.ErrEntryNotFound
	}
	r.store.entries[entry.ID] = entry.Clone()
	return nil
}

func (r *FakeEntryRepository) List(ctx context.Context, filter domain.EntryFilter) ([]*domain.Entry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Entry
	for _, e := range r.store.entries {
		if e.IsDeleted {
			continue
		}
		if filter.Kind != "" && e.Kind != filter.Kind {
			continue
		}
		if filter.Direction != "" && e.Direction != filter.Direction {
			continue
		}
		if filter.PartyID != "" && e.PartyID != filter.PartyID {
			continue
		}
		if filter.Month != "" && (e.Period == nil || e.Period.Month != filter.Month) {
			continue
		}
		if filter.Year != 0 && (e.Period == nil || e.Period.Year != filter.Year) {
			continue
		}
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *FakeEntryRepository) SumByParty(ctx context.Context, tx usecase.Transaction, kind domain.PartyKind, partyID string) (decimal.Decimal, decimal.Decimal, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	loans, payments := decimal.Zero, decimal.Zero
	for _, e := range r.store.entries {
		if e.IsDeleted || e.PartyKind != kind || e.PartyID != partyID {
			continue
		}
		if e.Kind == domain.EntryKindLoan {
			loans = loans.Add(e.Amount)
		} else {
			payments = payments.Add(e.Amount)
		}
	}
	return loans, payments, nil
}

// FakeSequenceRepository implements usecase.SequenceRepository on a FakeStore.
type FakeSequenceRepository struct {
	store *FakeStore
}

// Sequences returns a sequence repository for s.
func (s *FakeStore) Sequences() *FakeSequenceRepository {
	return &FakeSequenceRepository{store: s}
}

func (r *FakeSequenceRepository) Next(ctx context.Context, tx usecase.Transaction, name string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.sequences[name]++
	return r.store.sequences[name], nil
}

// FakeOutboxRepository implements usecase.OutboxRepository on a FakeStore.
type FakeOutboxRepository struct {
	store *FakeStore
}

// Outbox returns an outbox repository for s.
func (s *FakeStore) Outbox() *FakeOutboxRepository {
	return &FakeOutboxRepository{store: s}
}

func (r *FakeOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.events = append(r.store.events, event)
	return nil
}

func (r *FakeOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.OutboxEvent
	for _, e := range r.store.events {
		if !e.Published {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *FakeOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, e := range r.store.events {
		if e.ID == id {
			e.Published = true
			at := publishedAt
			e.PublishedAt = &at
		}
	}
	return nil
}

func (r *FakeOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	return nil
}

// FakeAuditRepository stores audit records in memory. The first FailTimes
// calls to Create fail with Err.
type FakeAuditRepository struct {
	mu      sync.Mutex
	records []*domain.AuditRecord

	Err       error
	FailTimes int
	calls     int
}

// NewFakeAuditRepository creates an empty FakeAuditRepository.
func NewFakeAuditRepository() *FakeAuditRepository {
	return &FakeAuditRepository{}
}

func (r *FakeAuditRepository) Create(ctx context.Context, record *domain.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.Err != nil && (r.FailTimes == 0 || r.calls <= r.FailTimes) {
		return r.Err
	}
	c := *record
	r.records = append(r.records, &c)
	return nil
}

func (r *FakeAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AuditRecord
	for _, rec := range r.records {
		if filter.TargetID != "" && rec.TargetID != filter.TargetID {
			continue
		}
		if filter.TargetKind != "" && rec.TargetKind != filter.TargetKind {
			continue
		}
		if filter.Action != "" && rec.Action != filter.Action {
			continue
		}
		if filter.ActorID != "" && rec.ActorID != filter.ActorID {
			continue
		}
		out = append(out, rec)
	}
	return page(out, filter.Limit, filter.Offset), nil
}

// Records returns all stored audit records in insertion order.
func (r *FakeAuditRepository) Records() []*domain.AuditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.AuditRecord(nil), r.records...)
}

// Calls returns how many times Create was called.
func (r *FakeAuditRepository) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// FakeIDGenerator issues id-1, id-2, ...
type FakeIDGenerator struct {
	n atomic.Int64
}

func (g *FakeIDGenerator) Generate() string {
	return fmt.Sprintf("id-%d", g.n.Add(1))
}

// FakeCache is an in-memory usecase.Cache.
type FakeCache struct {
	mu       sync.Mutex
	data     map[string][]byte
	versions map[string]int64
}

// NewFakeCache creates an empty FakeCache.
func NewFakeCache() *FakeCache {
	return &FakeCache{data: make(map[string][]byte), versions: make(map[string]int64)}
}

func (c *FakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *FakeCache) SetIfNewer(ctx context.Context, key string, value []byte, version int64, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.versions[key]; ok && current >= version {
		return false, nil
	}
	c.data[key] = value
	c.versions[key] = version
	return true, nil
}

func (c *FakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	delete(c.versions, key)
	return nil
}

// Has reports whether key is cached.
func (c *FakeCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// FakeRetrier re-runs operations failing with domain.ErrVersionConflict.
type FakeRetrier struct {
	MaxAttempts int
	attempts    atomic.Int64
}

func (r *FakeRetrier) Retry(ctx context.Context, operation func() error) error {
	var err error
	for i := 0; i < r.MaxAttempts; i++ {
		r.attempts.Add(1)
		if err = operation(); err == nil || !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
	}
	return err
}

// Attempts returns how many times an operation was run.
func (r *FakeRetrier) Attempts() int {
	return int(r.attempts.Load())
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
