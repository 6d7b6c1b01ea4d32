package repomanager

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/auditlog"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/breakglass"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/items"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/jit"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/links"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/locks"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/vaults"
)

// ErrInjectedAuditFailure is returned by Append while failures are armed
// with FailAuditAppends.
var ErrInjectedAuditFailure = errors.New("injected audit write failure")

type memState struct {
	vaults     map[string]models.Vault
	items      map[string]models.Item
	locks      map[string]models.CheckoutLock
	jit        map[string]models.JITRequest
	breakglass map[string]models.BreakGlassRequest
	links      map[string]models.OneTimeLink
	audit      []models.AuditEntry
	seq        int64
}

func newMemState() *memState {
	return &memState{
		vaults:     map[string]models.Vault{},
		items:      map[string]models.Item{},
		locks:      map[string]models.CheckoutLock{},
		jit:        map[string]models.JITRequest{},
		breakglass: map[string]models.BreakGlassRequest{},
		links:      map[string]models.OneTimeLink{},
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone copies the maps; records are stored by value and never mutated in
// place, so sharing their pointer fields is safe. The audit slice is capped
// so appends in the copy never write into the original's backing array.
func (s *memState) clone() *memState {
	return &memState{
		vaults:     cloneMap(s.vaults),
		items:      cloneMap(s.items),
		locks:      cloneMap(s.locks),
		jit:        cloneMap(s.jit),
		breakglass: cloneMap(s.breakglass),
		links:      cloneMap(s.links),
		audit:      s.audit[:len(s.audit):len(s.audit)],
		seq:        s.seq,
	}
}

// InMemoryRepositoryManager keeps all state in process memory. Transactions
// are fully serialized: WithTx holds a single mutex, works on a copy of the
// state and swaps it in only when fn succeeds.
type InMemoryRepositoryManager struct {
	mu    sync.Mutex
	state *memState

	failMu      sync.Mutex
	failAppends int
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{state: newMemState()}
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context) error {
	return nil
}

func (m *InMemoryRepositoryManager) Close() error {
	return nil
}

// FailAuditAppends makes the next n audit appends fail.
func (m *InMemoryRepositoryManager) FailAuditAppends(n int) {
	m.failMu.Lock()
	m.failAppends = n
	m.failMu.Unlock()
}

func (m *InMemoryRepositoryManager) takeAuditFailure() bool {
	m.failMu.Lock()
	defer m.failMu.Unlock()
	if m.failAppends > 0 {
		m.failAppends--
		return true
	}
	return false
}

func (m *InMemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := m.state.clone()
	if err := fn(ctx, &memRepositories{m: m, s: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

type memRepositories struct {
	m *InMemoryRepositoryManager
	s *memState
}

func (r *memRepositories) Vaults() vaults.Repository         { return memVaults{r.s} }
func (r *memRepositories) Items() items.Repository           { return memItems{r.s} }
func (r *memRepositories) Locks() locks.Repository           { return memLocks{r.s} }
func (r *memRepositories) JIT() jit.Repository               { return memJIT{r.s} }
func (r *memRepositories) BreakGlass() breakglass.Repository { return memBreakGlass{r.s} }
func (r *memRepositories) Links() links.Repository           { return memLinks{r.s} }
func (r *memRepositories) Audit() auditlog.Repository        { return memAudit{r.m, r.s} }

type memVaults struct{ s *memState }

func (v memVaults) Create(ctx context.Context, vault *models.Vault) error {
	if _, ok := v.s.vaults[vault.ID]; ok {
		return common.ErrConflict
	}
	v.s.vaults[vault.ID] = *vault
	return nil
}

func (v memVaults) Get(ctx context.Context, id string) (*models.Vault, error) {
	vault, ok := v.s.vaults[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &vault, nil
}

type memItems struct{ s *memState }

func (i memItems) Create(ctx context.Context, it *models.Item) error {
	if _, ok := i.s.items[it.ID]; ok {
		return common.ErrConflict
	}
	if _, ok := i.s.vaults[it.VaultID]; !ok {
		return common.ErrNotFound
	}
	i.s.items[it.ID] = *it
	return nil
}

func (i memItems) Get(ctx context.Context, id string) (*models.Item, error) {
	it, ok := i.s.items[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &it, nil
}

type memLocks struct{ s *memState }

func (l memLocks) Acquire(ctx context.Context, lock *models.CheckoutLock) (*models.CheckoutLock, bool, error) {
	if cur, ok := l.s.locks[lock.ItemID]; ok {
		return &cur, false, nil
	}
	l.s.locks[lock.ItemID] = *lock
	cp := *lock
	return &cp, true, nil
}

func (l memLocks) Get(ctx context.Context, itemID string) (*models.CheckoutLock, error) {
	cur, ok := l.s.locks[itemID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &cur, nil
}

func (l memLocks) Release(ctx context.Context, itemID, holderID string) (bool, error) {
	cur, ok := l.s.locks[itemID]
	if !ok || cur.HolderID != holderID {
		return false, nil
	}
	delete(l.s.locks, itemID)
	return true, nil
}

type memJIT struct{ s *memState }

func (j memJIT) Create(ctx context.Context, r *models.JITRequest) error {
	if _, ok := j.s.jit[r.ID]; ok {
		return common.ErrConflict
	}
	j.s.jit[r.ID] = *r
	return nil
}

func (j memJIT) Get(ctx context.Context, id string) (*models.JITRequest, error) {
	r, ok := j.s.jit[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &r, nil
}

func (j memJIT) GetForUpdate(ctx context.Context, id string) (*models.JITRequest, error) {
	return j.Get(ctx, id)
}

func (j memJIT) Update(ctx context.Context, r *models.JITRequest) error {
	cur, ok := j.s.jit[r.ID]
	if !ok {
		return common.ErrNotFound
	}
	cur.Status = r.Status
	cur.ApproverID = r.ApproverID
	cur.DecidedAt = r.DecidedAt
	cur.ExpiresAt = r.ExpiresAt
	j.s.jit[r.ID] = cur
	return nil
}

func (j memJIT) List(ctx context.Context, f jit.Filter) ([]*models.JITRequest, error) {
	var out []*models.JITRequest
	for _, r := range j.s.jit {
		if f.RequesterID != "" && r.RequesterID != f.RequesterID {
			continue
		}
		if f.ItemID != "" && r.ItemID != f.ItemID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		r := r
		out = append(out, &r)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (j memJIT) FindActive(ctx context.Context, requesterID, itemID string, now time.Time) (*models.JITRequest, error) {
	var best *models.JITRequest
	for _, r := range j.s.jit {
		if r.RequesterID != requesterID || r.ItemID != itemID || !r.Active(now) {
			continue
		}
		if best == nil || r.ExpiresAt.After(*best.ExpiresAt) {
			r := r
			best = &r
		}
	}
	if best == nil {
		return nil, common.ErrNotFound
	}
	return best, nil
}

func (j memJIT) ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.JITRequest, error) {
	var out []*models.JITRequest
	for _, r := range j.s.jit {
		if r.Status == models.JITApproved && r.ExpiresAt != nil && r.ExpiresAt.Before(now) {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ExpiresAt.Before(*out[b].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (j memJIT) MarkExpired(ctx context.Context, id string) (bool, error) {
	r, ok := j.s.jit[id]
	if !ok || r.Status != models.JITApproved {
		return false, nil
	}
	r.Status = models.JITExpired
	j.s.jit[id] = r
	return true, nil
}

type memBreakGlass struct{ s *memState }

func (b memBreakGlass) Create(ctx context.Context, r *models.BreakGlassRequest) error {
	if _, ok := b.s.breakglass[r.ID]; ok {
		return common.ErrConflict
	}
	b.s.breakglass[r.ID] = *r
	return nil
}

func (b memBreakGlass) Get(ctx context.Context, id string) (*models.BreakGlassRequest, error) {
	r, ok := b.s.breakglass[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &r, nil
}

func (b memBreakGlass) GetForUpdate(ctx context.Context, id string) (*models.BreakGlassRequest, error) {
	return b.Get(ctx, id)
}

func (b memBreakGlass) Update(ctx context.Context, r *models.BreakGlassRequest) error {
	cur, ok := b.s.breakglass[r.ID]
	if !ok {
		return common.ErrNotFound
	}
	cur.Status = r.Status
	cur.Approver1ID, cur.Approver1At = r.Approver1ID, r.Approver1At
	cur.Approver2ID, cur.Approver2At = r.Approver2ID, r.Approver2At
	cur.RevokedBy, cur.RevokedAt = r.RevokedBy, r.RevokedAt
	b.s.breakglass[r.ID] = cur
	return nil
}

func (b memBreakGlass) List(ctx context.Context, f breakglass.Filter) ([]*models.BreakGlassRequest, error) {
	var out []*models.BreakGlassRequest
	for _, r := range b.s.breakglass {
		if f.RequesterID != "" && r.RequesterID != f.RequesterID {
			continue
		}
		if f.ItemID != "" && r.ItemID != f.ItemID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		r := r
		out = append(out, &r)
	}
	sort.Slice(out, func(a, c int) bool { return out[a].CreatedAt.After(out[c].CreatedAt) })
	return out, nil
}

func (b memBreakGlass) FindGranting(ctx context.Context, requesterID, itemID string) (*models.BreakGlassRequest, error) {
	var best *models.BreakGlassRequest
	for _, r := range b.s.breakglass {
		if r.RequesterID != requesterID || r.ItemID != itemID || !r.GrantsAccess() {
			continue
		}
		if best == nil || r.CreatedAt.After(best.CreatedAt) {
			r := r
			best = &r
		}
	}
	if best == nil {
		return nil, common.ErrNotFound
	}
	return best, nil
}

type memLinks struct{ s *memState }

func (l memLinks) Create(ctx context.Context, link *models.OneTimeLink) error {
	if _, ok := l.s.links[link.Token]; ok {
		return common.ErrConflict
	}
	l.s.links[link.Token] = *link
	return nil
}

func (l memLinks) Get(ctx context.Context, token string) (*models.OneTimeLink, error) {
	link, ok := l.s.links[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &link, nil
}

func (l memLinks) Consume(ctx context.Context, token string, now time.Time) (bool, error) {
	link, ok := l.s.links[token]
	if !ok || !link.Usable(now) {
		return false, nil
	}
	link.Consumed = true
	link.ConsumedAt = &now
	link.InlinePayload = nil
	l.s.links[token] = link
	return true, nil
}

func (l memLinks) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for token, link := range l.s.links {
		if !link.ExpiresAt.After(now) {
			delete(l.s.links, token)
			n++
		}
	}
	return n, nil
}

type memAudit struct {
	m *InMemoryRepositoryManager
	s *memState
}

func (a memAudit) Append(ctx context.Context, e *models.AuditEntry) error {
	if a.m.takeAuditFailure() {
		return ErrInjectedAuditFailure
	}
	a.s.seq++
	e.ID = a.s.seq
	a.s.audit = append(a.s.audit, *e)
	return nil
}

func (a memAudit) Query(ctx context.Context, f models.AuditFilter) ([]*models.AuditEntry, error) {
	limit := auditlog.NormalizeLimit(f.Limit)
	var out []*models.AuditEntry
	for i := len(a.s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		e := a.s.audit[i]
		if f.EventType != "" && e.EventType != f.EventType {
			continue
		}
		if f.ActorID != "" && e.ActorID != f.ActorID {
			continue
		}
		if f.SubjectID != "" && e.SubjectID != f.SubjectID {
			continue
		}
		if f.VaultID != "" && e.VaultID != f.VaultID {
			continue
		}
		if !f.From.IsZero() && e.Timestamp.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && e.Timestamp.After(f.To) {
			continue
		}
		out = append(out, &e)
	}
	return out, nil
}
