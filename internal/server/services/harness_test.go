package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/cryptox"
	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/itemkinds"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/notify"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/auditlog"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
)

var (
	admin    = models.Principal{ID: "u-admin", Email: "admin@example.com", Role: models.RoleAdmin}
	manager  = models.Principal{ID: "u-mgr1", Email: "mgr1@example.com", Role: models.RoleManager}
	manager2 = models.Principal{ID: "u-mgr2", Email: "mgr2@example.com", Role: models.RoleManager}
	alice    = models.Principal{ID: "u-alice", Email: "alice@example.com", Role: models.RoleContributor}
	bob      = models.Principal{ID: "u-bob", Email: "bob@example.com", Role: models.RoleContributor}
	client   = models.Principal{ID: "u-client", Email: "client@example.com", Role: models.RoleClient}
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []notify.Alert
	err    error
}

func (f *fakeNotifier) SendAlert(ctx context.Context, a notify.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

type fakeForwarder struct {
	mu      sync.Mutex
	batches [][]*models.AuditEntry
	err     error
}

func (f *fakeForwarder) Forward(ctx context.Context, entries []*models.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, entries)
	return f.err
}

func (f *fakeForwarder) Close() error { return nil }

type harness struct {
	rm        *repomanager.InMemoryRepositoryManager
	runner    *Runner
	sealer    *cryptox.Cipher
	clock     *fakeClock
	notifier  *fakeNotifier
	forwarder *fakeForwarder
	alerter   *Alerter

	vaults     *VaultService
	items      *ItemService
	checkout   *CheckoutService
	jit        *JITService
	breakglass *BreakGlassService
	links      *LinkService
	reveal     *RevealService
	audit      *AuditService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	sealer, err := cryptox.NewCipher(common.GenerateRandByteArray(cryptox.KeySize))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	log := logging.Nop()
	h := &harness{
		rm:        repomanager.NewInMemoryRepositoryManager(),
		sealer:    sealer,
		clock:     &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
		notifier:  &fakeNotifier{},
		forwarder: &fakeForwarder{},
	}
	h.runner = NewRunner(h.rm, h.forwarder, log, 3, time.Millisecond)
	h.alerter = NewAlerter(h.notifier, h.runner, log, "https://vault.example.com")
	h.alerter.now = h.clock.Now

	h.vaults = NewVaultService(h.runner, log)
	h.vaults.now = h.clock.Now
	h.items = NewItemService(h.runner, sealer, itemkinds.Default(), log)
	h.items.now = h.clock.Now
	h.checkout = NewCheckoutService(h.runner, log)
	h.checkout.now = h.clock.Now
	h.jit = NewJITService(h.runner, h.alerter, log)
	h.jit.now = h.clock.Now
	h.breakglass = NewBreakGlassService(h.runner, h.alerter, log)
	h.breakglass.now = h.clock.Now
	h.links = NewLinkService(h.runner, sealer, DefaultLinkTTL, log)
	h.links.now = h.clock.Now
	h.reveal = NewRevealService(h.runner, sealer, h.alerter, log)
	h.reveal.now = h.clock.Now
	h.audit = NewAuditService(h.runner, nil, log)
	h.audit.now = h.clock.Now
	return h
}

type itemOpts struct {
	criticality models.Criticality
	checkout    bool
	noCopy      bool
}

// seedItem creates a vault and an item holding secret "s3cr3t".
func (h *harness) seedItem(t *testing.T, o itemOpts) *models.Item {
	t.Helper()
	ctx := context.Background()

	v, err := h.vaults.Create(ctx, admin, VaultInput{Name: "acme", Type: models.VaultClient})
	if err != nil {
		t.Fatalf("create vault: %v", err)
	}
	it, err := h.items.Create(ctx, admin, ItemInput{
		VaultID:          v.ID,
		Kind:             "web_credential",
		Title:            "acme admin",
		Login:            "root",
		Secret:           "s3cr3t",
		Criticality:      o.criticality,
		RequiresCheckout: o.checkout,
		NoCopy:           o.noCopy,
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	return it
}

// entries returns the whole audit log, oldest first.
func (h *harness) entries(t *testing.T) []*models.AuditEntry {
	t.Helper()
	var out []*models.AuditEntry
	err := h.rm.WithTx(context.Background(), func(ctx context.Context, r repomanager.Repositories) error {
		newest, err := r.Audit().Query(ctx, models.AuditFilter{Limit: auditlog.MaxLimit})
		if err != nil {
			return err
		}
		for i := len(newest) - 1; i >= 0; i-- {
			out = append(out, newest[i])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("query audit: %v", err)
	}
	return out
}

func (h *harness) last(t *testing.T) *models.AuditEntry {
	t.Helper()
	all := h.entries(t)
	if len(all) == 0 {
		t.Fatal("audit log is empty")
	}
	return all[len(all)-1]
}

func (h *harness) count(t *testing.T, ev models.EventType) int {
	t.Helper()
	n := 0
	for _, e := range h.entries(t) {
		if e.EventType == ev {
			n++
		}
	}
	return n
}

func errorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
