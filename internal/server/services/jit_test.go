package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/notify"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/jit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeJITHours(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 2}, {1, 1}, {2, 2}, {3, 4}, {4, 4}, {5, 8}, {8, 8}, {9, 24}, {24, 24}, {100, 24},
	}
	for _, tt := range tests {
		got, err := NormalizeJITHours(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "hours=%d", tt.in)
	}

	_, err := NormalizeJITHours(-1)
	errorIs(t, err, common.ErrValidation)
}

func TestJIT_RequestValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	it := h.seedItem(t, itemOpts{criticality: models.CriticalityHigh})

	_, err := h.jit.Request(ctx, alice, it.ID, "   ", 1)
	errorIs(t, err, common.ErrValidation)

	_, err = h.jit.Request(ctx, alice, "missing", "deploy", 1)
	errorIs(t, err, common.ErrNotFound)

	req, err := h.jit.Request(ctx, alice, it.ID, "  hotfix deploy ", 3)
	require.NoError(t, err)
	assert.Equal(t, models.JITPending, req.Status)
	assert.Equal(t, 4, req.DurationHours)
	assert.Equal(t, "hotfix deploy", req.Reason)

	e := h.last(t)
	assert.Equal(t, models.EventJITRequested, e.EventType)
	assert.Equal(t, alice.ID, e.ActorID)
	assert.Equal(t, req.ID, e.SubjectID)

	require.Equal(t, 1, h.notifier.count())
	assert.Equal(t, notify.PriorityNormal, h.notifier.alerts[0].Priority)
}

func TestJIT_ApprovalRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	it := h.seedItem(t, itemOpts{criticality: models.CriticalityHigh})

	req, err := h.jit.Request(ctx, manager, it.ID, "audit", 1)
	require.NoError(t, err)

	_, err = h.jit.Approve(ctx, bob, req.ID)
	errorIs(t, err, common.ErrNotApprover)

	_, err = h.jit.Approve(ctx, manager, req.ID)
	errorIs(t, err, common.ErrSelfApproval)

	_, err = h.jit.Approve(ctx, admin, "missing")
	errorIs(t, err, common.ErrNotFound)

	got, err := h.jit.Approve(ctx, admin, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JITApproved, got.Status)
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, h.clock.Now().Add(time.Hour), *got.ExpiresAt)

	_, err = h.jit.Deny(ctx, manager2, req.ID)
	errorIs(t, err, common.ErrAlreadyDecided)
}

func TestJIT_Deny(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	it := h.seedItem(t, itemOpts{criticality: models.CriticalityHigh})

	req, err := h.jit.Request(ctx, alice, it.ID, "curious", 2)
	require.NoError(t, err)

	got, err := h.jit.Deny(ctx, manager, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JITDenied, got.Status)
	assert.Nil(t, got.ExpiresAt)
	assert.Equal(t, models.EventJITDenied, h.last(t).EventType)

	_, err = h.reveal.Reveal(ctx, alice, it.ID)
	errorIs(t, err, common.ErrForbidden)
}

func TestJIT_OneHourGrantBoundary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	it := h.seedItem(t, itemOpts{criticality: models.CriticalityHigh})

	_, err := h.reveal.Reveal(ctx, alice, it.ID)
	errorIs(t, err, common.ErrForbidden)

	req, err := h.jit.Request(ctx, alice, it.ID, "incident", 1)
	require.NoError(t, err)
	_, err = h.jit.Approve(ctx, manager, req.ID)
	require.NoError(t, err)

	res, err := h.reveal.Reveal(ctx, alice, it.ID)
	require.NoError(t, err)
	assert.Equal(t, BasisJIT, res.AccessBasis)

	h.clock.Advance(59 * time.Minute)
	_, err = h.reveal.Reveal(ctx, alice, it.ID)
	require.NoError(t, err)

	// valid through expires_at itself
	h.clock.Advance(time.Minute)
	_, err = h.reveal.Reveal(ctx, alice, it.ID)
	require.NoError(t, err)

	h.clock.Advance(time.Second)
	_, err = h.reveal.Reveal(ctx, alice, it.ID)
	errorIs(t, err, common.ErrForbidden)

	got, err := h.jit.Get(ctx, alice, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JITExpired, got.Status)

	_, err = h.jit.ActiveGrant(ctx, alice.ID, it.ID)
	errorIs(t, err, common.ErrNotFound)
}

func TestJIT_ExpireDuePersistsAndAudits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	it := h.seedItem(t, itemOpts{criticality: models.CriticalityHigh})

	req, err := h.jit.Request(ctx, alice, it.ID, "incident", 1)
	require.NoError(t, err)
	_, err = h.jit.Approve(ctx, manager, req.ID)
	require.NoError(t, err)

	n, err := h.jit.ExpireDue(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.clock.Advance(2 * time.Hour)
	n, err = h.jit.ExpireDue(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e := h.last(t)
	assert.Equal(t, models.EventJITExpired, e.EventType)
	assert.Equal(t, common.SystemActor, e.ActorID)
	assert.Equal(t, req.ID, e.SubjectID)

	n, err = h.jit.ExpireDue(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestJIT_PendingNeverExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	it := h.seedItem(t, itemOpts{criticality: models.CriticalityHigh})

	req, err := h.jit.Request(ctx, alice, it.ID, "later", 1)
	require.NoError(t, err)

	h.clock.Advance(30 * 24 * time.Hour)
	got, err := h.jit.Get(ctx, alice, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JITPending, got.Status)

	_, err = h.jit.Approve(ctx, manager, req.ID)
	require.NoError(t, err)
}

func TestJIT_ListVisibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	it := h.seedItem(t, itemOpts{criticality: models.CriticalityHigh})

	a, err := h.jit.Request(ctx, alice, it.ID, "one", 1)
	require.NoError(t, err)
	_, err = h.jit.Request(ctx, bob, it.ID, "two", 1)
	require.NoError(t, err)
	_, err = h.jit.Approve(ctx, manager, a.ID)
	require.NoError(t, err)

	mine, err := h.jit.List(ctx, alice, jit.Filter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, alice.ID, mine[0].RequesterID)

	all, err := h.jit.List(ctx, manager, jit.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	h.clock.Advance(2 * time.Hour)
	expired, err := h.jit.List(ctx, manager, jit.Filter{Status: models.JITExpired})
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, a.ID, expired[0].ID)

	approved, err := h.jit.List(ctx, manager, jit.Filter{Status: models.JITApproved})
	require.NoError(t, err)
	assert.Empty(t, approved)

	_, err = h.jit.Get(ctx, bob, a.ID)
	errorIs(t, err, common.ErrForbidden)
}

func TestJIT_ConcurrentApproveAndDenyHaveOneWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	it := h.seedItem(t, itemOpts{criticality: models.CriticalityHigh})

	req, err := h.jit.Request(ctx, alice, it.ID, "incident", 1)
	require.NoError(t, err)

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []models.JITStatus
		decided int
	)
	for i := 0; i < n; i++ {
		p := models.Principal{ID: fmt.Sprintf("u-mgr-%d", i), Role: models.RoleManager}
		approve := i%2 == 0
		wg.Add(1)
		go func() {
			defer wg.Done()
			var (
				got *models.JITRequest
				err error
			)
			if approve {
				got, err = h.jit.Approve(ctx, p, req.ID)
			} else {
				got, err = h.jit.Deny(ctx, p, req.ID)
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, got.Status)
			case errors.Is(err, common.ErrAlreadyDecided):
				decided++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, n-1, decided)

	got, err := h.jit.Get(ctx, alice, req.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], got.Status)
	assert.Equal(t, 1, h.count(t, models.EventJITApproved)+h.count(t, models.EventJITDenied))
}
