package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

const (
	DefaultLinkTTL = 24 * time.Hour
	linkTokenBytes = 32
	tokenPrefixLen = 8
)

var anonymousPrincipal = models.Principal{ID: common.AnonymousActor}

// MintedLink is returned once, to the minter. The token is the capability.
type MintedLink struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResolvedLink is the plaintext behind a link. ItemID and Title are empty
// for inline links.
type ResolvedLink struct {
	ItemID string            `json:"item_id,omitempty"`
	Title  string            `json:"title,omitempty"`
	Secret string            `json:"secret"`
	Fields map[string]string `json:"fields,omitempty"`
	NoCopy bool              `json:"no_copy"`
}

type LinkService struct {
	runner *Runner
	sealer Sealer
	ttl    time.Duration
	logger logging.Logger
	now    func() time.Time
}

func NewLinkService(runner *Runner, sealer Sealer, ttl time.Duration, logger logging.Logger) *LinkService {
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}
	return &LinkService{runner: runner, sealer: sealer, ttl: ttl, logger: logger.With("module", "links"), now: time.Now}
}

func tokenPrefix(token string) string {
	if len(token) > tokenPrefixLen {
		return token[:tokenPrefixLen]
	}
	return token
}

// Mint creates a link to itemID. p needs the same access a reveal would.
func (s *LinkService) Mint(ctx context.Context, p models.Principal, itemID string) (*MintedLink, error) {
	token, err := common.MakeRandHexString(linkTokenBytes)
	if err != nil {
		return nil, err
	}

	var out *MintedLink
	err = s.runner.Do(ctx, func(ctx context.Context, tx *Tx) error {
		now := s.now()
		it, err := tx.Items().Get(ctx, itemID)
		if err != nil {
			return err
		}
		d, err := evaluateReveal(ctx, tx, p, it, now)
		if err != nil {
			return err
		}
		if !d.Allowed() {
			return common.ErrForbidden
		}

		id := itemID
		link := &models.OneTimeLink{
			Token:     token,
			ItemID:    &id,
			CreatedBy: p.ID,
			CreatedAt: now.UTC(),
			ExpiresAt: now.Add(s.ttl).UTC(),
		}
		if err := tx.Links().Create(ctx, link); err != nil {
			return err
		}
		e := newEntry(ctx, p, models.EventLinkCreated, models.SubjectLink, tokenPrefix(token), now)
		e.VaultID = it.VaultID
		e.Details["item_id"] = itemID
		e.Details["access_basis"] = string(d.Basis)
		e.Details["expires_at"] = link.ExpiresAt.Format(time.RFC3339)
		if err := tx.Record(ctx, e); err != nil {
			return err
		}
		out = &MintedLink{Token: token, ExpiresAt: link.ExpiresAt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.LinkEvents.WithLabelValues("minted").Inc()
	s.logger.Info(ctx, "link minted", "token_prefix", tokenPrefix(token), "item_id", itemID, "by", p.ID)
	return out, nil
}

// MintInline seals plaintext into a new link that references no item.
func (s *LinkService) MintInline(ctx context.Context, p models.Principal, plaintext string) (*MintedLink, error) {
	if p.Role == models.RoleClient {
		return nil, common.ErrForbidden
	}
	if plaintext == "" {
		return nil, fmt.Errorf("%w: content is required", common.ErrValidation)
	}
	token, err := common.MakeRandHexString(linkTokenBytes)
	if err != nil {
		return nil, err
	}
	raw := []byte(plaintext)
	sealed, err := s.sealer.Encrypt(raw)
	common.WipeByteArray(raw)
	if err != nil {
		return nil, err
	}

	var out *MintedLink
	err = s.runner.Do(ctx, func(ctx context.Context, tx *Tx) error {
		now := s.now()
		link := &models.OneTimeLink{
			Token:         token,
			InlinePayload: sealed,
			CreatedBy:     p.ID,
			CreatedAt:     now.UTC(),
			ExpiresAt:     now.Add(s.ttl).UTC(),
		}
		if err := tx.Links().Create(ctx, link); err != nil {
			return err
		}
		e := newEntry(ctx, p, models.EventLinkCreated, models.SubjectLink, tokenPrefix(token), now)
		e.Details["inline"] = true
		e.Details["expires_at"] = link.ExpiresAt.Format(time.RFC3339)
		if err := tx.Record(ctx, e); err != nil {
			return err
		}
		out = &MintedLink{Token: token, ExpiresAt: link.ExpiresAt}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.LinkEvents.WithLabelValues("minted").Inc()
	s.logger.Info(ctx, "inline link minted", "token_prefix", tokenPrefix(token), "by", p.ID)
	return out, nil
}

// Resolve consumes the link and returns its plaintext. Of any number of
// concurrent callers exactly one succeeds; the others get common.ErrGone.
func (s *LinkService) Resolve(ctx context.Context, token string) (*ResolvedLink, error) {
	var out *ResolvedLink
	err := s.runner.Do(ctx, func(ctx context.Context, tx *Tx) error {
		now := s.now()
		link, err := tx.Links().Get(ctx, token)
		if err != nil {
			return err
		}
		if !link.Usable(now) {
			return common.ErrGone
		}
		ok, err := tx.Links().Consume(ctx, token, now)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrGone
		}

		res := &ResolvedLink{}
		e := newEntry(ctx, anonymousPrincipal, models.EventLinkConsumed, models.SubjectLink, tokenPrefix(token), now)
		e.Details["created_by"] = link.CreatedBy

		if link.ItemID != nil {
			it, err := tx.Items().Get(ctx, *link.ItemID)
			if err != nil {
				return err
			}
			payload, err := openPayload(s.sealer, it.EncryptedPayload)
			if err != nil {
				return err
			}
			res.ItemID, res.Title, res.NoCopy = it.ID, it.Title, it.NoCopy
			res.Secret, res.Fields = payload.Secret, payload.Fields
			e.VaultID = it.VaultID
			e.Details["item_id"] = it.ID
		} else {
			raw, err := s.sealer.Decrypt(link.InlinePayload)
			if err != nil {
				return err
			}
			res.Secret = string(raw)
			common.WipeByteArray(raw)
			e.Details["inline"] = true
		}

		if err := tx.Record(ctx, e); err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		metrics.LinkEvents.WithLabelValues("rejected").Inc()
		return nil, err
	}

	metrics.LinkEvents.WithLabelValues("consumed").Inc()
	s.logger.Info(ctx, "link consumed", "token_prefix", tokenPrefix(token))
	return out, nil
}

// PurgeExpired deletes links past their expiry, consumed or not, and
// audits the count.
func (s *LinkService) PurgeExpired(ctx context.Context) (int64, error) {
	var n int64
	err := s.runner.Do(ctx, func(ctx context.Context, tx *Tx) error {
		now := s.now()
		var err error
		n, err = tx.Links().DeleteExpired(ctx, now)
		if err != nil || n == 0 {
			return err
		}
		e := newEntry(ctx, systemPrincipal, models.EventLinkPurged, models.SubjectLink, "expired", now)
		e.Details["count"] = n
		return tx.Record(ctx, e)
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.LinkEvents.WithLabelValues("purged").Add(float64(n))
	}
	return n, nil
}
