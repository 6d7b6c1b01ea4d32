package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

// RequestMeta describes where a call came from. It is copied into every
// audit entry written on behalf of the call.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type metaKey struct{}

func WithRequestMeta(ctx context.Context, m RequestMeta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

func RequestMetaFrom(ctx context.Context) RequestMeta {
	m, _ := ctx.Value(metaKey{}).(RequestMeta)
	return m
}

var systemPrincipal = models.Principal{ID: common.SystemActor, Role: models.RoleAdmin}

func newEntry(ctx context.Context, actor models.Principal, ev models.EventType, st models.SubjectType, subjectID string, now time.Time) *models.AuditEntry {
	m := RequestMetaFrom(ctx)
	return &models.AuditEntry{
		Timestamp:   now.UTC(),
		ActorID:     actor.ID,
		ActorEmail:  actor.Email,
		EventType:   ev,
		SubjectType: st,
		SubjectID:   subjectID,
		IPAddress:   m.IP,
		UserAgent:   m.UserAgent,
		Details:     map[string]any{},
	}
}
