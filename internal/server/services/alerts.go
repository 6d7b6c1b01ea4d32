package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/notify"
)

// Alerter sends operator alerts. Critical alerts that cannot be delivered
// leave an alert_failed entry in the audit log.
type Alerter struct {
	notifier    notify.Notifier
	runner      *Runner
	logger      logging.Logger
	baseURL     string
	sendTimeout time.Duration
	now         func() time.Time
}

// criticalSendTimeout bounds a critical delivery including its retries.
const criticalSendTimeout = 30 * time.Second

func NewAlerter(n notify.Notifier, runner *Runner, logger logging.Logger, baseURL string) *Alerter {
	if n == nil {
		n = notify.Unconfigured{}
	}
	return &Alerter{
		notifier:    n,
		runner:      runner,
		logger:      logger.With("module", "alerts"),
		baseURL:     baseURL,
		sendTimeout: criticalSendTimeout,
		now:         time.Now,
	}
}

func (a *Alerter) link(path string) string {
	if a.baseURL == "" {
		return ""
	}
	return a.baseURL + path
}

// Critical delivers alert synchronously and reports whether it arrived.
// The operation that triggered it has already committed; a failed delivery
// is logged and audited but never undoes it. Delivery outlives the caller's
// cancellation, up to sendTimeout.
func (a *Alerter) Critical(ctx context.Context, alert notify.Alert, st models.SubjectType, subjectID string) bool {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.sendTimeout)
	defer cancel()

	err := a.notifier.SendAlert(sendCtx, alert)
	if err == nil {
		return true
	}

	a.logger.Error(ctx, "critical alert not delivered", "title", alert.Title, "subject_id", subjectID, "error", err)

	e := newEntry(ctx, systemPrincipal, models.EventAlertFailed, st, subjectID, a.now())
	e.Details["title"] = alert.Title
	e.Details["error"] = err.Error()
	if rerr := a.runner.Record(context.WithoutCancel(ctx), e); rerr != nil {
		a.logger.Error(ctx, "failed to audit alert failure", "subject_id", subjectID, "error", rerr)
	}
	return false
}

// Notify delivers a best-effort alert; failures are only logged.
func (a *Alerter) Notify(ctx context.Context, alert notify.Alert) {
	if err := a.notifier.SendAlert(ctx, alert); err != nil {
		a.logger.Warn(ctx, "alert not delivered", "title", alert.Title, "error", err)
	}
}
