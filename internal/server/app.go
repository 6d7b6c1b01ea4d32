// Package server wires the vaultkeeper components together and runs the
// HTTP API and the background sweeper until the process is signalled.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/cryptox"
	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/audit"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/config"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/itemkinds"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/notify"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/services"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/sweeper"
	"github.com/gin-gonic/gin"
)

const (
	alertRetryBase = 200 * time.Millisecond
	auditRetryBase = 20 * time.Millisecond
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	rm        repomanager.RepositoryManager
	forwarder audit.Forwarder
	http      *httpapi.Server
	sweeper   *sweeper.Sweeper
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	sealer, err := newSealer(c)
	if err != nil {
		return nil, fmt.Errorf("master key init error: %w", err)
	}

	rm, err := newRepositoryManager(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	forwarder, err := newForwarder(c, logger)
	if err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("audit forwarder init error: %w", err)
	}

	var exporter audit.Exporter
	if c.S3Bucket != "" {
		exporter, err = audit.NewS3Exporter(ctx, audit.S3Config{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
		})
		if err != nil {
			_ = rm.Close()
			_ = forwarder.Close()
			return nil, fmt.Errorf("audit export init error: %w", err)
		}
	}

	runner := services.NewRunner(rm, forwarder, logger, c.AuditRetryAttempts, auditRetryBase)
	alerter := services.NewAlerter(newNotifier(ctx, c, logger), runner, logger, c.AlertBaseURL)

	svc := httpapi.Services{
		Vaults:     services.NewVaultService(runner, logger),
		Items:      services.NewItemService(runner, sealer, itemkinds.Default(), logger),
		Checkout:   services.NewCheckoutService(runner, logger),
		Reveal:     services.NewRevealService(runner, sealer, alerter, logger),
		JIT:        services.NewJITService(runner, alerter, logger),
		BreakGlass: services.NewBreakGlassService(runner, alerter, logger),
		Links:      services.NewLinkService(runner, sealer, c.LinkTTL, logger),
		Audit:      services.NewAuditService(runner, exporter, logger),
	}

	gin.SetMode(gin.ReleaseMode)
	srv := httpapi.NewServer(httpapi.Config{
		Address:       c.HTTPAddr,
		JWTSecret:     c.JWTSecret,
		LinkRateLimit: c.LinkRateLimit,
		LinkRateBurst: c.LinkRateBurst,
	}, svc, logger)

	return &App{
		config:    c,
		logger:    logger,
		rm:        rm,
		forwarder: forwarder,
		http:      srv,
		sweeper:   sweeper.New(svc.JIT, svc.Links, c.SweepInterval, logger),
	}, nil
}

func newSealer(c *config.Config) (*cryptox.Cipher, error) {
	if c.MasterKeyHex != "" {
		return cryptox.NewCipherFromHex(c.MasterKeyHex)
	}
	if c.MasterPassphrase == "" || c.MasterSalt == "" {
		return nil, fmt.Errorf("either a hex master key or a passphrase and salt are required")
	}
	return cryptox.NewCipherFromPassphrase(c.MasterPassphrase, c.MasterSalt)
}

func newRepositoryManager(ctx context.Context, c *config.Config, logger logging.Logger) (repomanager.RepositoryManager, error) {
	if c.DatabaseDSN == config.MemoryDSN {
		logger.Warn(ctx, "using in-memory store, data is lost on restart")
		return repomanager.NewInMemoryRepositoryManager(), nil
	}

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	rm := repomanager.NewPostgresRepositoryManager(db)
	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return rm, nil
}

func newForwarder(c *config.Config, logger logging.Logger) (audit.Forwarder, error) {
	brokers := splitList(c.KafkaBrokers)
	if len(brokers) == 0 {
		return audit.NopForwarder{}, nil
	}
	logger.Info(context.Background(), "forwarding audit entries to Kafka", "topic", c.KafkaTopic)
	return audit.NewKafkaForwarder(audit.KafkaConfig{Brokers: brokers, Topic: c.KafkaTopic})
}

// newNotifier fans alerts out to every configured channel. Each channel
// retries on its own so a failing one never re-sends through the others.
func newNotifier(ctx context.Context, c *config.Config, logger logging.Logger) notify.Notifier {
	retrying := func(n notify.Notifier) notify.Notifier {
		return notify.NewRetrying(n, c.AlertRetryAttempts, alertRetryBase, logger)
	}

	var channels notify.Multi
	if c.AlertWebhookURL != "" {
		channels = append(channels, retrying(notify.NewWebhookNotifier(c.AlertWebhookURL, c.AlertTimeout)))
	}
	if c.SMTPHost != "" {
		channels = append(channels, retrying(notify.NewMailNotifier(notify.MailConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			User:     c.SMTPUser,
			Password: c.SMTPPassword,
			From:     c.SMTPFrom,
			To:       splitList(c.SMTPTo),
		})))
	}
	switch len(channels) {
	case 0:
		logger.Warn(ctx, "no alert channel configured, high-priority alerts will be recorded as failed")
		return notify.Unconfigured{}
	case 1:
		return channels[0]
	}
	return channels
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a termination signal arrives, or the
// HTTP server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Wait()

	if err := app.forwarder.Close(); err != nil {
		app.logger.Error(ctx, "closing audit forwarder", "error", err)
	}
	if err := app.rm.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
