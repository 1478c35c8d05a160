// Package bootstrap wires configuration into the scan controller and its collaborators.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/imrishuroy/salesmail-ingest/internal/aws"
	"github.com/imrishuroy/salesmail-ingest/internal/checkpoint"
	"github.com/imrishuroy/salesmail-ingest/internal/config"
	"github.com/imrishuroy/salesmail-ingest/internal/extract"
	"github.com/imrishuroy/salesmail-ingest/internal/lock"
	"github.com/imrishuroy/salesmail-ingest/internal/mailbox"
	"github.com/imrishuroy/salesmail-ingest/internal/sales"
	"github.com/imrishuroy/salesmail-ingest/internal/scan"
	"github.com/imrishuroy/salesmail-ingest/internal/validation"
)

// App holds everything an entry point needs.
type App struct {
	Config     *config.Config
	Controller *scan.Controller
	Mailbox    *mailbox.Store
	Extractor  *extract.Extractor
	Validator  *validatorv10.Validate

	// Records reads the sink outside a run, for dry-run lookups.
	Records interface {
		Get(ctx context.Context, orderID int64) (*sales.SaleRecord, error)
	}

	// Metrics and Publisher are nil when their target is not configured.
	Metrics   *aws.MetricsPublisher
	Publisher *aws.Publisher

	closers []func() error
}

// New builds an App on top of already constructed AWS clients.
func New(ctx context.Context, cfg *config.Config, clients *aws.AWSClients) (*App, error) {
	app := &App{
		Config:    cfg,
		Mailbox:   mailbox.NewStore(clients.DynamoDB, cfg.MailboxTable),
		Extractor: extract.New(cfg.ExtractOptions()),
		Validator: validation.New(),
	}

	locker, err := app.locker(ctx, clients)
	if err != nil {
		return nil, err
	}

	opener, err := sinkOpener(cfg, clients)
	if err != nil {
		return nil, err
	}
	if err := app.records(clients); err != nil {
		return nil, err
	}

	app.Controller = scan.NewController(cfg.ScanSettings(), scan.Deps{
		Locker:     locker,
		Source:     app.Mailbox,
		Checkpoint: checkpoint.New(app.Mailbox, cfg.Labels()),
		OpenSink:   opener,
		Extractor:  app.Extractor,
		Validator:  app.Validator,
	})

	if cfg.MetricsNamespace != "" {
		app.Metrics = aws.NewMetricsPublisher(clients.CloudWatch, cfg.MetricsNamespace)
	}
	if cfg.ContinuationQueueURL != "" {
		app.Publisher = aws.NewPublisher(clients.SQS, cfg.ContinuationQueueURL)
	}
	return app, nil
}

func (a *App) locker(ctx context.Context, clients *aws.AWSClients) (lock.Locker, error) {
	cfg := a.Config
	switch cfg.LockBackend {
	case config.BackendDynamoDB:
		return lock.NewDynamoLocker(clients.DynamoDB, cfg.LockTable, cfg.LockName, cfg.LockLease), nil
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		a.closers = append(a.closers, rdb.Close)
		return lock.NewRedisLocker(rdb, cfg.LockName, cfg.LockLease), nil
	case config.BackendMemory:
		return lock.NewMemoryLocker(), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}
}

func sinkOpener(cfg *config.Config, clients *aws.AWSClients) (scan.SinkOpener, error) {
	switch cfg.SinkBackend {
	case config.BackendDynamoDB:
		return func(ctx context.Context) (scan.Sink, error) {
			return sales.NewStore(clients.DynamoDB, cfg.SalesTable), nil
		}, nil
	case config.BackendPostgres:
		return func(ctx context.Context) (scan.Sink, error) {
			s, err := sales.OpenPostgres(cfg.PostgresDSN, cfg.SalesTable)
			if err != nil {
				return nil, err
			}
			if err := s.Migrate(ctx); err != nil {
				_ = s.Close()
				return nil, err
			}
			return s, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown sink backend %q", cfg.SinkBackend)
	}
}

// records opens the lookup store. sql.Open does not dial, so a Postgres
// lookup costs nothing until it is used.
func (a *App) records(clients *aws.AWSClients) error {
	cfg := a.Config
	switch cfg.SinkBackend {
	case config.BackendDynamoDB:
		a.Records = sales.NewStore(clients.DynamoDB, cfg.SalesTable)
	case config.BackendPostgres:
		s, err := sales.OpenPostgres(cfg.PostgresDSN, cfg.SalesTable)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, s.Close)
		a.Records = s
	}
	return nil
}

// Close releases long-lived connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
