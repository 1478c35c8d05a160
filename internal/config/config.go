// Package config loads service settings from defaults, an optional YAML file
// and the environment, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/imrishuroy/salesmail-ingest/internal/checkpoint"
	"github.com/imrishuroy/salesmail-ingest/internal/extract"
	"github.com/imrishuroy/salesmail-ingest/internal/mailbox"
	"github.com/imrishuroy/salesmail-ingest/internal/scan"
)

// Sink and lock backends
const (
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config is the full service configuration.
type Config struct {
	ServiceName string `yaml:"service_name" validate:"required"`
	LogLevel    string `yaml:"log_level"`
	RunLocal    bool   `yaml:"run_local"`

	MaxCandidates     int           `yaml:"max_candidates" validate:"gt=0"`
	FlushBatchSize    int           `yaml:"flush_batch_size" validate:"gt=0"`
	LogInterval       int           `yaml:"log_interval" validate:"gt=0"`
	TimeBudgetMinutes int           `yaml:"time_budget_minutes" validate:"gt=0"`
	TimeCheckInterval int           `yaml:"time_check_interval" validate:"gt=0"`
	DeadlineMargin    time.Duration `yaml:"deadline_margin" validate:"gte=0"`
	ExtractVariants   bool          `yaml:"extract_variants"`

	SenderFilter   string `yaml:"sender_filter"`
	SubjectFilter  string `yaml:"subject_filter"`
	ProcessedLabel string `yaml:"processed_label" validate:"required"`
	InFlightLabel  string `yaml:"inflight_label" validate:"required,nefield=ProcessedLabel"`
	MailboxTable   string `yaml:"mailbox_table" validate:"required"`

	SinkBackend string `yaml:"sink_backend" validate:"oneof=dynamodb postgres"`
	SalesTable  string `yaml:"sales_table"` // checked at run preflight
	PostgresDSN string `yaml:"postgres_dsn" validate:"required_if=SinkBackend postgres"`

	LockBackend string        `yaml:"lock_backend" validate:"oneof=dynamodb redis memory"`
	LockTable   string        `yaml:"lock_table" validate:"required_if=LockBackend dynamodb"`
	LockName    string        `yaml:"lock_name" validate:"required"`
	LockTimeout time.Duration `yaml:"lock_timeout" validate:"gte=0"`
	LockLease   time.Duration `yaml:"lock_lease" validate:"gt=0"`
	RedisAddr   string        `yaml:"redis_addr" validate:"required_if=LockBackend redis"`

	ContinuationQueueURL string `yaml:"continuation_queue_url"`
	ContinuationDelay    int32  `yaml:"continuation_delay_seconds" validate:"gte=0,lte=900"`
	MetricsNamespace     string `yaml:"metrics_namespace"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ServiceName:       "salesmail-ingest",
		LogLevel:          "info",
		MaxCandidates:     100,
		FlushBatchSize:    10,
		LogInterval:       10,
		TimeBudgetMinutes: 5,
		TimeCheckInterval: 5,
		DeadlineMargin:    30 * time.Second,
		ExtractVariants:   true,
		ProcessedLabel:    "salesmail/processed",
		InFlightLabel:     "salesmail/inflight",
		MailboxTable:      "salesmail-mailbox",
		SinkBackend:       BackendDynamoDB,
		LockBackend:       BackendDynamoDB,
		LockTable:         "salesmail-locks",
		LockName:          "salesmail-scan",
		LockTimeout:       5 * time.Second,
		LockLease:         15 * time.Minute,
		ContinuationDelay: 60,
	}
}

// Load reads CONFIG_FILE if set, then environment overrides, and validates the result.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := validatorv10.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// envReader collects the first parse error so applyEnv stays flat.
type envReader struct {
	err error
}

func (r *envReader) setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func (r *envReader) setInt(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok || r.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = n
}

func (r *envReader) setInt32(key string, dst *int32) {
	n := int(*dst)
	r.setInt(key, &n)
	*dst = int32(n)
}

func (r *envReader) setBool(key string, dst *bool) {
	v, ok := os.LookupEnv(key)
	if !ok || r.err != nil {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = b
}

func (r *envReader) setDuration(key string, dst *time.Duration) {
	v, ok := os.LookupEnv(key)
	if !ok || r.err != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = d
}

func (c *Config) applyEnv() error {
	r := &envReader{}
	r.setString("SERVICE_NAME", &c.ServiceName)
	r.setString("LOG_LEVEL", &c.LogLevel)
	r.setBool("RUN_LOCAL", &c.RunLocal)

	r.setInt("MAX_CANDIDATES", &c.MaxCandidates)
	r.setInt("FLUSH_BATCH_SIZE", &c.FlushBatchSize)
	r.setInt("LOG_INTERVAL", &c.LogInterval)
	r.setInt("TIME_BUDGET_MINUTES", &c.TimeBudgetMinutes)
	r.setInt("TIME_CHECK_INTERVAL", &c.TimeCheckInterval)
	r.setDuration("DEADLINE_MARGIN", &c.DeadlineMargin)
	r.setBool("EXTRACT_VARIANTS", &c.ExtractVariants)

	r.setString("SENDER_FILTER", &c.SenderFilter)
	r.setString("SUBJECT_FILTER", &c.SubjectFilter)
	r.setString("PROCESSED_LABEL", &c.ProcessedLabel)
	r.setString("INFLIGHT_LABEL", &c.InFlightLabel)
	r.setString("MAILBOX_TABLE", &c.MailboxTable)

	r.setString("SINK_BACKEND", &c.SinkBackend)
	r.setString("SALES_TABLE", &c.SalesTable)
	r.setString("POSTGRES_DSN", &c.PostgresDSN)

	r.setString("LOCK_BACKEND", &c.LockBackend)
	r.setString("LOCK_TABLE", &c.LockTable)
	r.setString("LOCK_NAME", &c.LockName)
	r.setDuration("LOCK_TIMEOUT", &c.LockTimeout)
	r.setDuration("LOCK_LEASE", &c.LockLease)
	r.setString("REDIS_ADDR", &c.RedisAddr)

	r.setString("CONTINUATION_QUEUE_URL", &c.ContinuationQueueURL)
	r.setInt32("CONTINUATION_DELAY_SECONDS", &c.ContinuationDelay)
	r.setString("METRICS_NAMESPACE", &c.MetricsNamespace)
	return r.err
}

// ScanSettings maps the config onto controller settings.
func (c *Config) ScanSettings() scan.Settings {
	return scan.Settings{
		MaxCandidates:     c.MaxCandidates,
		FlushBatchSize:    c.FlushBatchSize,
		LogInterval:       c.LogInterval,
		TimeBudget:        time.Duration(c.TimeBudgetMinutes) * time.Minute,
		TimeCheckInterval: c.TimeCheckInterval,
		DeadlineMargin:    c.DeadlineMargin,
		LockTimeout:       c.LockTimeout,
		Query: mailbox.Query{
			Sender:  c.SenderFilter,
			Subject: c.SubjectFilter,
		},
		SinkName: c.SalesTable,
	}
}

// ExtractOptions returns the extractor options.
func (c *Config) ExtractOptions() extract.Options {
	return extract.Options{ExtractVariants: c.ExtractVariants}
}

// Labels returns the checkpoint marker names.
func (c *Config) Labels() checkpoint.Labels {
	return checkpoint.Labels{Processed: c.ProcessedLabel, InFlight: c.InFlightLabel}
}
