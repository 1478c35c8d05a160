package scan

import (
	"fmt"
	"strings"
	"time"

	"github.com/imrishuroy/salesmail-ingest/internal/mailbox"
)

// Settings are the tunables of one run.
type Settings struct {
	MaxCandidates     int
	FlushBatchSize    int
	LogInterval       int
	TimeBudget        time.Duration
	TimeCheckInterval int
	// DeadlineMargin is kept free before the context deadline for the final
	// flush and in-flight marking.
	DeadlineMargin time.Duration
	LockTimeout    time.Duration

	// Query carries the sender and subject filters; labels and limit are set per fetch.
	Query mailbox.Query
	// SinkName identifies the sink (table name) and is checked for placeholders.
	SinkName string
}

// DefaultSettings returns the stock tunables. SinkName must still be set.
func DefaultSettings() Settings {
	return Settings{
		MaxCandidates:     100,
		FlushBatchSize:    10,
		LogInterval:       10,
		TimeBudget:        5 * time.Minute,
		TimeCheckInterval: 5,
		DeadlineMargin:    30 * time.Second,
		LockTimeout:       5 * time.Second,
	}
}

var placeholders = []string{"CHANGE_ME", "CHANGEME", "YOUR_", "<"}

// Validate reports ErrConfiguration for unusable settings.
func (s Settings) Validate() error {
	name := strings.TrimSpace(s.SinkName)
	if name == "" {
		return fmt.Errorf("%w: sink identity not set", ErrConfiguration)
	}
	upper := strings.ToUpper(name)
	for _, p := range placeholders {
		if strings.Contains(upper, p) {
			return fmt.Errorf("%w: sink identity %q looks like a placeholder", ErrConfiguration, name)
		}
	}
	switch {
	case s.MaxCandidates <= 0:
		return fmt.Errorf("%w: max candidates must be positive", ErrConfiguration)
	case s.FlushBatchSize <= 0:
		return fmt.Errorf("%w: flush batch size must be positive", ErrConfiguration)
	case s.LogInterval <= 0:
		return fmt.Errorf("%w: log interval must be positive", ErrConfiguration)
	case s.TimeCheckInterval <= 0:
		return fmt.Errorf("%w: time check interval must be positive", ErrConfiguration)
	case s.TimeBudget <= 0:
		return fmt.Errorf("%w: time budget must be positive", ErrConfiguration)
	}
	return nil
}
