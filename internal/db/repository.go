package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tOgg1/threadview/internal/events"
	"github.com/tOgg1/threadview/internal/models"
)

// Repository errors.
var (
	ErrThreadNotFound      = errors.New("thread not found")
	ErrInteractionNotFound = errors.New("interaction not found")
)

type queryer interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// RepositoryOption configures a repository.
type RepositoryOption func(*repoOptions)

type repoOptions struct {
	publisher events.Publisher
	now       func() time.Time
}

// WithPublisher makes the repository publish change events after each commit.
func WithPublisher(pub events.Publisher) RepositoryOption {
	return func(o *repoOptions) {
		o.publisher = pub
	}
}

// WithNow overrides the repository clock.
func WithNow(now func() time.Time) RepositoryOption {
	return func(o *repoOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []RepositoryOption) repoOptions {
	o := repoOptions{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o repoOptions) publish(ctx context.Context, event *models.Event) {
	if o.publisher == nil || event == nil {
		return
	}
	o.publisher.Publish(ctx, event)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	return time.Time{}
}

func parseNullableTime(raw sql.NullString) *time.Time {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	t := parseTime(raw.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
