package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
)

// Reporter forwards isolated failures to Sentry. A Reporter built without a
// DSN, or a nil Reporter, drops every report.
type Reporter struct {
	hub *sentry.Hub
}

func NewReporter(dsn string, environment string) (*Reporter, error) {
	if dsn == "" {
		return &Reporter{}, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init sentry: %w", err)
	}

	return NewReporterWithClient(client), nil
}

func NewReporterWithClient(client *sentry.Client) *Reporter {
	if client == nil {
		return &Reporter{}
	}
	return &Reporter{hub: sentry.NewHub(client, sentry.NewScope())}
}

func (r *Reporter) Enabled() bool {
	return r != nil && r.hub != nil
}

// Capture reports err tagged with the tenant and correlation id from ctx
// plus any extra tags.
func (r *Reporter) Capture(ctx context.Context, err error, tags map[string]string) {
	if !r.Enabled() || err == nil {
		return
	}

	hub := r.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		if tenant, ok := domain.TenantFromContext(ctx); ok {
			scope.SetTag("tenant", tenant.ID)
		}
		if correlationID, ok := CorrelationIDFromContext(ctx); ok {
			scope.SetTag("correlation_id", correlationID)
		}
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}

func (r *Reporter) Flush(timeout time.Duration) bool {
	if !r.Enabled() {
		return true
	}
	return r.hub.Flush(timeout)
}
