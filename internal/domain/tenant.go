package domain

import (
	"context"
	"strings"
)

// Tenant identifies the ledger tenant a dispatch runs for. Schema is the
// Postgres schema holding that tenant's ledger tables.
type Tenant struct {
	ID     string
	Schema string
}

func (t Tenant) IsZero() bool {
	return strings.TrimSpace(t.ID) == ""
}

type tenantKey struct{}

func WithTenant(ctx context.Context, tenant Tenant) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, tenantKey{}, tenant)
}

func TenantFromContext(ctx context.Context) (Tenant, bool) {
	if ctx == nil {
		return Tenant{}, false
	}
	tenant, ok := ctx.Value(tenantKey{}).(Tenant)
	if !ok || tenant.IsZero() {
		return Tenant{}, false
	}
	return tenant, true
}
