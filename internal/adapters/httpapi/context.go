package httpapi

import (
	"context"

	"github.com/transportops/field-service-api/internal/app/fieldauth"
)

type claimsKey struct{}

func WithClaims(ctx context.Context, c fieldauth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func ClaimsFromContext(ctx context.Context) (fieldauth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(fieldauth.Claims)
	return c, ok && c.Customer != ""
}
