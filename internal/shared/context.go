package shared

import "context"

type companyContextKey struct{}

// ContextWithCompany stores the acting company id in context.
func ContextWithCompany(ctx context.Context, companyID string) context.Context {
	return context.WithValue(ctx, companyContextKey{}, companyID)
}

// CompanyFromContext extracts the company id from context.
// Returns the empty string when no company is bound.
func CompanyFromContext(ctx context.Context) string {
	id, _ := ctx.Value(companyContextKey{}).(string)
	return id
}
