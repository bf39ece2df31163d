package obs

import "context"

type ctxKeyRoute struct{}

// WithRoutePattern records the router pattern that matched the request.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, ctxKeyRoute{}, pattern)
}

// RoutePatternFromContext returns the matched pattern, or an empty string
// when routing has not resolved yet.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	pattern, _ := ctx.Value(ctxKeyRoute{}).(string)
	return pattern
}
