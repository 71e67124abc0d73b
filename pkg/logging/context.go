package logging

import "context"

type contextKey int

const (
	modelIDKey contextKey = iota
	tokenInfoKey
)

// WithModelID annotates the context with the model serving the current call.
func WithModelID(ctx context.Context, modelID string) context.Context {
	return context.WithValue(ctx, modelIDKey, modelID)
}

// GetModelID returns the model ID stored in the context, if any.
func GetModelID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(modelIDKey).(string)
	return id, ok
}

// WithTokenInfo annotates the context with token usage for the current call.
func WithTokenInfo(ctx context.Context, info *TokenInfo) context.Context {
	return context.WithValue(ctx, tokenInfoKey, info)
}

// GetTokenInfo returns the token usage stored in the context, if any.
func GetTokenInfo(ctx context.Context) (*TokenInfo, bool) {
	info, ok := ctx.Value(tokenInfoKey).(*TokenInfo)
	return info, ok
}
