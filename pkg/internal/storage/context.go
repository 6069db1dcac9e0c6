package storage

import "context"

type contextKey struct{}

// WithManager 将 Manager 存储到 context 中.
func WithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, contextKey{}, m)
}

// FromContext 从 context 中获取 Manager，不存在时返回 nil.
func FromContext(ctx context.Context) *Manager {
	if m, ok := ctx.Value(contextKey{}).(*Manager); ok {
		return m
	}

	return nil
}
