package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
// Services pass it down to repos so multi-step operations can share one tx.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// DB resolves the handle a repo should use: the in-flight transaction when
// present, otherwise the fallback connection.
func (c Context) DB(fallback *gorm.DB) *gorm.DB {
	if c.Tx != nil {
		return c.Tx
	}
	return fallback
}

// Context never returns nil even when the caller forgot to attach one.
func (c Context) Context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}
