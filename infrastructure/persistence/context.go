// Package persistence carries the transaction an application command runs in.
//
// Transactor.WithinTx opens a GORM transaction and stores it in the context it
// hands to fn. Repositories pick it up with TxFromContext instead of their own
// connection, so loading, changing and saving an aggregate commit or roll back
// together.
package persistence

import (
	"context"

	"order-service/infrastructure/persistence/retry"

	"gorm.io/gorm"
)

type txKey struct{}

// TxFromContext returns the transaction stored by WithinTx, or nil.
func TxFromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return nil
}

func ContextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

type Transactor struct {
	db    *gorm.DB
	retry retry.Config
}

func NewTransactor(db *gorm.DB, retryCfg retry.Config) *Transactor {
	return &Transactor{db: db, retry: retryCfg}
}

// WithinTx joins the transaction already in ctx, if any. Otherwise it opens
// one and reruns the whole of fn on deadlocks and lock timeouts, so fn must
// reload whatever it changes.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	return retry.ExecuteWithRetry(ctx, t.retry, func(ctx context.Context) error {
		return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(ContextWithTx(ctx, tx))
		})
	})
}
