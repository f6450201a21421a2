package mysql

import (
	"context"
	"errors"
	"fmt"

	"order-service/domain/order"
	"order-service/domain/shared"
	"order-service/infrastructure/persistence"
	"order-service/infrastructure/persistence/mysql/po"
	"order-service/infrastructure/persistence/retry"
	"order-service/infrastructure/persistence/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository MySQL/GORM implementation of order repository
// GORM associations are not used; items are written and read explicitly so the
// aggregate boundary stays in the domain.
type OrderRepository struct {
	db         *gorm.DB
	retry      retry.Config
	translator specification.Translator
}

func NewOrderRepository(db *gorm.DB, retryCfg retry.Config) *OrderRepository {
	return &OrderRepository{db: db, retry: retryCfg, translator: specification.NewGormTranslator()}
}

// getDB returns the transaction from context if available, otherwise the default db
func (r *OrderRepository) getDB(ctx context.Context) *gorm.DB {
	if tx := persistence.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

// Save upserts the order row and replaces its items in one transaction.
// Deadlocks and lock timeouts are retried unless the caller owns the transaction.
func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	orderPO, itemPOs := po.FromOrderDomain(o)

	if tx := persistence.TxFromContext(ctx); tx != nil {
		return saveWithTx(tx, orderPO, itemPOs)
	}

	return retry.ExecuteWithRetry(ctx, r.retry, func(ctx context.Context) error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return saveWithTx(tx, orderPO, itemPOs)
		})
	})
}

func saveWithTx(tx *gorm.DB, orderPO *po.OrderPO, itemPOs []po.OrderItemPO) error {
	if err := tx.Save(orderPO).Error; err != nil {
		return fmt.Errorf("save order %s: %w", orderPO.ID, err)
	}
	if err := tx.Where("order_id = ?", orderPO.ID).Delete(&po.OrderItemPO{}).Error; err != nil {
		return fmt.Errorf("clear items of %s: %w", orderPO.ID, err)
	}
	if len(itemPOs) > 0 {
		if err := tx.Create(&itemPOs).Error; err != nil {
			return fmt.Errorf("insert items of %s: %w", orderPO.ID, err)
		}
	}
	return nil
}

// FindByID locks the order row when called inside a transaction, so concurrent
// status changes of one order serialize.
func (r *OrderRepository) FindByID(ctx context.Context, id order.OrderID) (*order.Order, error) {
	db := r.getDB(ctx)
	query := db
	if persistence.TxFromContext(ctx) != nil {
		query = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var orderPO po.OrderPO

	if err := query.First(&orderPO, "id = ?", id.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.NewOrderNotFoundError(id)
		}
		return nil, err
	}

	var itemPOs []po.OrderItemPO
	if err := db.Where("order_id = ?", orderPO.ID).Order("position ASC").Find(&itemPOs).Error; err != nil {
		return nil, err
	}
	return orderPO.ToDomain(itemPOs)
}

func (r *OrderRepository) FindByUserID(ctx context.Context, userID order.UserID) ([]*order.Order, error) {
	return r.FindBySpecification(ctx, order.NewByUserIDSpecification(userID))
}

// FindBySpecification loads matching orders newest first, then all their items
// in one query. Specifications without a SQL form are applied in memory.
func (r *OrderRepository) FindBySpecification(ctx context.Context, spec shared.Specification[*order.Order]) ([]*order.Order, error) {
	db := r.getDB(ctx)
	query := db.Model(&po.OrderPO{})
	cond, pushed := r.translator.Translate(spec)
	if pushed {
		query = query.Where(cond.SQL, cond.Args...)
	}

	var orderPOs []po.OrderPO
	if err := query.Order("created_at DESC, id DESC").Find(&orderPOs).Error; err != nil {
		return nil, err
	}
	if len(orderPOs) == 0 {
		return []*order.Order{}, nil
	}

	ids := make([]string, len(orderPOs))
	for i, p := range orderPOs {
		ids[i] = p.ID
	}
	var itemPOs []po.OrderItemPO
	if err := db.Where("order_id IN ?", ids).Order("order_id, position ASC").Find(&itemPOs).Error; err != nil {
		return nil, err
	}
	byOrder := make(map[string][]po.OrderItemPO, len(orderPOs))
	for _, item := range itemPOs {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	orders := make([]*order.Order, 0, len(orderPOs))
	for i := range orderPOs {
		o, err := orderPOs[i].ToDomain(byOrder[orderPOs[i].ID])
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if !pushed && spec != nil {
		orders = shared.Filter(ctx, spec, orders)
	}
	return orders, nil
}

func (r *OrderRepository) Delete(ctx context.Context, id order.OrderID) error {
	run := func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id.String()).Delete(&po.OrderItemPO{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id.String()).Delete(&po.OrderPO{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return order.NewOrderNotFoundError(id)
		}
		return nil
	}
	if tx := persistence.TxFromContext(ctx); tx != nil {
		return run(tx)
	}
	return r.db.WithContext(ctx).Transaction(run)
}

// Compile-time interface implementation check
var _ order.Repository = (*OrderRepository)(nil)
