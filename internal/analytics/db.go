package analytics

import (
	"context"
	"database/sql"

	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/uptrace/bun"
)

// DB handles analytics database operations
type DB struct {
	bun *bun.DB
}

// NewDB creates a new analytics DB handler
func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

// CountOrdersByStatus groups all orders by their delivery status.
func (db *DB) CountOrdersByStatus(ctx context.Context) ([]models.StatusCount, error) {
	counts := []models.StatusCount{}
	err := db.bun.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("status").
		ColumnExpr("COUNT(*) AS count").
		Group("status").
		OrderExpr("status ASC").
		Scan(ctx, &counts)
	return counts, err
}

// DeliveredRevenue sums the amount of every delivered order. It is 0 when
// nothing has been delivered yet.
func (db *DB) DeliveredRevenue(ctx context.Context) (float64, error) {
	var revenue sql.NullFloat64
	err := db.bun.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("SUM(amount)").
		Where("status = ?", models.OrderStatusDelivered).
		Scan(ctx, &revenue)
	if err != nil {
		return 0, err
	}
	return revenue.Float64, nil
}

// SalesByPackage returns delivered order count and revenue per package,
// best sellers first.
func (db *DB) SalesByPackage(ctx context.Context) ([]models.PackageSales, error) {
	sales := []models.PackageSales{}
	err := db.bun.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("package_id").
		ColumnExpr("MAX(package_name) AS package_name").
		ColumnExpr("COUNT(*) AS orders").
		ColumnExpr("COALESCE(SUM(amount), 0.0) AS revenue").
		Where("status = ?", models.OrderStatusDelivered).
		Group("package_id").
		OrderExpr("revenue DESC, package_id ASC").
		Scan(ctx, &sales)
	return sales, err
}
