package models

type StatusCount struct {
	Status OrderStatus `bun:"status" json:"status"`
	Count  int         `bun:"count" json:"count"`
}

type PackageSales struct {
	PackageID   string  `bun:"package_id" json:"package_id"`
	PackageName string  `bun:"package_name" json:"package_name"`
	Orders      int     `bun:"orders" json:"orders"`
	Revenue     float64 `bun:"revenue" json:"revenue"`
}

// SalesSummary is the back-office dashboard payload.
type SalesSummary struct {
	TotalOrders      int            `json:"total_orders"`
	DeliveredRevenue float64        `json:"delivered_revenue"`
	ByStatus         []StatusCount  `json:"by_status"`
	ByPackage        []PackageSales `json:"by_package"`
}
