package analytics

import (
	"context"
	"fmt"
	"math"

	"github.com/notdp/franxx-store-sub000/internal/models"
)

// Service handles analytics operations
type Service struct {
	db *DB
}

// NewService creates a new analytics service
func NewService(db *DB) *Service {
	return &Service{db: db}
}

// Summary builds the back-office sales dashboard.
func (s *Service) Summary(ctx context.Context) (*models.SalesSummary, error) {
	byStatus, err := s.db.CountOrdersByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count orders by status: %w", err)
	}
	revenue, err := s.db.DeliveredRevenue(ctx)
	if err != nil {
		return nil, fmt.Errorf("delivered revenue: %w", err)
	}
	byPackage, err := s.db.SalesByPackage(ctx)
	if err != nil {
		return nil, fmt.Errorf("sales by package: %w", err)
	}

	summary := &models.SalesSummary{
		DeliveredRevenue: roundCents(revenue),
		ByStatus:         byStatus,
		ByPackage:        byPackage,
	}
	for _, c := range byStatus {
		summary.TotalOrders += c.Count
	}
	for i := range summary.ByPackage {
		summary.ByPackage[i].Revenue = roundCents(summary.ByPackage[i].Revenue)
	}
	return summary, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
