package refresh

import (
	"context"

	"github.com/Rohianon/folio/pkg/models"
)

// Source is the backend as seen by the controller. The typed API client
// implements it; tests use fakes.
type Source interface {
	Holders(ctx context.Context) ([]models.Holder, error)
	Holdings(ctx context.Context, holderID int64) ([]models.Holding, error)
	Stocks(ctx context.Context) ([]models.Stock, error)
	Analytics(ctx context.Context, holderID int64) (*models.Analytics, error)
	Recommendations(ctx context.Context) ([]models.Recommendation, error)
	HeatMap(ctx context.Context) ([]models.HeatEntry, error)
	Diversification(ctx context.Context) (*models.Diversification, error)
	Movers(ctx context.Context) (*models.MarketMovers, error)
	Sectors(ctx context.Context) (*models.SectorPerformance, error)
	Insights(ctx context.Context) (*models.AIInsights, error)
}
