package port

import (
	"context"

	"github.com/nvoronina/market-sim/internal/domain"
)

// BookCache stores the latest top-of-book snapshot for presentation layers.
type BookCache interface {
	SetBook(ctx context.Context, symbol string, snap *domain.BookSnapshot) error
	GetBook(ctx context.Context, symbol string) (*domain.BookSnapshot, error)
	Invalidate(ctx context.Context, symbol string) error
}
