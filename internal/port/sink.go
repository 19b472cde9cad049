package port

import (
	"context"

	"github.com/nvoronina/market-sim/internal/domain"
)

// TradeSink receives completed transactions for audit and statistics. Sinks
// are fed from a buffered stream; when the stream backs up records are
// dropped, never the match.
type TradeSink interface {
	RecordTransaction(ctx context.Context, t *domain.Transaction) error
}
