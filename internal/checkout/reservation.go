package checkout

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/feiralivre/marketplace-backend/internal/catalog"
	pkgerrors "github.com/feiralivre/marketplace-backend/pkg/errors"
)

// reserveStock takes the requested units for every checkout line inside the
// checkout transaction. Variant lines draw from variant stock, plain lines
// from product stock. The conditional decrement keeps stock non-negative
// under concurrent checkouts; any shortage aborts the whole transaction.
func reserveStock(ctx context.Context, tx *gorm.DB, catalogRepo catalog.Repository, lines []preparedLine) error {
	repo := catalogRepo.WithTx(tx)
	for _, line := range lines {
		var (
			ok  bool
			err error
		)
		if line.VariantID != nil {
			ok, err = repo.DecrementVariantStock(ctx, *line.VariantID, line.Quantity)
		} else {
			ok, err = repo.DecrementProductStock(ctx, line.ProductID, line.Quantity)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("insufficient stock for %s", line.ProductName))
		}
	}
	return nil
}
