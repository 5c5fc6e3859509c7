package stock

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avrportal/tindago-backend/pkg/db/models"
	"github.com/avrportal/tindago-backend/pkg/enums"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
)

// ReservationRequest asks for qty units of a single product.
type ReservationRequest struct {
	ProductID uuid.UUID
	Qty       int
}

// Reserve decrements stock for every request inside the caller's transaction.
// Rows are touched in ascending product id order so concurrent orders acquire
// locks in the same sequence. Any shortfall fails the whole batch.
func Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	ordered, err := orderRequests(requests)
	if err != nil {
		return err
	}

	for _, req := range ordered {
		res := tx.WithContext(ctx).
			Model(&models.ProductStock{}).
			Where("product_id = ? AND status = ? AND current_stock >= ?",
				req.ProductID, enums.StockStatusActive, req.Qty).
			Update("current_stock", gorm.Expr("current_stock - ?", req.Qty))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reserve stock")
		}
		if res.RowsAffected == 0 {
			return shortfallError(ctx, tx, req)
		}
	}
	return nil
}

// Restore returns previously reserved units to stock. Inactive products get
// their units back too so a later reactivation sees a correct count.
func Restore(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	ordered, err := orderRequests(requests)
	if err != nil {
		return err
	}

	for _, req := range ordered {
		res := tx.WithContext(ctx).
			Model(&models.ProductStock{}).
			Where("product_id = ?", req.ProductID).
			Update("current_stock", gorm.Expr("current_stock + ?", req.Qty))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "restore stock")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "stock row missing").
				WithDetails(map[string]any{"product_id": req.ProductID})
		}
	}
	return nil
}

func orderRequests(requests []ReservationRequest) ([]ReservationRequest, error) {
	if len(requests) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no stock requests")
	}
	seen := make(map[uuid.UUID]bool, len(requests))
	ordered := make([]ReservationRequest, len(requests))
	copy(ordered, requests)
	for _, req := range ordered {
		if req.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"product_id": req.ProductID})
		}
		if seen[req.ProductID] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in stock request").
				WithDetails(map[string]any{"product_id": req.ProductID})
		}
		seen[req.ProductID] = true
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ProductID.String() < ordered[j].ProductID.String()
	})
	return ordered, nil
}

func shortfallError(ctx context.Context, tx *gorm.DB, req ReservationRequest) error {
	var row models.ProductStock
	err := tx.WithContext(ctx).
		Where("product_id = ?", req.ProductID).
		First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": req.ProductID})
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load stock row")
	case row.Status != enums.StockStatusActive:
		return pkgerrors.New(pkgerrors.CodeConflict, "product unavailable").
			WithDetails(map[string]any{"product_id": req.ProductID})
	default:
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
			WithDetails(map[string]any{
				"product_id": req.ProductID,
				"requested":  req.Qty,
				"available":  row.CurrentStock,
			})
	}
}
