package refunds

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avrportal/tindago-backend/pkg/db/models"
	"github.com/avrportal/tindago-backend/pkg/enums"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
)

// Repository defines persistence operations for the refund queue.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Enqueue(ctx context.Context, orderID, intentID uuid.UUID, amount decimal.Decimal) (*models.RefundRequest, error)
	// FetchQueued returns up to limit queued requests that have not yet
	// exhausted maxAttempts, oldest first.
	FetchQueued(ctx context.Context, limit, maxAttempts int) ([]models.RefundRequest, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.RefundRequest, error)
	MarkDispatched(ctx context.Context, requestID uuid.UUID) error
	// RecordFailure bumps the attempt counter and stores the error; once
	// attempts reach maxAttempts the row flips to failed.
	RecordFailure(ctx context.Context, requestID uuid.UUID, attemptErr error, maxAttempts int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a refund queue repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Enqueue(ctx context.Context, orderID, intentID uuid.UUID, amount decimal.Decimal) (*models.RefundRequest, error) {
	if orderID == uuid.Nil || intentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order and intent ids required")
	}
	if amount.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	request := &models.RefundRequest{
		ID:              uuid.New(),
		OrderID:         orderID,
		PaymentIntentID: intentID,
		Amount:          amount,
		Status:          enums.RefundStatusQueued,
	}
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

func (r *repository) FetchQueued(ctx context.Context, limit, maxAttempts int) ([]models.RefundRequest, error) {
	var list []models.RefundRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND attempts < ?", enums.RefundStatusQueued, maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.RefundRequest, error) {
	var list []models.RefundRequest
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *repository) MarkDispatched(ctx context.Context, requestID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.RefundRequest{}).
		Where("id = ? AND status = ?", requestID, enums.RefundStatusQueued).
		Update("status", enums.RefundStatusDispatched)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "queued refund request not found")
	}
	return nil
}

func (r *repository) RecordFailure(ctx context.Context, requestID uuid.UUID, attemptErr error, maxAttempts int) error {
	var request models.RefundRequest
	err := r.db.WithContext(ctx).
		Where("id = ?", requestID).
		First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "refund request not found")
	}
	if err != nil {
		return err
	}

	attempts := request.Attempts + 1
	updates := map[string]any{"attempts": attempts}
	if attemptErr != nil {
		updates["last_error"] = attemptErr.Error()
	}
	if attempts >= maxAttempts {
		updates["status"] = enums.RefundStatusFailed
	}
	return r.db.WithContext(ctx).
		Model(&models.RefundRequest{}).
		Where("id = ?", requestID).
		Updates(updates).Error
}
