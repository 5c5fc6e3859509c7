package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avrportal/tindago-backend/pkg/db/models"
	"github.com/avrportal/tindago-backend/pkg/enums"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
)

// Repository defines persistence operations for payment intents.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error)
	FindByID(ctx context.Context, intentID uuid.UUID) (*models.PaymentIntent, error)
	// FindActiveByOrder returns the newest non-superseded intent for the
	// order, or a not-found error when the order has never started a
	// gateway payment.
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentIntent, error)
	FindByProviderReference(ctx context.Context, providerRef string) (*models.PaymentIntent, error)
	MarkSuperseded(ctx context.Context, intentID uuid.UUID) error
	UpdateStatus(ctx context.Context, intentID uuid.UUID, status enums.PaymentIntentStatus, failureReason, providerPaymentID *string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payment intent repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error) {
	if err := r.db.WithContext(ctx).Create(intent).Error; err != nil {
		return nil, err
	}
	return intent, nil
}

func (r *repository) FindByID(ctx context.Context, intentID uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("id = ?", intentID).
		First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND superseded = ?", orderID, false).
		Order("created_at DESC").
		First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active payment intent")
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) FindByProviderReference(ctx context.Context, providerRef string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("provider_reference = ?", providerRef).
		First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *repository) MarkSuperseded(ctx context.Context, intentID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ?", intentID).
		Update("superseded", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, intentID uuid.UUID, status enums.PaymentIntentStatus, failureReason, providerPaymentID *string) error {
	updates := map[string]any{"status": status}
	if failureReason != nil {
		updates["failure_reason"] = *failureReason
	}
	if providerPaymentID != nil {
		updates["provider_payment_id"] = *providerPaymentID
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ?", intentID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
	}
	return nil
}
