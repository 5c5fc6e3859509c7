package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avrportal/tindago-backend/api/middleware"
	"github.com/avrportal/tindago-backend/api/responses"
	"github.com/avrportal/tindago-backend/api/validators"
	"github.com/avrportal/tindago-backend/internal/cancellations"
	ordersvc "github.com/avrportal/tindago-backend/internal/orders"
	paymentsvc "github.com/avrportal/tindago-backend/internal/payments"
	"github.com/avrportal/tindago-backend/pkg/db/models"
	"github.com/avrportal/tindago-backend/pkg/enums"
	pkgerrors "github.com/avrportal/tindago-backend/pkg/errors"
	"github.com/avrportal/tindago-backend/pkg/logger"
)

const freeTextMaxLen = 500

// OrderCreate places a new pickup order for the authenticated buyer.
func OrderCreate(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		buyerID, err := buyerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateOrder(r.Context(), buyerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order, nil))
	}
}

// OrderGet returns one order with its items and the active payment intent.
func OrderGet(svc ordersvc.Service, paySvc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		viewer, err := viewerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), orderID, viewer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var intent *models.PaymentIntent
		if paySvc != nil && order.PaymentMethod.RequiresGateway() {
			intent, err = paySvc.ActiveIntent(r.Context(), order.ID)
			if err != nil {
				if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
				intent = nil
			}
		}

		responses.WriteSuccess(w, newOrderResponse(order, intent))
	}
}

// OrderList returns the authenticated buyer's orders, newest first.
func OrderList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		buyerID, err := buyerFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListOrders(r.Context(), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]orderResponse, len(list))
		for i := range list {
			items[i] = newOrderResponse(&list[i], nil)
		}
		responses.WriteSuccess(w, items)
	}
}

// OrderTransition advances the fulfillment status from the business console.
func OrderTransition(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		businessID, err := businessFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(orderID, businessID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.TransitionStatus(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order, nil))
	}
}

// OrderCancel cancels an order for the buyer or the business, depending on
// the authenticated role.
func OrderCancel(manager *cancellations.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if manager == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cancellation manager unavailable"))
			return
		}

		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role, err := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "actor role missing"))
			return
		}

		input := cancellations.CancelInput{
			OrderID: orderID,
			Actor:   role.CancelActor(),
		}
		switch role {
		case enums.ActorRoleBuyer:
			input.BuyerID, err = buyerFromContext(r)
		case enums.ActorRoleBusiness:
			input.BusinessID, err = businessFromContext(r)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := manager.Cancel(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order, nil))
	}
}

type createOrderRequest struct {
	BusinessID          uuid.UUID          `json:"business_id" validate:"required"`
	PickupDatetime      time.Time          `json:"pickup_datetime" validate:"required"`
	PaymentMethod       string             `json:"payment_method" validate:"required"`
	SpecialInstructions *string            `json:"special_instructions"`
	DiscountAmount      decimal.Decimal    `json:"discount_amount"`
	TaxAmount           decimal.Decimal    `json:"tax_amount"`
	Items               []orderItemPayload `json:"items" validate:"required,min=1,dive"`
}

type orderItemPayload struct {
	ProductID       uuid.UUID       `json:"product_id" validate:"required"`
	Quantity        int             `json:"quantity" validate:"required,min=1"`
	UnitPrice       decimal.Decimal `json:"unit_price" validate:"required"`
	SpecialRequests *string         `json:"special_requests"`
}

func (r createOrderRequest) toInput() (ordersvc.CreateOrderInput, error) {
	method, err := enums.ParsePaymentMethod(r.PaymentMethod)
	if err != nil {
		return ordersvc.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}

	items := make([]ordersvc.OrderItemInput, len(r.Items))
	for i, payload := range r.Items {
		items[i] = ordersvc.OrderItemInput{
			ProductID:       payload.ProductID,
			Quantity:        payload.Quantity,
			UnitPrice:       payload.UnitPrice,
			SpecialRequests: sanitizeOptional(payload.SpecialRequests),
		}
	}

	return ordersvc.CreateOrderInput{
		BusinessID:          r.BusinessID,
		PickupDatetime:      r.PickupDatetime,
		PaymentMethod:       method,
		SpecialInstructions: sanitizeOptional(r.SpecialInstructions),
		DiscountAmount:      r.DiscountAmount,
		TaxAmount:           r.TaxAmount,
		Items:               items,
	}, nil
}

type transitionRequest struct {
	Status         string `json:"status" validate:"required"`
	ExpectedStatus string `json:"expected_status"`
}

func (r transitionRequest) toInput(orderID, businessID uuid.UUID) (ordersvc.TransitionInput, error) {
	target, err := enums.ParseOrderStatus(r.Status)
	if err != nil {
		return ordersvc.TransitionInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status")
	}

	input := ordersvc.TransitionInput{
		OrderID:      orderID,
		BusinessID:   businessID,
		TargetStatus: target,
	}
	if r.ExpectedStatus != "" {
		expected, err := enums.ParseOrderStatus(r.ExpectedStatus)
		if err != nil {
			return ordersvc.TransitionInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid expected status")
		}
		input.ExpectedStatus = expected
	}
	return input, nil
}

type orderResponse struct {
	ID                  uuid.UUID            `json:"id"`
	OrderNumber         string               `json:"order_number"`
	BusinessID          uuid.UUID            `json:"business_id"`
	BuyerID             uuid.UUID            `json:"buyer_id"`
	Status              enums.OrderStatus    `json:"status"`
	PaymentMethod       enums.PaymentMethod  `json:"payment_method"`
	PaymentStatus       enums.PaymentStatus  `json:"payment_status"`
	Subtotal            decimal.Decimal      `json:"subtotal"`
	DiscountAmount      decimal.Decimal      `json:"discount_amount"`
	TaxAmount           decimal.Decimal      `json:"tax_amount"`
	TotalAmount         decimal.Decimal      `json:"total_amount"`
	PickupDatetime      time.Time            `json:"pickup_datetime"`
	ArrivalCode         *string              `json:"arrival_code,omitempty"`
	SpecialInstructions *string              `json:"special_instructions,omitempty"`
	CancelledAt         *time.Time           `json:"cancelled_at,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	Items               []orderItemResponse  `json:"items"`
	ActiveIntent        *paymentIntentDetail `json:"active_intent,omitempty"`
}

type orderItemResponse struct {
	ID              uuid.UUID       `json:"id"`
	ProductID       uuid.UUID       `json:"product_id"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	SpecialRequests *string         `json:"special_requests,omitempty"`
}

type paymentIntentDetail struct {
	ID                uuid.UUID                 `json:"id"`
	Status            enums.PaymentIntentStatus `json:"status"`
	Method            enums.PaymentMethod       `json:"method"`
	Amount            decimal.Decimal           `json:"amount"`
	ProviderReference string                    `json:"provider_reference"`
	NextActionURL     *string                   `json:"next_action_url,omitempty"`
	FailureReason     *string                   `json:"failure_reason,omitempty"`
}

func newOrderResponse(order *models.Order, intent *models.PaymentIntent) orderResponse {
	items := make([]orderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemResponse{
			ID:              item.ID,
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			TotalPrice:      item.TotalPrice,
			SpecialRequests: item.SpecialRequests,
		}
	}

	resp := orderResponse{
		ID:                  order.ID,
		OrderNumber:         order.OrderNumber,
		BusinessID:          order.BusinessID,
		BuyerID:             order.BuyerID,
		Status:              order.Status,
		PaymentMethod:       order.PaymentMethod,
		PaymentStatus:       order.PaymentStatus,
		Subtotal:            order.Subtotal,
		DiscountAmount:      order.DiscountAmount,
		TaxAmount:           order.TaxAmount,
		TotalAmount:         order.TotalAmount,
		PickupDatetime:      order.PickupDatetime,
		ArrivalCode:         order.ArrivalCode,
		SpecialInstructions: order.SpecialInstructions,
		CancelledAt:         order.CancelledAt,
		CreatedAt:           order.CreatedAt,
		Items:               items,
	}
	if intent != nil {
		resp.ActiveIntent = &paymentIntentDetail{
			ID:                intent.ID,
			Status:            intent.Status,
			Method:            intent.Method,
			Amount:            intent.Amount,
			ProviderReference: intent.ProviderReference,
			NextActionURL:     intent.NextActionURL,
			FailureReason:     intent.FailureReason,
		}
	}
	return resp
}

func sanitizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	cleaned := validators.SanitizeString(*value, freeTextMaxLen)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func orderIDFromPath(r *http.Request) (uuid.UUID, error) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}

func buyerFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.BuyerIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	buyerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid buyer identity")
	}
	return buyerID, nil
}

func businessFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.BusinessIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "business context missing")
	}
	businessID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid business context")
	}
	return businessID, nil
}

func viewerFromContext(r *http.Request) (ordersvc.Viewer, error) {
	role, err := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return ordersvc.Viewer{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "actor role missing")
	}

	viewer := ordersvc.Viewer{Role: role}
	switch role {
	case enums.ActorRoleBuyer:
		viewer.SubjectID, err = buyerFromContext(r)
		if err != nil {
			return ordersvc.Viewer{}, err
		}
	case enums.ActorRoleBusiness:
		businessID, err := businessFromContext(r)
		if err != nil {
			return ordersvc.Viewer{}, err
		}
		viewer.BusinessID = &businessID
		viewer.SubjectID, _ = uuid.Parse(middleware.BuyerIDFromContext(r.Context()))
	}
	return viewer, nil
}
