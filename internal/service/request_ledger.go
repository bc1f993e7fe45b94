package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/notify"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RequestLedger owns purchase requests and their status state machine
type RequestLedger struct {
	requests RequestRepository
	users    IdentityLookup
	products ProductCatalog
	notifier notify.Notifier
	now      func() time.Time
	logger   *zap.Logger
}

// NewRequestLedger creates a new request ledger. A nil notifier discards events.
func NewRequestLedger(
	requests RequestRepository,
	users IdentityLookup,
	products ProductCatalog,
	notifier notify.Notifier,
) *RequestLedger {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &RequestLedger{
		requests: requests,
		users:    users,
		products: products,
		notifier: notifier,
		now:      utcNow,
		logger:   util.GetLogger(),
	}
}

// CreateRequestInput represents a request to create a purchase request
type CreateRequestInput struct {
	VendorID       int64  `json:"vendorId" binding:"required"`
	ProductID      int64  `json:"productId" binding:"required"`
	Quantity       int    `json:"quantity"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// Create validates and persists a new pending request, then notifies the farmer.
// A vendor repeating an idempotency key with the same product and quantity gets
// the request created the first time back, and no second notification is sent.
func (l *RequestLedger) Create(ctx context.Context, in CreateRequestInput) (req *models.PurchaseRequest, err error) {
	ctx, span := util.StartSpan(ctx, "RequestLedger.Create",
		attribute.Int64("vendor_id", in.VendorID),
		attribute.Int64("product_id", in.ProductID))
	defer func() { util.EndSpan(span, err) }()

	if in.Quantity <= 0 {
		util.RequestsRejectedTotal.WithLabelValues("invalid_quantity").Inc()
		return nil, ValidationError("quantity must be a positive integer, got %d", in.Quantity)
	}

	vendor, err := l.users.GetUserByID(ctx, in.VendorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.RequestsRejectedTotal.WithLabelValues("unknown_vendor").Inc()
			return nil, ValidationError("vendor %d does not exist", in.VendorID)
		}
		return nil, fmt.Errorf("failed to load vendor: %w", err)
	}
	if vendor.Role != models.RoleVendor {
		util.RequestsRejectedTotal.WithLabelValues("not_a_vendor").Inc()
		return nil, ValidationError("user %d is a %s, only vendors can request products", vendor.ID, vendor.Role)
	}

	product, err := l.products.GetProductByID(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.RequestsRejectedTotal.WithLabelValues("unknown_product").Inc()
			return nil, NotFoundError("product %d not found", in.ProductID)
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if product.FarmerID == vendor.ID {
		util.RequestsRejectedTotal.WithLabelValues("own_product").Inc()
		return nil, ValidationError("user %d cannot request their own product", vendor.ID)
	}

	now := l.now()
	req = &models.PurchaseRequest{
		ProductID: product.ID,
		FarmerID:  product.FarmerID,
		VendorID:  vendor.ID,
		Quantity:  in.Quantity,
		Status:    models.RequestStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		req.IdempotencyKey = &key
	}

	if err := l.requests.CreateRequest(ctx, req); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return l.replay(ctx, req, key)
		}
		util.RequestsRejectedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create purchase request: %w", err)
	}

	util.RequestsCreatedTotal.Inc()
	l.logger.Info("Purchase request created",
		zap.Int64("request_id", req.ID),
		zap.Int64("product_id", req.ProductID),
		zap.Int64("farmer_id", req.FarmerID),
		zap.Int64("vendor_id", req.VendorID))

	l.notifier.Notify(ctx, req.FarmerID, models.NewRequestEvent(models.EventTypeRequestCreated, req))
	return req, nil
}

// replay returns the vendor's earlier request under key. The key must not be
// reused for a different product or quantity.
func (l *RequestLedger) replay(ctx context.Context, attempted *models.PurchaseRequest, key string) (*models.PurchaseRequest, error) {
	existing, err := l.requests.GetRequestByIdempotencyKey(ctx, attempted.VendorID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load request for idempotency key: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("idempotency key %q collided but no request holds it", key)
	}
	if existing.ProductID != attempted.ProductID || existing.Quantity != attempted.Quantity {
		util.RequestsRejectedTotal.WithLabelValues("idempotency_mismatch").Inc()
		return nil, ValidationError("idempotency key %q was already used for a different request", key)
	}

	l.logger.Info("Duplicate purchase request detected",
		zap.String("idempotency_key", key),
		zap.Int64("request_id", existing.ID))
	return existing, nil
}

// Get retrieves a purchase request by ID
func (l *RequestLedger) Get(ctx context.Context, id int64) (*models.PurchaseRequest, error) {
	req, err := l.requests.GetRequestByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFoundError("purchase request %d not found", id)
		}
		return nil, err
	}
	return req, nil
}

// ListFor returns the requests the user takes part in, most recent first.
// roleFilter restricts the result to one side; empty means both.
func (l *RequestLedger) ListFor(ctx context.Context, userID int64, roleFilter models.Role) ([]models.PurchaseRequest, error) {
	ctx, span := util.StartSpan(ctx, "RequestLedger.ListFor", attribute.Int64("user_id", userID))
	defer span.End()

	switch roleFilter {
	case "", models.RoleFarmer, models.RoleVendor:
	default:
		return nil, ValidationError("unknown role filter %q", roleFilter)
	}

	return l.requests.ListRequestsForUser(ctx, userID, roleFilter)
}

// UpdateStatus moves a request to newStatus on behalf of actingUserID and
// notifies the other party. The prior status is re-checked at write time, so
// of two racing updates from the same status only one succeeds.
func (l *RequestLedger) UpdateStatus(ctx context.Context, requestID, actingUserID int64, newStatus models.RequestStatus) (updated *models.PurchaseRequest, err error) {
	ctx, span := util.StartSpan(ctx, "RequestLedger.UpdateStatus",
		attribute.Int64("request_id", requestID),
		attribute.Int64("acting_user_id", actingUserID),
		attribute.String("status", string(newStatus)))
	defer func() { util.EndSpan(span, err) }()

	if !newStatus.Valid() {
		util.RequestTransitionsFailed.WithLabelValues("unknown_status").Inc()
		return nil, ValidationError("unknown status %q", newStatus)
	}

	current, err := l.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	side := SideOf(actingUserID, current)
	if side == SideNone {
		util.RequestTransitionsFailed.WithLabelValues("not_participant").Inc()
		return nil, AuthorizationError("user %d is not a party to purchase request %d", actingUserID, requestID)
	}
	if !IsLegalTransition(current.Status, newStatus) {
		util.RequestTransitionsFailed.WithLabelValues("illegal").Inc()
		return nil, InvalidTransitionError("purchase request %d cannot move from %s to %s",
			requestID, current.Status, newStatus)
	}
	if !CanTransition(side, current.Status, newStatus) {
		util.RequestTransitionsFailed.WithLabelValues("forbidden").Inc()
		return nil, AuthorizationError("the %s may not move purchase request %d from %s to %s",
			side, requestID, current.Status, newStatus)
	}

	updatedAt := l.now()
	if !updatedAt.After(current.UpdatedAt) {
		updatedAt = current.UpdatedAt.Add(time.Microsecond)
	}

	updated, err = l.requests.UpdateRequestStatus(ctx, requestID, current.Status, newStatus, updatedAt)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			util.RequestTransitionsFailed.WithLabelValues("conflict").Inc()
			return nil, InvalidTransitionError("purchase request %d changed concurrently and is no longer %s",
				requestID, current.Status)
		case errors.Is(err, store.ErrNotFound):
			return nil, NotFoundError("purchase request %d not found", requestID)
		default:
			return nil, fmt.Errorf("failed to update purchase request: %w", err)
		}
	}

	util.RequestTransitionsTotal.WithLabelValues(string(current.Status), string(newStatus)).Inc()
	l.logger.Info("Purchase request status changed",
		zap.Int64("request_id", requestID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(newStatus)),
		zap.Int64("acting_user_id", actingUserID))

	recipient := updated.VendorID
	if side.Counterpart() == SideFarmer {
		recipient = updated.FarmerID
	}
	l.notifier.Notify(ctx, recipient, models.NewRequestEvent(models.EventTypeRequestUpdated, updated))

	return updated, nil
}
