package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketplace-service/internal/models"
)

const requestColumns = "id, product_id, farmer_id, vendor_id, quantity, status, idempotency_key, created_at, updated_at"

// CreateRequest inserts a purchase request. CreatedAt and UpdatedAt must be set by the caller.
// ErrDuplicate means the vendor already has a request under the same idempotency key;
// the insert and the key check are one statement, so concurrent callers cannot both win.
func (s *Store) CreateRequest(ctx context.Context, req *models.PurchaseRequest) error {
	query := s.db.Rebind(`
		INSERT INTO purchase_requests
			(product_id, farmer_id, vendor_id, quantity, status, idempotency_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (vendor_id, idempotency_key) DO NOTHING
		RETURNING id`)

	err := s.db.GetContext(ctx, &req.ID, query,
		req.ProductID, req.FarmerID, req.VendorID, req.Quantity, req.Status,
		req.IdempotencyKey, req.CreatedAt, req.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("vendor %d idempotency key: %w", req.VendorID, ErrDuplicate)
	}
	return err
}

// GetRequestByID retrieves a purchase request by ID
func (s *Store) GetRequestByID(ctx context.Context, id int64) (*models.PurchaseRequest, error) {
	var req models.PurchaseRequest
	err := s.db.GetContext(ctx, &req,
		s.db.Rebind("SELECT "+requestColumns+" FROM purchase_requests WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("purchase request %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetRequestByIdempotencyKey retrieves the vendor's purchase request created under key.
// It returns nil, nil when the vendor has no request with the key.
func (s *Store) GetRequestByIdempotencyKey(ctx context.Context, vendorID int64, key string) (*models.PurchaseRequest, error) {
	var req models.PurchaseRequest
	err := s.db.GetContext(ctx, &req,
		s.db.Rebind("SELECT "+requestColumns+" FROM purchase_requests WHERE vendor_id = ? AND idempotency_key = ?"),
		vendorID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListRequestsForUser retrieves requests where the user is on the given side,
// or on either side when side is empty. Most recent first.
func (s *Store) ListRequestsForUser(ctx context.Context, userID int64, side models.Role) ([]models.PurchaseRequest, error) {
	var where string
	args := []interface{}{userID}
	switch side {
	case models.RoleFarmer:
		where = "farmer_id = ?"
	case models.RoleVendor:
		where = "vendor_id = ?"
	default:
		where = "(farmer_id = ? OR vendor_id = ?)"
		args = append(args, userID)
	}

	requests := []models.PurchaseRequest{}
	err := s.db.SelectContext(ctx, &requests,
		s.db.Rebind("SELECT "+requestColumns+" FROM purchase_requests WHERE "+where+" ORDER BY created_at DESC, id DESC"),
		args...)
	return requests, err
}

// UpdateRequestStatus moves a request from one status to another in a single
// conditional update. ErrConflict means the row exists but no longer has status from.
func (s *Store) UpdateRequestStatus(ctx context.Context, id int64, from, to models.RequestStatus, updatedAt time.Time) (*models.PurchaseRequest, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE purchase_requests SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`),
		to, updatedAt, id, from)
	if err != nil {
		return nil, fmt.Errorf("failed to update request status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update request status: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetRequestByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("purchase request %d is no longer %s: %w", id, from, ErrConflict)
	}

	return s.GetRequestByID(ctx, id)
}
