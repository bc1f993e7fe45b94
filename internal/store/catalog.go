package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace-service/internal/models"
)

const userColumns = "id, role, name, created_at"

const productColumns = "id, farmer_id, name, price, quantity_available, created_at"

// CreateUser inserts a user. Accounts are owned elsewhere; this exists for seeding and tests.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	user.CreatedAt = now()
	query := s.db.Rebind(`
		INSERT INTO users (role, name, created_at)
		VALUES (?, ?, ?)
		RETURNING id`)

	return s.db.GetContext(ctx, &user.ID, query, user.Role, user.Name, user.CreatedAt)
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		s.db.Rebind("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateProduct inserts a product listing. Used for seeding and tests.
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	product.CreatedAt = now()
	query := s.db.Rebind(`
		INSERT INTO products (farmer_id, name, price, quantity_available, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)

	return s.db.GetContext(ctx, &product.ID, query,
		product.FarmerID, product.Name, product.Price, product.QuantityAvailable, product.CreatedAt)
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		s.db.Rebind("SELECT "+productColumns+" FROM products WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves all products, or only one farmer's when farmerID is non-zero
func (s *Store) GetProducts(ctx context.Context, farmerID int64) ([]models.Product, error) {
	products := []models.Product{}
	var err error
	if farmerID != 0 {
		err = s.db.SelectContext(ctx, &products,
			s.db.Rebind("SELECT "+productColumns+" FROM products WHERE farmer_id = ? ORDER BY id"), farmerID)
	} else {
		err = s.db.SelectContext(ctx, &products,
			"SELECT "+productColumns+" FROM products ORDER BY id")
	}
	return products, err
}
