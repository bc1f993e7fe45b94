package service

import (
	"context"
	"time"

	"marketplace-service/internal/models"
)

// IdentityLookup resolves user ids
type IdentityLookup interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// ProductCatalog resolves product ids
type ProductCatalog interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
}

// RequestRepository persists purchase requests
type RequestRepository interface {
	CreateRequest(ctx context.Context, req *models.PurchaseRequest) error
	GetRequestByID(ctx context.Context, id int64) (*models.PurchaseRequest, error)
	GetRequestByIdempotencyKey(ctx context.Context, vendorID int64, key string) (*models.PurchaseRequest, error)
	ListRequestsForUser(ctx context.Context, userID int64, side models.Role) ([]models.PurchaseRequest, error)
	UpdateRequestStatus(ctx context.Context, id int64, from, to models.RequestStatus, updatedAt time.Time) (*models.PurchaseRequest, error)
}

// MessageRepository persists messages
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessagesBetween(ctx context.Context, userID1, userID2 int64) ([]models.Message, error)
	ListMessagesForUser(ctx context.Context, userID int64) ([]models.Message, error)
	MarkMessagesRead(ctx context.Context, recipientID, senderID, maxID int64, readAt time.Time) (int64, error)
}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
