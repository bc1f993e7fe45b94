package models

import "time"

// Role of a marketplace user
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleVendor Role = "vendor"
)

// User is owned by the account service; read-only here
type User struct {
	ID        int64     `db:"id" json:"id"`
	Role      Role      `db:"role" json:"role"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Product is a farmer listing; read-only here
type Product struct {
	ID                int64     `db:"id" json:"id"`
	FarmerID          int64     `db:"farmer_id" json:"farmerId"`
	Name              string    `db:"name" json:"name"`
	Price             int64     `db:"price" json:"price"`
	QuantityAvailable int       `db:"quantity_available" json:"quantityAvailable"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
}

// RequestStatus is the lifecycle state of a purchase request
type RequestStatus string

// Request statuses
const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusAccepted  RequestStatus = "accepted"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCompleted RequestStatus = "completed"
)

// AllRequestStatuses lists every status in lifecycle order
var AllRequestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusAccepted,
	RequestStatusRejected,
	RequestStatusCompleted,
}

// Valid reports whether s is a known status
func (s RequestStatus) Valid() bool {
	for _, known := range AllRequestStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition may leave s
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusRejected || s == RequestStatusCompleted
}

// PurchaseRequest is a vendor's request to buy part of a listing
type PurchaseRequest struct {
	ID             int64         `db:"id" json:"id"`
	ProductID      int64         `db:"product_id" json:"productId"`
	FarmerID       int64         `db:"farmer_id" json:"farmerId"`
	VendorID       int64         `db:"vendor_id" json:"vendorId"`
	Quantity       int           `db:"quantity" json:"quantity"`
	Status         RequestStatus `db:"status" json:"status"`
	IdempotencyKey *string       `db:"idempotency_key" json:"idempotencyKey,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updatedAt"`
}

// Message is a direct message between two users
type Message struct {
	ID          int64      `db:"id" json:"id"`
	SenderID    int64      `db:"sender_id" json:"senderId"`
	RecipientID int64      `db:"recipient_id" json:"recipientId"`
	Body        string     `db:"body" json:"body"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	ReadAt      *time.Time `db:"read_at" json:"readAt,omitempty"`
}

// Conversation summarizes the messages a user exchanged with one counterpart.
// It is derived on read and never stored.
type Conversation struct {
	CounterpartID int64     `json:"counterpartId"`
	LastMessage   string    `json:"lastMessage"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	UnreadCount   int       `json:"unreadCount"`
}
