package service

import (
	"marketplace-service/internal/models"
)

// Side is the role an actor plays relative to one purchase request
type Side string

const (
	SideNone   Side = ""
	SideFarmer Side = "farmer"
	SideVendor Side = "vendor"
)

type transition struct {
	from models.RequestStatus
	to   models.RequestStatus
}

// transitions lists every legal status change and the sides allowed to make it.
// Pairs absent from the table are illegal for everyone.
var transitions = map[transition]map[Side]bool{
	{models.RequestStatusPending, models.RequestStatusAccepted}:   {SideFarmer: true},
	{models.RequestStatusPending, models.RequestStatusRejected}:   {SideFarmer: true},
	{models.RequestStatusAccepted, models.RequestStatusCompleted}: {SideFarmer: true, SideVendor: true},
}

// SideOf resolves which side of the request the actor is on
func SideOf(actorID int64, req *models.PurchaseRequest) Side {
	switch actorID {
	case req.FarmerID:
		return SideFarmer
	case req.VendorID:
		return SideVendor
	default:
		return SideNone
	}
}

// IsLegalTransition reports whether the state machine has an edge from -> to
func IsLegalTransition(from, to models.RequestStatus) bool {
	_, ok := transitions[transition{from, to}]
	return ok
}

// CanTransition reports whether an actor on the given side may move a request from -> to
func CanTransition(side Side, from, to models.RequestStatus) bool {
	return transitions[transition{from, to}][side]
}

// Counterpart returns the other side
func (s Side) Counterpart() Side {
	switch s {
	case SideFarmer:
		return SideVendor
	case SideVendor:
		return SideFarmer
	default:
		return SideNone
	}
}
