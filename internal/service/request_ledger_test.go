package service

import (
	"context"
	"sync"
	"testing"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStartsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.user(t, models.RoleVendor, "Victor")
	farmer := f.user(t, models.RoleFarmer, "Fiona")
	product := f.product(t, farmer)

	req, err := f.ledger.Create(ctx, CreateRequestInput{VendorID: vendor.ID, ProductID: product.ID, Quantity: 10})
	require.NoError(t, err)

	assert.NotZero(t, req.ID)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.Equal(t, farmer.ID, req.FarmerID)
	assert.Equal(t, vendor.ID, req.VendorID)
	assert.NotEqual(t, req.FarmerID, req.VendorID)
	assert.True(t, req.CreatedAt.Equal(req.UpdatedAt))

	events := f.notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, farmer.ID, events[0].userID)
	assert.Equal(t, models.EventTypeRequestCreated, events[0].event.EventType)
	assert.Equal(t, req.ID, events[0].event.Request.ID)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.user(t, models.RoleVendor, "Victor")
	farmer := f.user(t, models.RoleFarmer, "Fiona")
	otherFarmer := f.user(t, models.RoleFarmer, "Frank")
	product := f.product(t, farmer)

	tests := []struct {
		name string
		in   CreateRequestInput
		kind Kind
	}{
		{"zero quantity", CreateRequestInput{VendorID: vendor.ID, ProductID: product.ID, Quantity: 0}, KindValidation},
		{"negative quantity", CreateRequestInput{VendorID: vendor.ID, ProductID: product.ID, Quantity: -3}, KindValidation},
		{"unknown vendor", CreateRequestInput{VendorID: 999, ProductID: product.ID, Quantity: 1}, KindValidation},
		{"farmer as requester", CreateRequestInput{VendorID: otherFarmer.ID, ProductID: product.ID, Quantity: 1}, KindValidation},
		{"own product", CreateRequestInput{VendorID: farmer.ID, ProductID: product.ID, Quantity: 1}, KindValidation},
		{"unknown product", CreateRequestInput{VendorID: vendor.ID, ProductID: 999, Quantity: 1}, KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Create(ctx, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}

	assert.Empty(t, f.notifier.all())
}

func TestCreateIsIdempotentPerKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.user(t, models.RoleVendor, "Victor")
	farmer := f.user(t, models.RoleFarmer, "Fiona")
	product := f.product(t, farmer)

	in := CreateRequestInput{VendorID: vendor.ID, ProductID: product.ID, Quantity: 4, IdempotencyKey: "abc-123"}
	first, err := f.ledger.Create(ctx, in)
	require.NoError(t, err)
	second, err := f.ledger.Create(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.notifier.all(), 1)

	list, err := f.ledger.ListFor(ctx, vendor.ID, models.RoleVendor)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestIdempotencyKeyIsScopedToVendor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v1 := f.user(t, models.RoleVendor, "Victor")
	v2 := f.user(t, models.RoleVendor, "Vera")
	farmer := f.user(t, models.RoleFarmer, "Fiona")
	product := f.product(t, farmer)

	mine, err := f.ledger.Create(ctx, CreateRequestInput{VendorID: v1.ID, ProductID: product.ID, Quantity: 4, IdempotencyKey: "k"})
	require.NoError(t, err)

	theirs, err := f.ledger.Create(ctx, CreateRequestInput{VendorID: v2.ID, ProductID: product.ID, Quantity: 9, IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.NotEqual(t, mine.ID, theirs.ID)
	assert.Equal(t, v2.ID, theirs.VendorID)
	assert.Equal(t, 9, theirs.Quantity)
	assert.Len(t, f.notifier.all(), 2)
}

func TestIdempotentReplayStillValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.user(t, models.RoleVendor, "Victor")
	farmer := f.user(t, models.RoleFarmer, "Fiona")
	product := f.product(t, farmer)
	other := f.product(t, farmer)

	_, err := f.ledger.Create(ctx, CreateRequestInput{VendorID: vendor.ID, ProductID: product.ID, Quantity: 4, IdempotencyKey: "k"})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   CreateRequestInput
	}{
		{"invalid quantity", CreateRequestInput{VendorID: vendor.ID, ProductID: product.ID, Quantity: -5, IdempotencyKey: "k"}},
		{"different quantity", CreateRequestInput{VendorID: vendor.ID, ProductID: product.ID, Quantity: 5, IdempotencyKey: "k"}},
		{"different product", CreateRequestInput{VendorID: vendor.ID, ProductID: other.ID, Quantity: 4, IdempotencyKey: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Create(ctx, tt.in)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}

	list, err := f.ledger.ListFor(ctx, vendor.ID, models.RoleVendor)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Len(t, f.notifier.all(), 1)
}

func TestConcurrentCreatesWithSameKeyYieldOneRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.user(t, models.RoleVendor, "Victor")
	farmer := f.user(t, models.RoleFarmer, "Fiona")
	product := f.product(t, farmer)

	const n = 8
	in := CreateRequestInput{VendorID: vendor.ID, ProductID: product.ID, Quantity: 2, IdempotencyKey: "retry-me"}
	ids := make([]int64, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := f.ledger.Create(ctx, in)
			errs[i] = err
			if req != nil {
				ids[i] = req.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	list, err := f.ledger.ListFor(ctx, vendor.ID, models.RoleVendor)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Len(t, f.notifier.all(), 1)
}

func TestNilNotifierDiscardsEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.user(t, models.RoleVendor, "Victor")
	farmer := f.user(t, models.RoleFarmer, "Fiona")
	product := f.product(t, farmer)

	ledger := NewRequestLedger(f.store, f.store, f.store, nil)
	req, err := ledger.Create(ctx, CreateRequestInput{VendorID: vendor.ID, ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = ledger.UpdateStatus(ctx, req.ID, farmer.ID, models.RequestStatusAccepted)
	require.NoError(t, err)

	convos := NewConversationStore(f.store, f.store, nil)
	_, err = convos.Send(ctx, SendMessageInput{SenderID: vendor.ID, RecipientID: farmer.ID, Body: "thanks"})
	require.NoError(t, err)

	assert.Empty(t, f.notifier.all())
}

func TestListForFiltersBySideAndOrdersNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.user(t, models.RoleVendor, "Victor")
	farmer := f.user(t, models.RoleFarmer, "Fiona")
	product := f.product(t, farmer)

	var ids []int64
	for i := 1; i <= 3; i++ {
		req, err := f.ledger.Create(ctx, CreateRequestInput{VendorID: vendor.ID, ProductID: product.ID, Quantity: i})
		require.NoError(t, err)
		ids = append(ids, req.ID)
	}

	asFarmer, err := f.ledger.ListFor(ctx, farmer.ID, models.RoleFarmer)
	require.NoError(t, err)
	require.Len(t, asFarmer, 3)
	assert.Equal(t, ids[2], asFarmer[0].ID)
	assert.Equal(t, ids[0], asFarmer[2].ID)

	farmerAsVendor, err := f.ledger.ListFor(ctx, farmer.ID, models.RoleVendor)
	require.NoError(t, err)
	assert.Empty(t, farmerAsVendor)

	both, err := f.ledger.ListFor(ctx, vendor.ID, "")
	require.NoError(t, err)
	assert.Len(t, both, 3)

	_, err = f.ledger.ListFor(ctx, vendor.ID, models.Role("admin"))
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestRequestLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.user(t, models.RoleVendor, "Victor")
	farmer := f.user(t, models.RoleFarmer, "Fiona")
	require.Equal(t, int64(1), vendor.ID)
	require.Equal(t, int64(2), farmer.ID)
	product := f.product(t, farmer)

	req, err := f.ledger.Create(ctx, CreateRequestInput{VendorID: 1, ProductID: product.ID, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, req.Status)

	accepted, err := f.ledger.UpdateStatus(ctx, req.ID, 2, models.RequestStatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, accepted.Status)
	assert.True(t, accepted.UpdatedAt.After(req.UpdatedAt))

	completed, err := f.ledger.UpdateStatus(ctx, req.ID, 1, models.RequestStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCompleted, completed.Status)
	assert.True(t, completed.UpdatedAt.After(accepted.UpdatedAt))

	_, err = f.ledger.UpdateStatus(ctx, req.ID, 2, models.RequestStatusPending)
	assert.Equal(t, KindInvalidTransition, KindOf(err))

	events := f.notifier.all()
	require.Len(t, events, 3)
	// farmer accepted, so the vendor hears about it; vendor completed, so the farmer does
	assert.Equal(t, models.EventTypeRequestUpdated, events[1].event.EventType)
	assert.Equal(t, vendor.ID, events[1].userID)
	assert.Equal(t, models.RequestStatusAccepted, events[1].event.Request.Status)
	assert.Equal(t, farmer.ID, events[2].userID)
	assert.Equal(t, models.RequestStatusCompleted, events[2].event.Request.Status)
}

func TestUpdateStatusAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.user(t, models.RoleVendor, "Victor")
	farmer := f.user(t, models.RoleFarmer, "Fiona")
	stranger := f.user(t, models.RoleVendor, "Sam")
	product := f.product(t, farmer)

	create := func() *models.PurchaseRequest {
		req, err := f.ledger.Create(ctx, CreateRequestInput{VendorID: vendor.ID, ProductID: product.ID, Quantity: 1})
		require.NoError(t, err)
		return req
	}

	t.Run("vendor cannot accept or reject", func(t *testing.T) {
		req := create()
		for _, to := range []models.RequestStatus{models.RequestStatusAccepted, models.RequestStatusRejected} {
			_, err := f.ledger.UpdateStatus(ctx, req.ID, vendor.ID, to)
			assert.Equal(t, KindAuthorization, KindOf(err), to)
		}
	})

	t.Run("third party is never authorized", func(t *testing.T) {
		req := create()
		_, err := f.ledger.UpdateStatus(ctx, req.ID, stranger.ID, models.RequestStatusAccepted)
		assert.Equal(t, KindAuthorization, KindOf(err))

		_, err = f.ledger.UpdateStatus(ctx, req.ID, farmer.ID, models.RequestStatusAccepted)
		require.NoError(t, err)
		_, err = f.ledger.UpdateStatus(ctx, req.ID, stranger.ID, models.RequestStatusCompleted)
		assert.Equal(t, KindAuthorization, KindOf(err))
	})

	t.Run("farmer may complete", func(t *testing.T) {
		req := create()
		_, err := f.ledger.UpdateStatus(ctx, req.ID, farmer.ID, models.RequestStatusAccepted)
		require.NoError(t, err)
		done, err := f.ledger.UpdateStatus(ctx, req.ID, farmer.ID, models.RequestStatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, models.RequestStatusCompleted, done.Status)
	})

	t.Run("rejected is terminal", func(t *testing.T) {
		req := create()
		_, err := f.ledger.UpdateStatus(ctx, req.ID, farmer.ID, models.RequestStatusRejected)
		require.NoError(t, err)
		for _, to := range models.AllRequestStatuses {
			_, err := f.ledger.UpdateStatus(ctx, req.ID, farmer.ID, to)
			assert.Equal(t, KindInvalidTransition, KindOf(err), to)
		}
	})

	t.Run("pending cannot skip to completed", func(t *testing.T) {
		req := create()
		_, err := f.ledger.UpdateStatus(ctx, req.ID, vendor.ID, models.RequestStatusCompleted)
		assert.Equal(t, KindInvalidTransition, KindOf(err))
	})

	t.Run("unknown status and request", func(t *testing.T) {
		req := create()
		_, err := f.ledger.UpdateStatus(ctx, req.ID, farmer.ID, models.RequestStatus("shipped"))
		assert.Equal(t, KindValidation, KindOf(err))

		_, err = f.ledger.UpdateStatus(ctx, 9999, farmer.ID, models.RequestStatusAccepted)
		assert.Equal(t, KindNotFound, KindOf(err))
	})
}

func TestConcurrentUpdatesExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.user(t, models.RoleVendor, "Victor")
	farmer := f.user(t, models.RoleFarmer, "Fiona")
	product := f.product(t, farmer)

	req, err := f.ledger.Create(ctx, CreateRequestInput{VendorID: vendor.ID, ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	targets := []models.RequestStatus{models.RequestStatusAccepted, models.RequestStatusRejected}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, to := range targets {
		wg.Add(1)
		go func(i int, to models.RequestStatus) {
			defer wg.Done()
			_, errs[i] = f.ledger.UpdateStatus(ctx, req.ID, farmer.ID, to)
		}(i, to)
	}
	wg.Wait()

	var winners []models.RequestStatus
	for i, err := range errs {
		if err == nil {
			winners = append(winners, targets[i])
			continue
		}
		assert.Equal(t, KindInvalidTransition, KindOf(err))
	}
	require.Len(t, winners, 1)

	stored, err := f.ledger.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], stored.Status)
}

// staleReads serves a snapshot taken before another writer got in, so the
// ledger's read-time check passes and only the write-time check can catch it.
type staleReads struct {
	*store.Store
	snapshot *models.PurchaseRequest
}

func (s *staleReads) GetRequestByID(ctx context.Context, id int64) (*models.PurchaseRequest, error) {
	c := *s.snapshot
	return &c, nil
}

func TestStaleReadLosesAtWriteTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	vendor := f.user(t, models.RoleVendor, "Victor")
	farmer := f.user(t, models.RoleFarmer, "Fiona")
	product := f.product(t, farmer)

	req, err := f.ledger.Create(ctx, CreateRequestInput{VendorID: vendor.ID, ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	_, err = f.ledger.UpdateStatus(ctx, req.ID, farmer.ID, models.RequestStatusRejected)
	require.NoError(t, err)

	stale := NewRequestLedger(&staleReads{Store: f.store, snapshot: req}, f.store, f.store, f.notifier)
	_, err = stale.UpdateStatus(ctx, req.ID, farmer.ID, models.RequestStatusAccepted)
	assert.Equal(t, KindInvalidTransition, KindOf(err))

	stored, err := f.store.GetRequestByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, stored.Status)
}
