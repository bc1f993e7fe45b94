package service

import (
	"context"
	"sync"
	"testing"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"

	"github.com/stretchr/testify/require"
)

type sent struct {
	userID int64
	event  *models.Event
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sent
}

func (r *recordingNotifier) Notify(_ context.Context, userID int64, event *models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sent{userID: userID, event: event})
}

func (r *recordingNotifier) all() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.events...)
}

type fixture struct {
	store    *store.Store
	notifier *recordingNotifier
	ledger   *RequestLedger
	convos   *ConversationStore
}

func newFixture(t *testing.T) *fixture {
	s, err := store.NewStore(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	n := &recordingNotifier{}
	return &fixture{
		store:    s,
		notifier: n,
		ledger:   NewRequestLedger(s, s, s, n),
		convos:   NewConversationStore(s, s, n),
	}
}

func (f *fixture) user(t *testing.T, role models.Role, name string) *models.User {
	u := &models.User{Role: role, Name: name}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) product(t *testing.T, farmer *models.User) *models.Product {
	p := &models.Product{FarmerID: farmer.ID, Name: "Tomatoes", Price: 300, QuantityAvailable: 50}
	require.NoError(t, f.store.CreateProduct(context.Background(), p))
	return p
}
