package onboarding

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youcodecowboy/disco-grid/contract"
	"github.com/youcodecowboy/disco-grid/storage"
)

func newTestService(t *testing.T, store SessionStore) *Service {
	t.Helper()
	if store == nil {
		store = NewMemorySessionStore()
	}
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return NewService(NewCatalogHolder(testCatalog(t)), store, WithClock(func() time.Time { return fixed }))
}

func TestService_AnswerFlow(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	sess, err := svc.Start(ctx, nil)
	require.NoError(t, err)
	assert.Contains(t, sess.ID, "s-")

	state, err := svc.State(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, state.Next)
	assert.Equal(t, "company.name", state.Next.ID)
	assert.Equal(t, Progress{Answered: 0, Total: 3, RequiredMissing: 2}, state.Progress)

	_, err = svc.Answer(ctx, sess.ID, "company.name", contract.String("Acme"))
	require.NoError(t, err)
	_, err = svc.Answer(ctx, sess.ID, "company.ownBrand", contract.Bool(true))
	require.NoError(t, err)

	state, err = svc.State(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, state.Progress.Total, "brand.name is now visible")
	assert.Equal(t, 1, state.Progress.RequiredMissing)
	assert.Equal(t, "brand.name", state.Next.ID)
	assert.InDelta(t, 50.0, state.Progress.PercentComplete, 0.001)

	// Writing through an answerPath.
	_, err = svc.Answer(ctx, sess.ID, "categories", contract.Strings("Other"))
	require.NoError(t, err)
	got, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, contract.Strings("Other"), got.Contract.Lookup("products.categories"))
}

func TestService_AnswerErrors(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	sess, err := svc.Start(ctx, nil)
	require.NoError(t, err)

	_, err = svc.Answer(ctx, sess.ID, "nope", contract.String("x"))
	assert.ErrorIs(t, err, ErrUnknownQuestion)

	_, err = svc.Answer(ctx, sess.ID, "brand.name", contract.String("Blue"))
	assert.ErrorIs(t, err, ErrQuestionHidden)

	_, err = svc.Answer(ctx, sess.ID, "company.ownBrand", contract.String("yes"))
	assert.ErrorIs(t, err, ErrInvalidAnswer)

	_, err = svc.Answer(ctx, "s-missing", "company.name", contract.String("x"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestService_Complete(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	seed := mustContract(t, `{"company": {"name": "Acme", "ownBrand": false}}`)
	sess, err := svc.Start(ctx, seed)
	require.NoError(t, err)

	done, err := svc.Complete(ctx, sess.ID)
	require.NoError(t, err, "brand.name is hidden so nothing required remains")
	assert.True(t, done.Completed)
	require.NotNil(t, done.CompletedAt)

	// Seed is copied, not shared.
	require.NoError(t, seed.Set("company.name", contract.String("Changed")))
	got, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, contract.String("Acme"), got.Contract.Lookup("company.name"))
}

func TestService_CompleteIncomplete(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	sess, err := svc.Start(ctx, mustContract(t, `{"company": {"name": "Acme", "ownBrand": true}}`))
	require.NoError(t, err)

	_, err = svc.Complete(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrIncomplete)
}

// conflictOnceStore fails the first Update with a revision conflict.
type conflictOnceStore struct {
	*MemorySessionStore
	failed atomic.Bool
}

func (s *conflictOnceStore) Update(ctx context.Context, sess *Session) error {
	if s.failed.CompareAndSwap(false, true) {
		return storage.ErrConflict
	}
	return s.MemorySessionStore.Update(ctx, sess)
}

func TestService_RetriesConflict(t *testing.T) {
	store := &conflictOnceStore{MemorySessionStore: NewMemorySessionStore()}
	svc := newTestService(t, store)
	ctx := context.Background()

	sess, err := svc.Start(ctx, nil)
	require.NoError(t, err)

	_, err = svc.Answer(ctx, sess.ID, "company.name", contract.String("Acme"))
	require.NoError(t, err)
	assert.True(t, store.failed.Load())
}

func TestMemorySessionStore_StaleRevision(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	sess := NewSession()
	require.NoError(t, store.Create(ctx, sess))
	assert.ErrorIs(t, store.Create(ctx, sess), storage.ErrExists)

	a, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	b, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)

	require.NoError(t, a.Contract.Set("x", contract.Number(1)))
	require.NoError(t, store.Update(ctx, a))

	require.NoError(t, b.Contract.Set("x", contract.Number(2)))
	assert.ErrorIs(t, store.Update(ctx, b), storage.ErrConflict)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, contract.Number(1), got.Contract.Lookup("x"))
}
