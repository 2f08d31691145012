package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sphllzulu/QuickPactv2/config"
	"github.com/sphllzulu/QuickPactv2/model"
)

func newTestStore(maxSessions int) *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		ttl:         time.Hour,
		now:         time.Now,
	}
}

func TestNewSessionStore(t *testing.T) {
	store := NewSessionStore(&config.SessionConfig{TTLMinutes: 30, MaxSessions: -5})

	assert.Equal(t, 0, store.maxSessions, "negative max means unlimited")
	assert.Equal(t, 30*time.Minute, store.ttl)
}

func TestSessionStoreCreateAndGet(t *testing.T) {
	store := newTestStore(100)

	sess := store.Create()
	require.NotEmpty(t, sess.ID)
	require.Same(t, sess, store.Get(sess.ID))

	view := sess.View()
	assert.Equal(t, model.PhaseInput, view.Phase)
	assert.Equal(t, "12", view.Fields.Term)

	assert.Nil(t, store.Get("non-existent"))
}

func TestSessionStoreDeleteAbandons(t *testing.T) {
	store := newTestStore(100)
	sess := store.Create()

	store.Delete(sess.ID)

	assert.Nil(t, store.Get(sess.ID))
	assert.ErrorIs(t, sess.Back(), ErrSessionClosed)

	// Deleting twice must not panic
	assert.NotPanics(t, func() { store.Delete(sess.ID) })
}

func TestSessionStoreCleanup(t *testing.T) {
	store := newTestStore(2)

	base := time.Now().Add(-time.Minute)
	oldest := NewSession("s1", base)
	store.Save(oldest)
	store.Save(NewSession("s2", base.Add(10*time.Second)))
	store.Save(NewSession("s3", base.Add(20*time.Second)))

	assert.Equal(t, 2, store.Count())
	assert.Nil(t, store.Get("s1"), "least recently active session should be evicted")
	assert.NotNil(t, store.Get("s2"))
	assert.NotNil(t, store.Get("s3"))
	assert.ErrorIs(t, oldest.Back(), ErrSessionClosed)
}

func TestSessionStoreUnlimited(t *testing.T) {
	store := newTestStore(0)

	for i := 0; i < 50; i++ {
		store.Create()
	}

	assert.Equal(t, 50, store.Count())
}

func TestSessionStoreSweep(t *testing.T) {
	store := newTestStore(0)

	store.Save(NewSession("stale", time.Now().Add(-2*time.Hour)))
	store.Save(NewSession("fresh", time.Now()))

	assert.Equal(t, 1, store.Sweep())
	assert.Nil(t, store.Get("stale"))
	assert.NotNil(t, store.Get("fresh"))
}

func TestSessionStoreSweepDisabled(t *testing.T) {
	store := newTestStore(0)
	store.ttl = 0
	store.Save(NewSession("old", time.Now().Add(-48*time.Hour)))

	assert.Equal(t, 0, store.Sweep())
}

func TestSessionStoreRunSweeperStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := newTestStore(0)
	store.Save(NewSession("old", time.Now().Add(-2*time.Hour)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.Count() == 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
