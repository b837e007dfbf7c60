package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, cfg Config) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(rdb, "ases", cfg), mr
}

func TestCreateAndGet(t *testing.T) {
	st, _ := newTestStore(t, Config{AbsoluteLifetime: time.Hour})
	ctx := context.Background()

	sess, err := st.Create(ctx, "user-1", "198.51.100.4", "curl/8.5")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("empty session id")
	}

	got, err := st.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != "user-1" || got.IP != "198.51.100.4" || got.UserAgent != "curl/8.5" {
		t.Fatalf("session = %+v", got)
	}
	if got.ExpiresAt != sess.CreatedAt+3600 {
		t.Fatalf("ExpiresAt = %d, want CreatedAt+3600", got.ExpiresAt)
	}
}

func TestGetUnknown(t *testing.T) {
	st, _ := newTestStore(t, Config{AbsoluteLifetime: time.Hour})

	if _, err := st.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestExpiredRecordIsInert(t *testing.T) {
	st, _ := newTestStore(t, Config{AbsoluteLifetime: time.Hour})
	ctx := context.Background()

	sess, err := st.Create(ctx, "user-1", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The blob still physically exists but the recorded expiry has passed.
	st.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := st.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	// The stale blob and its index entry were cleaned up on sight.
	st.now = time.Now
	if _, err := st.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v after cleanup, want ErrNotFound", err)
	}
	n, err := st.Count(ctx, "user-1")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("index still holds %d entries", n)
	}
}

func TestRedisTTLExpiry(t *testing.T) {
	st, mr := newTestStore(t, Config{AbsoluteLifetime: time.Hour})
	ctx := context.Background()

	sess, err := st.Create(ctx, "user-1", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	mr.FastForward(61 * time.Minute)
	if _, err := st.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestTouchSlidesButNeverPastAbsolute(t *testing.T) {
	st, mr := newTestStore(t, Config{
		AbsoluteLifetime: time.Hour,
		SlidingLifetime:  10 * time.Minute,
	})
	ctx := context.Background()

	sess, err := st.Create(ctx, "user-1", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ttl := mr.TTL("ases:sess:" + sess.ID)
	if ttl != 10*time.Minute {
		t.Fatalf("initial TTL = %v, want sliding lifetime", ttl)
	}

	// Mid-life: Touch re-arms the full sliding window.
	st.now = func() time.Time { return time.Unix(sess.CreatedAt, 0).Add(30 * time.Minute) }
	if err := st.Touch(ctx, sess.ID); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if ttl := mr.TTL("ases:sess:" + sess.ID); ttl != 10*time.Minute {
		t.Fatalf("renewed TTL = %v, want 10m", ttl)
	}

	// Near the absolute expiry the renewal is clipped to what remains.
	st.now = func() time.Time { return time.Unix(sess.ExpiresAt, 0).Add(-3 * time.Minute) }
	if err := st.Touch(ctx, sess.ID); err != nil {
		t.Fatalf("Touch near expiry: %v", err)
	}
	if ttl := mr.TTL("ases:sess:" + sess.ID); ttl != 3*time.Minute {
		t.Fatalf("clipped TTL = %v, want 3m", ttl)
	}

	got, err := st.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.LastSeen <= sess.LastSeen {
		t.Fatal("LastSeen not advanced")
	}
	if got.ExpiresAt != sess.ExpiresAt {
		t.Fatal("Touch moved the absolute expiry")
	}
}

func TestTouchDoesNotResurrectDestroyedSession(t *testing.T) {
	st, mr := newTestStore(t, Config{AbsoluteLifetime: time.Hour})
	ctx := context.Background()

	sess, err := st.Create(ctx, "user-1", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	loaded, err := st.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if err := st.Destroy(ctx, sess.ID); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	// A Touch that loaded the session just before the Destroy must not write
	// the blob back; a recreated blob would be invisible to DestroyAll.
	if err := st.renew(ctx, loaded); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if mr.Exists("ases:sess:" + sess.ID) {
		t.Fatal("destroyed session written back")
	}
}

func TestDestroy(t *testing.T) {
	st, _ := newTestStore(t, Config{AbsoluteLifetime: time.Hour})
	ctx := context.Background()

	sess, err := st.Create(ctx, "user-1", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := st.Destroy(ctx, sess.ID); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := st.Get(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	n, err := st.Count(ctx, "user-1")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("index still holds %d entries", n)
	}

	// Idempotent.
	if err := st.Destroy(ctx, sess.ID); err != nil {
		t.Fatalf("second Destroy: %v", err)
	}
}

func TestDestroyAll(t *testing.T) {
	st, mr := newTestStore(t, Config{AbsoluteLifetime: time.Hour})
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		sess, err := st.Create(ctx, "user-1", "", "")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, sess.ID)
	}
	other, err := st.Create(ctx, "user-2", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := st.DestroyAll(ctx, "user-1"); err != nil {
		t.Fatalf("DestroyAll: %v", err)
	}

	for _, id := range ids {
		if _, err := st.Get(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("session %s survived", id)
		}
	}
	if mr.Exists("ases:idx:user-1") {
		t.Fatal("index key survived")
	}

	// Unrelated users are untouched.
	if _, err := st.Get(ctx, other.ID); err != nil {
		t.Fatalf("other user's session lost: %v", err)
	}
}

func TestListPrunesStaleIndexEntries(t *testing.T) {
	st, mr := newTestStore(t, Config{AbsoluteLifetime: time.Hour})
	ctx := context.Background()

	keep, err := st.Create(ctx, "user-1", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	gone, err := st.Create(ctx, "user-1", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Simulate a blob that expired out of Redis while the index survived.
	mr.Del("ases:sess:" + gone.ID)

	live, err := st.List(ctx, "user-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(live) != 1 || live[0].ID != keep.ID {
		t.Fatalf("live = %+v", live)
	}

	n, err := st.Count(ctx, "user-1")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("stale index entry not pruned, count = %d", n)
	}
}

func TestMaxPerUserEvictsOldest(t *testing.T) {
	st, _ := newTestStore(t, Config{AbsoluteLifetime: time.Hour, MaxPerUser: 2})
	ctx := context.Background()

	base := time.Now()
	st.now = func() time.Time { return base }
	first, err := st.Create(ctx, "user-1", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	st.now = func() time.Time { return base.Add(time.Minute) }
	second, err := st.Create(ctx, "user-1", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	st.now = func() time.Time { return base.Add(2 * time.Minute) }
	third, err := st.Create(ctx, "user-1", "", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := st.Get(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("oldest session survived: %v", err)
	}
	for _, id := range []string{second.ID, third.ID} {
		if _, err := st.Get(ctx, id); err != nil {
			t.Fatalf("newer session %s evicted: %v", id, err)
		}
	}

	n, err := st.Count(ctx, "user-1")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}
