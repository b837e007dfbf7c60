package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when a session id does not resolve to a live
	// session: unknown, destroyed, or expired.
	ErrNotFound = errors.New("session not found")
	// ErrUnavailable indicates the Redis backend could not be reached.
	ErrUnavailable = errors.New("session backend unavailable")
)

// deleteScript removes a session blob and its index membership in one round
// trip, so a crash cannot leave the index pointing at a deleted session
// while the caller believes the delete failed.
const deleteScript = `
redis.call("SREM", KEYS[2], ARGV[1])
return redis.call("DEL", KEYS[1])
`

var deleteLua = redis.NewScript(deleteScript)

// Config tunes the session store.
type Config struct {
	// AbsoluteLifetime caps every session regardless of activity.
	AbsoluteLifetime time.Duration
	// SlidingLifetime, when positive, is the idle timeout refreshed on
	// Touch. Zero disables sliding renewal; the TTL is the absolute
	// lifetime from the start.
	SlidingLifetime time.Duration
	// MaxPerUser, when positive, caps concurrent sessions per user. The
	// oldest session is evicted to make room.
	MaxPerUser int
}

// Store persists sessions and the per-user session index in Redis.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	config Config
	now    func() time.Time
}

// NewStore creates a session Store. prefix namespaces the Redis keys.
func NewStore(redisClient redis.UniversalClient, prefix string, cfg Config) *Store {
	if prefix == "" {
		prefix = "ases"
	}
	return &Store{redis: redisClient, prefix: prefix, config: cfg, now: time.Now}
}

func (s *Store) sessKey(id string) string {
	return s.prefix + ":sess:" + id
}

func (s *Store) idxKey(userID string) string {
	return s.prefix + ":idx:" + userID
}

// Create mints a session for the user with the given device metadata and
// persists it with the configured lifetime. When the per-user cap is
// reached, the oldest sessions are evicted first.
func (s *Store) Create(ctx context.Context, userID, ip, userAgent string) (*Session, error) {
	if s.config.MaxPerUser > 0 {
		if err := s.evictForCap(ctx, userID); err != nil {
			return nil, err
		}
	}

	id, err := NewID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := &Session{
		ID:        id,
		UserID:    userID,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: now.Unix(),
		LastSeen:  now.Unix(),
		ExpiresAt: now.Add(s.config.AbsoluteLifetime).Unix(),
	}

	data, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessKey(id), data, s.initialTTL())
		pipe.SAdd(ctx, s.idxKey(userID), id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return sess, nil
}

// Get resolves a session id without mutating any state. Expired records are
// deleted on sight and reported as [ErrNotFound].
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.sessKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.ID = id

	if s.now().Unix() >= sess.ExpiresAt {
		if err := s.Destroy(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	return sess, nil
}

// Touch refreshes the session's last-activity time and sliding TTL. The
// renewed TTL never reaches past the absolute expiry recorded at creation.
func (s *Store) Touch(ctx context.Context, id string) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.renew(ctx, sess)
}

// renew writes the refreshed record back. The write is SET XX so a session
// destroyed between the read and this write stays destroyed instead of
// being resurrected outside the per-user index.
func (s *Store) renew(ctx context.Context, sess *Session) error {
	now := s.now()
	sess.LastSeen = now.Unix()

	remaining := time.Unix(sess.ExpiresAt, 0).Sub(now)
	ttl := remaining
	if s.config.SlidingLifetime > 0 && s.config.SlidingLifetime < remaining {
		ttl = s.config.SlidingLifetime
	}
	if ttl <= 0 {
		return ErrNotFound
	}

	data, err := Encode(sess)
	if err != nil {
		return err
	}
	set, err := s.redis.SetXX(ctx, s.sessKey(sess.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !set {
		return ErrNotFound
	}
	return nil
}

// Destroy removes a session and its index entry. Destroying an unknown
// session is not an error.
func (s *Store) Destroy(ctx context.Context, id string) error {
	data, err := s.redis.Get(ctx, s.sessKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return err
	}

	if err := deleteLua.Run(ctx, s.redis, []string{s.sessKey(id), s.idxKey(sess.UserID)}, id).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DestroyAll removes every session belonging to the user by walking the
// per-user index, never by scanning the keyspace.
func (s *Store) DestroyAll(ctx context.Context, userID string) error {
	ids, err := s.redis.SMembers(ctx, s.idxKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.sessKey(id))
	}
	keys = append(keys, s.idxKey(userID))

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// List returns the user's live sessions and prunes index entries whose
// sessions have already expired out of Redis.
func (s *Store) List(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.redis.SMembers(ctx, s.idxKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.sessKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	nowUnix := s.now().Unix()
	sessions := make([]*Session, 0, len(ids))
	var stale []interface{}
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				stale = append(stale, ids[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, cmdErr)
		}

		sess, decErr := Decode(data)
		if decErr != nil {
			return nil, decErr
		}
		sess.ID = ids[i]
		if nowUnix >= sess.ExpiresAt {
			continue
		}
		sessions = append(sessions, sess)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, s.idxKey(userID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return sessions, nil
}

// Count returns the number of indexed sessions for the user.
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	n, err := s.redis.SCard(ctx, s.idxKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(n), nil
}

func (s *Store) initialTTL() time.Duration {
	if s.config.SlidingLifetime > 0 && s.config.SlidingLifetime < s.config.AbsoluteLifetime {
		return s.config.SlidingLifetime
	}
	return s.config.AbsoluteLifetime
}

// evictForCap enforces MaxPerUser by destroying the oldest sessions until
// one slot is free.
func (s *Store) evictForCap(ctx context.Context, userID string) error {
	live, err := s.List(ctx, userID)
	if err != nil {
		return err
	}
	if len(live) < s.config.MaxPerUser {
		return nil
	}

	sort.Slice(live, func(i, j int) bool { return live[i].CreatedAt < live[j].CreatedAt })
	for _, victim := range live[:len(live)-s.config.MaxPerUser+1] {
		if err := s.Destroy(ctx, victim.ID); err != nil {
			return err
		}
	}
	return nil
}
