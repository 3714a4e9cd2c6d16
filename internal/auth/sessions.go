package auth

import (
	"context"

	"lethex-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// destroyScript drops a user's tracking set and every session it lists in
// one step, so no session can be added between the read and the delete.
var destroyScript = redis.NewScript(`
local ids = redis.call('SMEMBERS', KEYS[1])
for _, id in ipairs(ids) do
	redis.call('DEL', ARGV[1] .. id)
end
redis.call('DEL', KEYS[1])
return #ids
`)

// SessionStore tracks which session ids belong to which user
// (user_sessions:<user_id> set) so they can all be dropped at once.
type SessionStore struct {
	RDB *redis.Client
}

// Create writes a new session and adds it to the user's set atomically.
// It is the only place a session key is created.
func (s *SessionStore) Create(ctx context.Context, userID, sessionID string, payload []byte) error {
	_, err := s.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		setKey := middleware.UserSessionsPrefix + userID
		p.SAdd(ctx, setKey, sessionID)
		p.Expire(ctx, setKey, middleware.SessionMaxAge)
		p.Set(ctx, middleware.SessionRedisPrefix+sessionID, payload, middleware.SessionMaxAge)
		return nil
	})
	return err
}

func (s *SessionStore) Forget(ctx context.Context, userID, sessionID string) {
	if userID != "" {
		_ = s.RDB.SRem(ctx, middleware.UserSessionsPrefix+userID, sessionID).Err()
	}
	if sessionID != "" {
		_ = s.RDB.Del(ctx, middleware.SessionRedisPrefix+sessionID).Err()
	}
}

// DestroyUserSessions removes every session of a user and the tracking set.
func (s *SessionStore) DestroyUserSessions(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	n, err := destroyScript.Run(ctx, s.RDB, []string{middleware.UserSessionsPrefix + userID}, middleware.SessionRedisPrefix).Int()
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("destroying user sessions failed")
		return
	}
	log.Info().Str("user_id", userID).Int("sessions", n).Msg("user sessions destroyed")
}
