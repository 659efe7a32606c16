package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"scamtrap/internal/domain"
)

const (
	messagesKeyPrefix = "scamtrap:messages:"
	sessionKeyPrefix  = "scamtrap:session:"
	sessionIndexKey   = "scamtrap:sessions"

	// Engagements are short-lived; keys expire well after any session ends.
	redisKeyTTL = 7 * 24 * time.Hour
)

// RedisStore implements domain.ConversationStore on Redis. Messages live in
// a list per session, session summaries in a JSON string keyed by session ID.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Logger   *slog.Logger
}

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis not reachable at %s: %w", cfg.Addr, err)
	}

	return &RedisStore{client: client, logger: cfg.Logger}, nil
}

func (s *RedisStore) SaveMessage(ctx context.Context, sessionID string, msg domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	key := messagesKeyPrefix + sessionID
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, redisKeyTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Conversation(ctx context.Context, sessionID string) ([]domain.Message, error) {
	raw, err := s.client.LRange(ctx, messagesKeyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	msgs := make([]domain.Message, 0, len(raw))
	for _, item := range raw {
		var m domain.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			s.logger.Warn("skipping undecodable message", "session", sessionID, "err", err)
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisStore) UpdateSession(ctx context.Context, rec domain.SessionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	key := sessionKeyPrefix + rec.SessionID
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, redisKeyTTL)
	pipe.SAdd(ctx, sessionIndexKey, rec.SessionID)
	pipe.Expire(ctx, sessionIndexKey, redisKeyTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) ListSessions(ctx context.Context, limit int) ([]domain.SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := s.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return nil, err
	}

	var recs []domain.SessionRecord
	for _, id := range ids {
		if len(recs) >= limit {
			break
		}
		data, err := s.client.Get(ctx, sessionKeyPrefix+id).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var rec domain.SessionRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			s.logger.Warn("skipping undecodable session", "session", id, "err", err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
