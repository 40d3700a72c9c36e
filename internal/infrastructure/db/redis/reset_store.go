package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petclinic/auth-service/internal/core/domain"
)

const (
	resetTokenPrefix = "auth:reset:token:"
	resetUserPrefix  = "auth:reset:user:"
	resetExpiryIndex = "auth:reset:expiry"

	// Records outlive their expiry by this much so a late redemption is
	// reported as expired rather than unknown.
	resetGrace      = time.Hour
	maxWatchRetries = 8
)

// ResetTokenStore keeps password-reset tokens in Redis.
//
// Key layout:
//
//	auth:reset:token:<hash>  JSON record, TTL expiry+grace
//	auth:reset:user:<id>     hash of the user's current token
//	auth:reset:expiry        sorted set of hashes scored by expiry
type ResetTokenStore struct {
	client *redis.Client
}

func NewResetTokenStore(client *redis.Client) *ResetTokenStore {
	return &ResetTokenStore{client: client}
}

type resetRecord struct {
	UserID    string `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
}

// Save stores token and drops the user's previous token in the same
// transaction.
func (s *ResetTokenStore) Save(ctx context.Context, token domain.ResetToken) error {
	body, err := json.Marshal(resetRecord{UserID: token.UserID, ExpiresAt: token.ExpiresAt.Unix()})
	if err != nil {
		return fmt.Errorf("encode reset token: %w", err)
	}

	userKey := resetUserPrefix + token.UserID
	ttl := time.Until(token.ExpiresAt) + resetGrace
	if ttl <= resetGrace/2 {
		ttl = resetGrace
	}

	for i := 0; i < maxWatchRetries; i++ {
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			previous, err := tx.Get(ctx, userKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if previous != "" && previous != token.TokenHash {
					pipe.Del(ctx, resetTokenPrefix+previous)
					pipe.ZRem(ctx, resetExpiryIndex, previous)
				}
				pipe.Set(ctx, resetTokenPrefix+token.TokenHash, body, ttl)
				pipe.Set(ctx, userKey, token.TokenHash, ttl)
				pipe.ZAdd(ctx, resetExpiryIndex, redis.Z{Score: float64(token.ExpiresAt.Unix()), Member: token.TokenHash})
				return nil
			})
			return err
		}, userKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("save reset token: %w", err)
		}
		return nil
	}
	return fmt.Errorf("save reset token: %w", redis.TxFailedErr)
}

// Take deletes and returns the record for tokenHash. The DEL runs inside a
// WATCH transaction on the token key, so only one concurrent caller can win.
func (s *ResetTokenStore) Take(ctx context.Context, tokenHash string) (domain.ResetToken, error) {
	tokenKey := resetTokenPrefix + tokenHash

	for i := 0; i < maxWatchRetries; i++ {
		var taken domain.ResetToken

		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, tokenKey).Bytes()
			if err != nil {
				return err
			}

			var rec resetRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("decode reset token: %w", err)
			}

			userKey := resetUserPrefix + rec.UserID
			if err := tx.Watch(ctx, userKey).Err(); err != nil {
				return err
			}
			current, err := tx.Get(ctx, userKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, tokenKey)
				pipe.ZRem(ctx, resetExpiryIndex, tokenHash)
				if current == tokenHash {
					pipe.Del(ctx, userKey)
				}
				return nil
			})
			if err != nil {
				return err
			}

			taken = domain.ResetToken{
				UserID:    rec.UserID,
				TokenHash: tokenHash,
				ExpiresAt: time.Unix(rec.ExpiresAt, 0).UTC(),
			}
			return nil
		}, tokenKey)

		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, redis.Nil):
			return domain.ResetToken{}, domain.ErrResetTokenNotFound
		case err != nil:
			return domain.ResetToken{}, fmt.Errorf("take reset token: %w", err)
		}
		return taken, nil
	}
	return domain.ResetToken{}, domain.ErrResetTokenNotFound
}

// PurgeExpired removes every token whose expiry is before now.
func (s *ResetTokenStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	hashes, err := s.client.ZRangeByScore(ctx, resetExpiryIndex, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list expired reset tokens: %w", err)
	}

	purged := 0
	for _, h := range hashes {
		_, err := s.Take(ctx, h)
		switch {
		case err == nil:
			purged++
		case errors.Is(err, domain.ErrResetTokenNotFound):
			// Record already gone (TTL or a concurrent take); drop the index entry.
			s.client.ZRem(ctx, resetExpiryIndex, h)
		default:
			return purged, err
		}
	}
	return purged, nil
}
