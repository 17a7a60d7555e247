package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/wondough/bank/internal/security"
)

// validateCacheTTL bounds how long a cached digest-to-owner mapping is served
// without consulting the database.
const validateCacheTTL = 5 * time.Minute

// TokenService issues request/access token pairs bound to a user and resolves
// presented tokens back to their owner. Lookups go through the digest columns,
// so plaintext tokens exist only in transit. The access token itself is also
// persisted: Exchange must hand back the exact value Issue returned, and a
// digest is not reversible.
type TokenService struct {
	db     *sql.DB
	redis  *redis.Client
	policy *security.Policy
}

func NewTokenService(db *sql.DB, redisClient *redis.Client, policy *security.Policy) *TokenService {
	return &TokenService{
		db:     db,
		redis:  redisClient,
		policy: policy,
	}
}

// Issue authorizes a new application to act for the given user. It generates
// a fresh request/access token pair, persists their digests (plus the access
// token for later exchange) and returns both plaintexts. This is the only
// moment the request token exists outside the caller's possession.
func (s *TokenService) Issue(ctx context.Context, userID int) (requestToken, accessToken string, err error) {
	requestToken, err = s.policy.GenerateOpaqueToken()
	if err != nil {
		return "", "", fmt.Errorf("generating request token: %w", err)
	}
	accessToken, err = s.policy.GenerateOpaqueToken()
	if err != nil {
		return "", "", fmt.Errorf("generating access token: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO authorized_apps (owner_user_id, request_token_digest, access_token_digest, access_token)
		 VALUES ($1, $2, $3, $4)`,
		userID, s.policy.Digest(requestToken), s.policy.Digest(accessToken), accessToken)
	if err != nil {
		return "", "", fmt.Errorf("persisting authorization for user %d: %w", userID, err)
	}
	return requestToken, accessToken, nil
}

// Exchange turns a request token into its paired access token. The returned
// value is identical to the access token handed out at issuance, so Validate
// accepts it. ErrNotFound when no authorization matches.
func (s *TokenService) Exchange(ctx context.Context, requestToken string) (string, error) {
	var accessToken string
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token FROM authorized_apps WHERE request_token_digest = $1`,
		s.policy.Digest(requestToken)).Scan(&accessToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("exchanging request token: %w", err)
	}
	return accessToken, nil
}

// Validate resolves an access token to the ID of the user it was issued for.
// Results are cached in Redis keyed by digest; a nil Redis client simply
// skips the cache.
func (s *TokenService) Validate(ctx context.Context, accessToken string) (int, error) {
	digest := s.policy.Digest(accessToken)
	cacheKey := "access:" + digest

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			if userID, convErr := strconv.Atoi(cached); convErr == nil {
				return userID, nil
			}
		}
	}

	var userID int
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_user_id FROM authorized_apps WHERE access_token_digest = $1`,
		digest).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("validating access token: %w", err)
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, cacheKey, strconv.Itoa(userID), validateCacheTTL).Err(); err != nil {
			log.Printf("[TOKEN] Failed to cache token validation: %v", err)
		}
	}
	return userID, nil
}
