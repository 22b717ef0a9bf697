package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

const limiterKeyPrefix = "ratelimit"

// ValkeyStore keeps each window as a sorted set scored by acquisition time
// in fractional seconds. Members are random UUIDs so two acquisitions in
// the same instant stay distinct entries.
type ValkeyStore struct {
	client valkey.Client
}

func NewValkeyStore(client valkey.Client) *ValkeyStore {
	return &ValkeyStore{client: client}
}

// NewValkeyStoreFromURL connects to the Valkey server behind a
// valkey:// or redis:// URL.
func NewValkeyStoreFromURL(valkeyURL string) (*ValkeyStore, error) {
	u, err := url.Parse(valkeyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid valkey URL: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in valkey URL")
	}

	option := valkey.ClientOption{InitAddress: []string{u.Host}}
	if u.User != nil {
		option.Password, _ = u.User.Password()
	}
	client, err := valkey.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}
	return NewValkeyStore(client), nil
}

func (s *ValkeyStore) TrimAndCount(ctx context.Context, identifier string, cutoff time.Time) (int64, error) {
	key := limiterKey(identifier)

	trim := s.client.B().Zremrangebyscore().Key(key).
		Min("0").Max(scoreString(cutoff)).Build()
	if err := s.client.Do(ctx, trim).Error(); err != nil {
		return 0, fmt.Errorf("ratelimit trim %s: %w", identifier, err)
	}

	count := s.client.B().Zcard().Key(key).Build()
	result := s.client.Do(ctx, count)
	if err := result.Error(); err != nil {
		return 0, fmt.Errorf("ratelimit count %s: %w", identifier, err)
	}
	return result.AsInt64()
}

func (s *ValkeyStore) Add(ctx context.Context, identifier string, ts time.Time, keyTTL time.Duration) error {
	key := limiterKey(identifier)

	add := s.client.B().Zadd().Key(key).ScoreMember().
		ScoreMember(score(ts), uuid.NewString()).Build()
	if err := s.client.Do(ctx, add).Error(); err != nil {
		return fmt.Errorf("ratelimit add %s: %w", identifier, err)
	}

	expire := s.client.B().Expire().Key(key).Seconds(int64(keyTTL.Seconds()) + 1).Build()
	if err := s.client.Do(ctx, expire).Error(); err != nil {
		return fmt.Errorf("ratelimit expire %s: %w", identifier, err)
	}
	return nil
}

func (s *ValkeyStore) Oldest(ctx context.Context, identifier string) (time.Time, error) {
	cmd := s.client.B().Zrange().Key(limiterKey(identifier)).
		Min("0").Max("0").Withscores().Build()
	result := s.client.Do(ctx, cmd)
	if err := result.Error(); err != nil {
		return time.Time{}, fmt.Errorf("ratelimit oldest %s: %w", identifier, err)
	}

	scores, err := result.AsZScores()
	if err != nil || len(scores) == 0 {
		return time.Time{}, err
	}
	sec, frac := int64(scores[0].Score), scores[0].Score
	nsec := int64((frac - float64(sec)) * 1e9)
	return time.Unix(sec, nsec), nil
}

func (s *ValkeyStore) Reset(ctx context.Context, identifier string) error {
	cmd := s.client.B().Del().Key(limiterKey(identifier)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ratelimit reset %s: %w", identifier, err)
	}
	return nil
}

func limiterKey(identifier string) string {
	return limiterKeyPrefix + ":" + identifier
}

func score(ts time.Time) float64 {
	return float64(ts.UnixNano()) / 1e9
}

func scoreString(ts time.Time) string {
	return strconv.FormatFloat(score(ts), 'f', 6, 64)
}
