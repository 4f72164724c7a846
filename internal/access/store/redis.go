package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"custody/internal/access/models"
	id "custody/pkg/domain"
)

const defaultKeyPrefix = "custody:roles"

// Redis keeps each role's members in a Redis set keyed by custodian and role.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis builds a Redis-backed role store. An empty prefix uses the default.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (s *Redis) key(scope id.CustodianID, role models.Role) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, scope, role)
}

func (s *Redis) Add(ctx context.Context, scope id.CustodianID, role models.Role, account id.AccountID) (bool, error) {
	n, err := s.client.SAdd(ctx, s.key(scope, role), account.String()).Result()
	if err != nil {
		return false, fmt.Errorf("add role member: %w", err)
	}
	return n == 1, nil
}

func (s *Redis) Remove(ctx context.Context, scope id.CustodianID, role models.Role, account id.AccountID) (bool, error) {
	n, err := s.client.SRem(ctx, s.key(scope, role), account.String()).Result()
	if err != nil {
		return false, fmt.Errorf("remove role member: %w", err)
	}
	return n == 1, nil
}

func (s *Redis) Contains(ctx context.Context, scope id.CustodianID, role models.Role, account id.AccountID) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.key(scope, role), account.String()).Result()
	if err != nil {
		return false, fmt.Errorf("check role member: %w", err)
	}
	return ok, nil
}

func (s *Redis) Members(ctx context.Context, scope id.CustodianID, role models.Role) ([]id.AccountID, error) {
	raw, err := s.client.SMembers(ctx, s.key(scope, role)).Result()
	if err != nil {
		return nil, fmt.Errorf("list role members: %w", err)
	}
	sort.Strings(raw)
	out := make([]id.AccountID, 0, len(raw))
	for _, v := range raw {
		account, err := id.ParseAccountID(v)
		if err != nil {
			return nil, fmt.Errorf("decode role member %q: %w", v, err)
		}
		out = append(out, account)
	}
	return out, nil
}
