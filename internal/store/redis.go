package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verita-sec/verita/internal/core"
)

const (
	requestKeyPrefix = "verita:req:"
	partyIndexPrefix = "verita:req:party:"
)

// transitionScript is the atomic compare-and-set: the status check and the
// update happen inside one Lua invocation, so concurrent approve/reject
// calls on the same request resolve to exactly one terminal state.
var transitionScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return redis.error_reply('not_found')
end
if status ~= 'pending' then
  return redis.error_reply('conflict')
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'decided_at', ARGV[2])
return 'ok'
`)

// Redis is the durable request store. An optional TTL lets deployments
// expire undecided requests without any application-side sweeper.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

var _ core.RequestStore = (*Redis)(nil)

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (s *Redis) Create(ctx context.Context, req core.SharingRequest) error {
	key := requestKeyPrefix + req.RequestID

	fields := map[string]any{
		"owner_id":     req.OwnerID,
		"requester_id": req.RequesterID,
		"request_key":  req.RequestKey,
		"status":       string(req.Status),
		"created_at":   req.CreatedAt.Format(time.RFC3339Nano),
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.SAdd(ctx, partyIndexPrefix+req.OwnerID, req.RequestID)
	pipe.SAdd(ctx, partyIndexPrefix+req.RequesterID, req.RequestID)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("persisting request %q: %w", req.RequestID, err)
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, requestID string) (core.SharingRequest, error) {
	fields, err := s.client.HGetAll(ctx, requestKeyPrefix+requestID).Result()
	if err != nil {
		return core.SharingRequest{}, fmt.Errorf("loading request %q: %w", requestID, err)
	}
	if len(fields) == 0 {
		return core.SharingRequest{}, core.ErrRequestNotFound
	}
	return requestFromFields(requestID, fields)
}

func (s *Redis) ListByParty(ctx context.Context, customerID string) ([]core.SharingRequest, error) {
	ids, err := s.client.SMembers(ctx, partyIndexPrefix+customerID).Result()
	if err != nil {
		return nil, fmt.Errorf("listing requests for %q: %w", customerID, err)
	}

	out := make([]core.SharingRequest, 0, len(ids))
	for _, id := range ids {
		req, err := s.Get(ctx, id)
		if errors.Is(err, core.ErrRequestNotFound) {
			continue // expired; the index entry is stale
		}
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Redis) Transition(ctx context.Context, requestID string, to core.RequestStatus, decidedAt time.Time) (core.SharingRequest, error) {
	key := requestKeyPrefix + requestID

	err := transitionScript.Run(ctx, s.client, []string{key},
		string(to), decidedAt.Format(time.RFC3339Nano)).Err()
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "not_found"):
			return core.SharingRequest{}, core.ErrRequestNotFound
		case strings.Contains(err.Error(), "conflict"):
			req, getErr := s.Get(ctx, requestID)
			if getErr != nil {
				return core.SharingRequest{}, getErr
			}
			return req, core.ErrInvalidRequestTransition
		default:
			return core.SharingRequest{}, fmt.Errorf("transitioning request %q: %w", requestID, err)
		}
	}
	return s.Get(ctx, requestID)
}

func requestFromFields(requestID string, fields map[string]string) (core.SharingRequest, error) {
	req := core.SharingRequest{
		RequestID:   requestID,
		OwnerID:     fields["owner_id"],
		RequesterID: fields["requester_id"],
		RequestKey:  fields["request_key"],
		Status:      core.RequestStatus(fields["status"]),
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return core.SharingRequest{}, fmt.Errorf("request %q has invalid created_at: %w", requestID, err)
	}
	req.CreatedAt = createdAt

	if raw := fields["decided_at"]; raw != "" {
		decidedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return core.SharingRequest{}, fmt.Errorf("request %q has invalid decided_at: %w", requestID, err)
		}
		req.DecidedAt = &decidedAt
	}
	return req, nil
}
