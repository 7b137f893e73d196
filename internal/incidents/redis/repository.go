// Package redis provides Redis implementation of incidents repository.
//
// Layout under the key prefix:
//
//	{prefix}:incident:{id}      JSON incident
//	{prefix}:incidents:all      ZSET of ids scored by created_at (unix micro)
//	{prefix}:incidents:active   ZSET of non-resolved ids scored by created_at
//	{prefix}:incidents:resolved ZSET of resolved ids scored by resolved_at
//	{prefix}:timeline:{id}      LIST of JSON events; seq is the 1-based list position
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bissquit/ops-triage-hub/internal/domain"
	"github.com/bissquit/ops-triage-hub/internal/incidents"
	redis "github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "opstriage"
	maxTxRetries     = 5
)

// Repository implements incidents.Repository using Redis.
type Repository struct {
	client *redis.Client
	prefix string
}

// NewRepository creates a new Redis repository. An empty prefix uses "opstriage".
func NewRepository(client *redis.Client, keyPrefix string) *Repository {
	keyPrefix = strings.TrimSpace(keyPrefix)
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &Repository{client: client, prefix: keyPrefix}
}

// CreateIncident stores the incident and its created event in one MULTI/EXEC.
func (r *Repository) CreateIncident(ctx context.Context, incident *domain.Incident, event *domain.TimelineEvent) error {
	key := r.incidentKey(incident.ID)

	return r.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("check incident: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("create incident: duplicate id %s", incident.ID)
		}

		return r.write(ctx, tx, incident, []*domain.TimelineEvent{event})
	}, key)
}

// GetIncident retrieves an incident by ID.
func (r *Repository) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	raw, err := r.client.Get(ctx, r.incidentKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", incidents.ErrIncidentNotFound, id)
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return decodeIncident(raw)
}

// ListIncidents retrieves incidents matching the filter.
func (r *Repository) ListIncidents(ctx context.Context, filter incidents.IncidentFilter) ([]*domain.Incident, error) {
	setKey := r.allKey()
	rangeBy := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}

	switch {
	case filter.ActiveOnly:
		setKey = r.activeKey()
	case filter.OrdersByResolution():
		setKey = r.resolvedKey()
		if filter.ResolvedSince != nil {
			rangeBy.Min = strconv.FormatInt(filter.ResolvedSince.UnixMicro(), 10)
		}
	}

	ids, err := r.client.ZRevRangeByScore(ctx, setKey, rangeBy).Result()
	if err != nil {
		return nil, fmt.Errorf("list incident ids: %w", err)
	}
	if len(ids) == 0 {
		return make([]*domain.Incident, 0), nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.incidentKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load incidents: %w", err)
	}

	snapshot := make([]*domain.Incident, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		incident, err := decodeIncident([]byte(s))
		if err != nil {
			return nil, err
		}
		snapshot = append(snapshot, incident)
	}

	return filter.Apply(snapshot), nil
}

// CountIncidents returns the number of stored incidents.
func (r *Repository) CountIncidents(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.allKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count incidents: %w", err)
	}
	return int(n), nil
}

// UpdateIncident replaces the incident and appends events in one MULTI/EXEC.
func (r *Repository) UpdateIncident(ctx context.Context, incident *domain.Incident, from domain.Status, events []*domain.TimelineEvent) error {
	key := r.incidentKey(incident.ID)

	return r.watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", incidents.ErrIncidentNotFound, incident.ID)
		}
		if err != nil {
			return fmt.Errorf("get incident: %w", err)
		}
		stored, err := decodeIncident(raw)
		if err != nil {
			return err
		}
		if stored.Status != from {
			return incidents.StaleStatusError(incident.ID, from, stored.Status)
		}

		return r.write(ctx, tx, incident, events)
	}, key)
}

// ListTimeline returns the incident's events in append order.
func (r *Repository) ListTimeline(ctx context.Context, incidentID string) ([]*domain.TimelineEvent, error) {
	values, err := r.client.LRange(ctx, r.timelineKey(incidentID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}

	events := make([]*domain.TimelineEvent, 0, len(values))
	for i, v := range values {
		var e domain.TimelineEvent
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("decode timeline event: %w", err)
		}
		e.Seq = int64(i + 1)
		events = append(events, &e)
	}
	return events, nil
}

// write queues the incident document, its index memberships and the events.
func (r *Repository) write(ctx context.Context, tx *redis.Tx, incident *domain.Incident, events []*domain.TimelineEvent) error {
	doc, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("encode incident: %w", err)
	}

	payloads := make([]interface{}, 0, len(events))
	for _, e := range events {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode timeline event: %w", err)
		}
		payloads = append(payloads, b)
	}

	var pushed *redis.IntCmd
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created := redis.Z{Score: float64(incident.CreatedAt.UnixMicro()), Member: incident.ID}

		pipe.Set(ctx, r.incidentKey(incident.ID), doc, 0)
		pipe.ZAdd(ctx, r.allKey(), created)
		if incident.Status.IsActive() {
			pipe.ZAdd(ctx, r.activeKey(), created)
			pipe.ZRem(ctx, r.resolvedKey(), incident.ID)
		} else {
			pipe.ZRem(ctx, r.activeKey(), incident.ID)
			if incident.ResolvedAt != nil {
				pipe.ZAdd(ctx, r.resolvedKey(), redis.Z{
					Score:  float64(incident.ResolvedAt.UnixMicro()),
					Member: incident.ID,
				})
			}
		}
		if len(payloads) > 0 {
			pushed = pipe.RPush(ctx, r.timelineKey(incident.ID), payloads...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write incident: %w", err)
	}

	if pushed != nil {
		last := pushed.Val()
		first := last - int64(len(events)) + 1
		for i, e := range events {
			e.Seq = first + int64(i)
		}
	}
	return nil
}

// watch runs fn under WATCH on keys, retrying when a concurrent writer touched them.
func (r *Repository) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = r.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("redis transaction retries exhausted: %w", err)
}

func decodeIncident(raw []byte) (*domain.Incident, error) {
	var incident domain.Incident
	if err := json.Unmarshal(raw, &incident); err != nil {
		return nil, fmt.Errorf("decode incident: %w", err)
	}
	return &incident, nil
}

func (r *Repository) incidentKey(id string) string { return r.prefix + ":incident:" + id }
func (r *Repository) timelineKey(id string) string { return r.prefix + ":timeline:" + id }
func (r *Repository) allKey() string               { return r.prefix + ":incidents:all" }
func (r *Repository) activeKey() string            { return r.prefix + ":incidents:active" }
func (r *Repository) resolvedKey() string          { return r.prefix + ":incidents:resolved" }
