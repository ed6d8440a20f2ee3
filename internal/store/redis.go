package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lox/holdem-engine/internal/game"
	"github.com/lox/holdem-engine/poker"
)

// RedisOptions configures the Redis stores.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key. Defaults to "holdem".
	Prefix string
	// TTL expires idle games and hole cards. Zero keeps them forever.
	TTL        time.Duration
	MaxRetries int
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

func (o RedisOptions) withDefaults() RedisOptions {
	if o.Prefix == "" {
		o.Prefix = "holdem"
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	return o
}

// RedisGameStore keeps each game as a JSON string and commits with
// WATCH/MULTI/EXEC.
type RedisGameStore struct {
	rdb  redis.UniversalClient
	opts RedisOptions
}

// NewRedisGameStore returns a GameStore backed by rdb.
func NewRedisGameStore(rdb redis.UniversalClient, opts RedisOptions) *RedisGameStore {
	return &RedisGameStore{rdb: rdb, opts: opts.withDefaults()}
}

func (s *RedisGameStore) key(id string) string {
	return s.opts.Prefix + ":game:" + id
}

func (s *RedisGameStore) Create(ctx context.Context, g *game.Game) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode game %s: %w", g.ID, err)
	}
	ok, err := s.rdb.SetNX(ctx, s.key(g.ID), data, s.opts.TTL).Result()
	if err != nil {
		return fmt.Errorf("create game %s: %w", g.ID, err)
	}
	if !ok {
		return fmt.Errorf("game %s: %w", g.ID, ErrExists)
	}
	return nil
}

func (s *RedisGameStore) Get(ctx context.Context, id string) (*game.Game, error) {
	return s.load(ctx, s.rdb, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisGameStore) load(ctx context.Context, c getter, id string) (*game.Game, error) {
	data, err := c.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", id, err)
	}
	var g game.Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode game %s: %w", id, err)
	}
	return &g, nil
}

func (s *RedisGameStore) Update(ctx context.Context, id string, fn UpdateFunc) (*game.Game, error) {
	key := s.key(id)
	for attempt := 0; attempt < s.opts.MaxRetries; attempt++ {
		var result *game.Game
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			current, err := s.load(ctx, tx, id)
			if err != nil {
				return err
			}
			next, err := fn(current.Clone())
			if err != nil {
				return err
			}
			if next == nil {
				result = current
				return nil
			}

			next = next.Clone()
			next.Version = current.Version + 1
			data, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("encode game %s: %w", id, err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, s.opts.TTL)
				return nil
			})
			if err == nil {
				result = next
			}
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("game %s: %w", id, ErrConflict)
}

func (s *RedisGameStore) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("delete game %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("game %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *RedisGameStore) List(ctx context.Context) ([]string, error) {
	prefix := s.key("")
	var ids []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return ids, nil
}

// RedisHoleCardStore keeps one hash per hand with a field per player.
type RedisHoleCardStore struct {
	rdb  redis.UniversalClient
	opts RedisOptions
}

// NewRedisHoleCardStore returns a HoleCardStore backed by rdb.
func NewRedisHoleCardStore(rdb redis.UniversalClient, opts RedisOptions) *RedisHoleCardStore {
	return &RedisHoleCardStore{rdb: rdb, opts: opts.withDefaults()}
}

func (s *RedisHoleCardStore) key(gameID string, hand int) string {
	return s.opts.Prefix + ":holes:" + gameID + ":" + strconv.Itoa(hand)
}

func (s *RedisHoleCardStore) Put(ctx context.Context, gameID string, hand int, cards game.HoleCards) error {
	key := s.key(gameID, hand)
	fields := make(map[string]any, len(cards))
	for id, hc := range cards {
		fields[id] = poker.FormatCards(hc[:])
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		if s.opts.TTL > 0 {
			pipe.Expire(ctx, key, s.opts.TTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store hole cards for %s#%d: %w", gameID, hand, err)
	}
	return nil
}

func (s *RedisHoleCardStore) Get(ctx context.Context, gameID string, hand int, playerID string) ([2]poker.Card, error) {
	v, err := s.rdb.HGet(ctx, s.key(gameID, hand), playerID).Result()
	if errors.Is(err, redis.Nil) {
		return [2]poker.Card{}, fmt.Errorf("hole cards for %s in %s#%d: %w", playerID, gameID, hand, ErrNotFound)
	}
	if err != nil {
		return [2]poker.Card{}, fmt.Errorf("load hole cards: %w", err)
	}
	return parseHole(v)
}

func (s *RedisHoleCardStore) GetAll(ctx context.Context, gameID string, hand int) (game.HoleCards, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(gameID, hand)).Result()
	if err != nil {
		return nil, fmt.Errorf("load hole cards: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("hole cards for %s#%d: %w", gameID, hand, ErrNotFound)
	}
	holes := make(game.HoleCards, len(fields))
	for id, v := range fields {
		hc, err := parseHole(v)
		if err != nil {
			return nil, fmt.Errorf("hole cards for %s: %w", id, err)
		}
		holes[id] = hc
	}
	return holes, nil
}

func (s *RedisHoleCardStore) Discard(ctx context.Context, gameID string, hand int) error {
	return s.rdb.Del(ctx, s.key(gameID, hand)).Err()
}

func parseHole(s string) ([2]poker.Card, error) {
	cards, err := poker.ParseCards(s)
	if err != nil {
		return [2]poker.Card{}, err
	}
	if len(cards) != 2 {
		return [2]poker.Card{}, fmt.Errorf("expected 2 hole cards, got %q", s)
	}
	return [2]poker.Card{cards[0], cards[1]}, nil
}
