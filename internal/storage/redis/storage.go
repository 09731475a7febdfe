package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/wordsync/internal/dependencies/ids"
	"github.com/mcoot/wordsync/internal/model"
	"github.com/mcoot/wordsync/internal/storage"
)

const subscriberBuffer = 64

// Storage is a Redis-backed implementation of the gateway interface.
//
// A player's document is spread over three keys read and written together
// under MULTI: a HASH of scalar fields, a SET of "unit\x1ftoken" members for
// per-unit found words, and a SET of bonus tokens. Every committed write is
// announced on a Pub/Sub channel carrying the write id.
type Storage struct {
	client *redis.Client
	cfg    Config
	ids    ids.Generator
	logger *slog.Logger
}

// New creates a new Redis storage instance
func New(cfg Config, gen ids.Generator, logger *slog.Logger) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, classify(err)
	}

	return NewWithClient(client, cfg, gen, logger), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, gen ids.Generator, logger *slog.Logger) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
		ids:    gen,
		logger: logger.With(slog.String("component", "redis-gateway")),
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Gateway = (*Storage)(nil)

func (s *Storage) Read(ctx context.Context, id model.PlayerID) (*model.Document, error) {
	var (
		hash  *redis.MapStringStringCmd
		words *redis.StringSliceCmd
		bonus *redis.StringSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hash = pipe.HGetAll(ctx, s.documentKey(id))
		words = pipe.SMembers(ctx, s.wordsKey(id))
		bonus = pipe.SMembers(ctx, s.bonusKey(id))
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(hash.Val()) == 0 {
		return nil, model.ErrDocumentNotFound
	}
	return decodeDocument(hash.Val(), words.Val(), bonus.Val())
}

func (s *Storage) Create(ctx context.Context, doc *model.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	id := doc.PlayerID
	writeID := s.ids.NewID()

	err := s.watch(ctx, id, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, s.documentKey(id)).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return model.ErrDocumentExists
		}
		now, err := tx.Time(ctx).Result()
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			fields := map[string]any{
				fieldPlayerID:                         string(id),
				string(model.FieldProgressionMarker): doc.ProgressionMarker,
				string(model.FieldCurrency):          doc.Currency,
				string(model.FieldLastSeen):          now.UnixMilli(),
			}
			for name, v := range doc.Counters {
				fields[string(model.CounterField(name))] = v
			}
			pipe.HSet(ctx, s.documentKey(id), fields)

			var members []any
			for unit, tokens := range doc.PerLevelFoundWords {
				for _, t := range tokens {
					members = append(members, wordMember(unit, t))
				}
			}
			if len(members) > 0 {
				pipe.SAdd(ctx, s.wordsKey(id), members...)
			}
			if len(doc.FoundBonusTokens) > 0 {
				pipe.SAdd(ctx, s.bonusKey(id), toAny(doc.FoundBonusTokens)...)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return err
	}

	s.publish(ctx, id, writeID)
	return nil
}

func (s *Storage) ApplyScalarUpdates(ctx context.Context, id model.PlayerID, fields map[model.Field]int64) error {
	if err := storage.ValidateScalarFields(fields); err != nil {
		return err
	}
	writeID := s.ids.NewID()

	err := s.watch(ctx, id, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, s.documentKey(id)).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return model.ErrDocumentNotFound
		}
		now, err := tx.Time(ctx).Result()
		if err != nil {
			return err
		}

		values := make(map[string]any, len(fields)+1)
		for f, v := range fields {
			values[string(f)] = v
		}
		values[string(model.FieldLastSeen)] = now.UnixMilli()

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.documentKey(id), values)
			return nil
		})
		return err
	})
	if err != nil {
		return err
	}

	s.publish(ctx, id, writeID)
	return nil
}

func (s *Storage) ApplyAtomicBatch(ctx context.Context, id model.PlayerID, ops []model.Operation) error {
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return err
		}
		if strings.Contains(op.Unit, memberSeparator) {
			return fmt.Errorf("%w: unit %q", model.ErrInvalidUnit, op.Unit)
		}
	}
	writeID := s.ids.NewID()
	delta := model.CurrencyDelta(ops)

	err := s.watch(ctx, id, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, s.documentKey(id), string(model.FieldCurrency)).Result()
		if err != nil {
			return err
		}
		currency, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: currency %q", model.ErrMalformedDocument, raw)
		}
		if currency+delta < 0 {
			return model.ErrInsufficientCurrency
		}

		cleared, err := s.clearedMembers(ctx, tx, id, ops)
		if err != nil {
			return err
		}
		now, err := tx.Time(ctx).Result()
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, op := range ops {
				s.queueOperation(ctx, pipe, id, op, cleared)
			}
			pipe.HSet(ctx, s.documentKey(id), string(model.FieldLastSeen), now.UnixMilli())
			return nil
		})
		return err
	})
	if err != nil {
		return err
	}

	s.publish(ctx, id, writeID)
	return nil
}

// queueOperation adds the commands for one operation to a MULTI block
func (s *Storage) queueOperation(ctx context.Context, pipe redis.Pipeliner, id model.PlayerID, op model.Operation, cleared map[string][]any) {
	switch op.Kind {
	case model.OpUnion:
		if len(op.Tokens) == 0 {
			return
		}
		if op.Field == model.FieldBonusTokens {
			pipe.SAdd(ctx, s.bonusKey(id), toAny(op.Tokens)...)
			return
		}
		members := make([]any, len(op.Tokens))
		for i, t := range op.Tokens {
			members[i] = wordMember(op.Unit, t)
		}
		pipe.SAdd(ctx, s.wordsKey(id), members...)
	case model.OpIncrement:
		pipe.HIncrBy(ctx, s.documentKey(id), string(op.Field), op.Value)
	case model.OpSet:
		pipe.HSet(ctx, s.documentKey(id), string(op.Field), op.Value)
	case model.OpClearUnit:
		if members := cleared[op.Unit]; len(members) > 0 {
			pipe.SRem(ctx, s.wordsKey(id), members...)
		}
	}
}

// clearedMembers collects the set members a batch's ClearUnit operations remove
func (s *Storage) clearedMembers(ctx context.Context, tx *redis.Tx, id model.PlayerID, ops []model.Operation) (map[string][]any, error) {
	units := make(map[string]bool)
	for _, op := range ops {
		if op.Kind == model.OpClearUnit {
			units[op.Unit] = true
		}
	}
	if len(units) == 0 {
		return nil, nil
	}

	members, err := tx.SMembers(ctx, s.wordsKey(id)).Result()
	if err != nil {
		return nil, err
	}
	cleared := make(map[string][]any, len(units))
	for _, m := range members {
		if unit, _, ok := splitWordMember(m); ok && units[unit] {
			cleared[unit] = append(cleared[unit], m)
		}
	}
	return cleared, nil
}

// watch runs fn under WATCH on the player's keys, retrying when another
// client modified them before EXEC
func (s *Storage) watch(ctx context.Context, id model.PlayerID, fn func(tx *redis.Tx) error) error {
	attempts := max(s.cfg.MaxTxRetries, 1)
	var err error
	for range attempts {
		err = s.client.Watch(ctx, fn, s.documentKey(id), s.wordsKey(id), s.bonusKey(id))
		if !errors.Is(err, redis.TxFailedErr) {
			return classify(err)
		}
		s.logger.Debug("watched document changed, retrying",
			slog.String("player_id", string(id)))
	}
	return classify(err)
}

// publish announces a committed write. Delivery is best effort: subscribers
// that miss it catch up on the next write.
func (s *Storage) publish(ctx context.Context, id model.PlayerID, writeID string) {
	if err := s.client.Publish(ctx, s.changesChannel(id), writeID).Err(); err != nil {
		s.logger.Warn("failed to publish change",
			slog.String("player_id", string(id)),
			slog.String("write_id", writeID),
			slog.String("error", err.Error()))
	}
}

func (s *Storage) Subscribe(ctx context.Context, id model.PlayerID) (<-chan model.Change, error) {
	pubsub := s.client.Subscribe(ctx, s.changesChannel(id))

	// Wait for the subscription to be confirmed so no write is missed
	// between the initial read and the first message
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, classify(err)
	}

	out := make(chan model.Change, subscriberBuffer)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		send := func(change model.Change) bool {
			select {
			case out <- change:
				return true
			case <-ctx.Done():
				return false
			}
		}

		doc, err := s.Read(ctx, id)
		switch {
		case err == nil:
			if !send(model.Change{Document: doc}) {
				return
			}
		case !errors.Is(err, model.ErrDocumentNotFound):
			s.logger.Warn("initial read for subscription failed",
				slog.String("player_id", string(id)),
				slog.String("error", err.Error()))
		}

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				doc, err := s.Read(ctx, id)
				if err != nil {
					s.logger.Warn("failed to read changed document",
						slog.String("player_id", string(id)),
						slog.String("write_id", msg.Payload),
						slog.String("error", err.Error()))
					continue
				}
				if !send(model.Change{Document: doc, Metadata: model.Metadata{WriteID: msg.Payload}}) {
					return
				}
			}
		}
	}()

	return out, nil
}

// Delete removes a player's document (admin and test use only)
func (s *Storage) Delete(ctx context.Context, id model.PlayerID) error {
	return classify(s.client.Del(ctx, s.documentKey(id), s.wordsKey(id), s.bonusKey(id)).Err())
}

// decodeDocument assembles a document from its three keys
func decodeDocument(hash map[string]string, words, bonus []string) (*model.Document, error) {
	doc := &model.Document{
		PlayerID:           model.PlayerID(hash[fieldPlayerID]),
		PerLevelFoundWords: make(map[string][]string),
		FoundBonusTokens:   bonus,
		Counters:           make(map[string]int64),
	}

	for field, raw := range hash {
		f := model.Field(field)
		switch {
		case field == fieldPlayerID:
		case f == model.FieldProgressionMarker:
			v, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: marker %q", model.ErrMalformedDocument, raw)
			}
			doc.ProgressionMarker = v
		case f == model.FieldCurrency:
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: currency %q", model.ErrMalformedDocument, raw)
			}
			doc.Currency = v
		case f == model.FieldLastSeen:
			ms, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: last seen %q", model.ErrMalformedDocument, raw)
			}
			doc.LastSeen = time.UnixMilli(ms).UTC()
		default:
			name, ok := f.Counter()
			if !ok {
				continue // unknown fields from newer clients are ignored
			}
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: counter %s %q", model.ErrMalformedDocument, name, raw)
			}
			doc.Counters[name] = v
		}
	}

	for _, m := range words {
		unit, token, ok := splitWordMember(m)
		if !ok {
			continue
		}
		doc.PerLevelFoundWords[unit] = append(doc.PerLevelFoundWords[unit], token)
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
