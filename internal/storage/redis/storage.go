package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/playerhub/internal/model"
	"github.com/mcoot/playerhub/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.MaxUpdateRetries <= 0 {
		cfg.MaxUpdateRetries = DefaultConfig().MaxUpdateRetries
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Account operations

func (s *Storage) SaveAccount(ctx context.Context, account *model.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}
	return storage.Failure("save account", s.client.Set(ctx, accountKey(account.ID), data, 0).Err())
}

func (s *Storage) GetAccount(ctx context.Context, id model.PlayerID) (*model.Account, error) {
	data, err := s.client.Get(ctx, accountKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, storage.Failure("get account", err)
	}

	var account model.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, &model.DataFailure{Key: accountKey(id), Err: err}
	}
	return &account, nil
}

func (s *Storage) DeleteAccount(ctx context.Context, id model.PlayerID) error {
	return storage.Failure("delete account", s.client.Del(ctx, accountKey(id)).Err())
}

// UpdateAccount runs fn inside a WATCH/MULTI transaction on the account key,
// retrying when another writer modifies the account first.
func (s *Storage) UpdateAccount(ctx context.Context, id model.PlayerID, fn storage.AccountUpdateFunc) (*model.Account, error) {
	key := accountKey(id)

	var (
		result *model.Account
		fnErr  error
	)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			fnErr = model.ErrAccountNotFound
			return fnErr
		}
		if err != nil {
			return err
		}

		var account model.Account
		if err := json.Unmarshal(data, &account); err != nil {
			fnErr = &model.DataFailure{Key: key, Err: err}
			return fnErr
		}
		if err := fn(&account); err != nil {
			fnErr = err
			return err
		}

		next, err := json.Marshal(&account)
		if err != nil {
			fnErr = err
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = &account
		return nil
	}

	for attempt := 0; attempt < s.cfg.MaxUpdateRetries; attempt++ {
		fnErr = nil
		err := s.client.Watch(ctx, txf, key)
		if fnErr != nil {
			return nil, fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, storage.Failure("update account", err)
		}
		return result, nil
	}
	return nil, storage.Failure("update account", storage.ErrContention)
}

// Provider link index

func (s *Storage) BindProvider(ctx context.Context, kind model.ProviderKind, subject string, playerID model.PlayerID) error {
	key := providerIndexKey(kind, subject)

	// A concurrent unbind can remove the key between SETNX and GET, so retry a few times
	for attempt := 0; attempt < 3; attempt++ {
		ok, err := s.client.SetNX(ctx, key, string(playerID), 0).Result()
		if err != nil {
			return storage.Failure("bind provider", err)
		}
		if ok {
			return nil
		}

		existing, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return storage.Failure("bind provider", err)
		}
		if model.PlayerID(existing) != playerID {
			return model.ErrAlreadyLinked
		}
		return nil
	}
	return storage.Failure("bind provider", storage.ErrContention)
}

func (s *Storage) LookupProvider(ctx context.Context, kind model.ProviderKind, subject string) (model.PlayerID, error) {
	id, err := s.client.Get(ctx, providerIndexKey(kind, subject)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", model.ErrProviderNotLinked
		}
		return "", storage.Failure("lookup provider", err)
	}
	return model.PlayerID(id), nil
}

func (s *Storage) UnbindProvider(ctx context.Context, kind model.ProviderKind, subject string) error {
	return storage.Failure("unbind provider", s.client.Del(ctx, providerIndexKey(kind, subject)).Err())
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	key := sessionKey(session.TokenHash)

	// Sessions expire in Redis alongside their logical expiry. The lifetime is taken from the
	// session itself so an injected clock and the Redis clock never disagree.
	ttl := session.ExpiresAt.Sub(session.CreatedAt)
	if session.CreatedAt.IsZero() {
		ttl = time.Until(session.ExpiresAt)
	}
	if ttl <= 0 {
		return storage.Failure("save session", s.client.Del(ctx, key).Err())
	}

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return storage.Failure("save session", s.client.Set(ctx, key, data, ttl).Err())
}

func (s *Storage) GetSession(ctx context.Context, tokenHash string) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSessionNotFound
		}
		return nil, storage.Failure("get session", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, &model.DataFailure{Key: sessionKey(tokenHash), Err: err}
	}
	return &session, nil
}

func (s *Storage) DeleteSession(ctx context.Context, tokenHash string) error {
	return storage.Failure("delete session", s.client.Del(ctx, sessionKey(tokenHash)).Err())
}

// Player data operations

func (s *Storage) TryGetData(ctx context.Context, playerID model.PlayerID, key string) (string, bool, error) {
	value, err := s.client.HGet(ctx, playerDataKey(playerID), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, storage.Failure("get data", err)
	}
	return value, true, nil
}

func (s *Storage) SetData(ctx context.Context, playerID model.PlayerID, key, value string) error {
	return storage.Failure("set data", s.client.HSet(ctx, playerDataKey(playerID), key, value).Err())
}

func (s *Storage) SetDataIfAbsent(ctx context.Context, playerID model.PlayerID, key, value string) (bool, error) {
	ok, err := s.client.HSetNX(ctx, playerDataKey(playerID), key, value).Result()
	if err != nil {
		return false, storage.Failure("set data", err)
	}
	return ok, nil
}

// UpdateData runs fn inside a WATCH/MULTI transaction on the player's data hash,
// retrying when another writer modifies the hash first.
func (s *Storage) UpdateData(ctx context.Context, playerID model.PlayerID, key string, fn storage.UpdateFunc) (string, error) {
	hashKey := playerDataKey(playerID)

	var (
		result string
		fnErr  error
	)
	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, hashKey, key).Result()
		found := true
		if errors.Is(err, redis.Nil) {
			current, found = "", false
		} else if err != nil {
			return err
		}

		next, err := fn(current, found)
		if err != nil {
			fnErr = err
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hashKey, key, next)
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	for attempt := 0; attempt < s.cfg.MaxUpdateRetries; attempt++ {
		fnErr = nil
		err := s.client.Watch(ctx, txf, hashKey)
		if fnErr != nil {
			return "", fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return "", storage.Failure("update data", err)
		}
		return result, nil
	}
	return "", storage.Failure("update data", storage.ErrContention)
}

func (s *Storage) DeletePlayerData(ctx context.Context, playerID model.PlayerID) error {
	return storage.Failure("delete data", s.client.Del(ctx, playerDataKey(playerID)).Err())
}
