// Package redisstore mirrors tracked bridge transactions to Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/bridge-coordinator/common/types"
	"github.com/ClipFinance/bridge-coordinator/tracker"
)

const (
	defaultPrefix = "bridgetx"
	dialTimeout   = 5 * time.Second
)

var _ tracker.Store = (*Store)(nil)

// Store keeps one JSON record per handle and a set of every stored key.
type Store struct {
	pool   *redis.Pool
	prefix string
	logger *logrus.Logger
}

func timeoutDialOptions() []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(dialTimeout),
		redis.DialReadTimeout(dialTimeout),
		redis.DialWriteTimeout(dialTimeout),
	}
}

// New creates a store backed by a connection pool to addr. Keys are namespaced with prefix,
// or "bridgetx" when prefix is empty.
func New(addr, prefix string, logger *logrus.Logger) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{
		pool: &redis.Pool{
			MaxIdle:     5,
			IdleTimeout: 4 * time.Minute,
			DialContext: func(ctx context.Context) (redis.Conn, error) {
				return redis.DialContext(ctx, "tcp", addr, timeoutDialOptions()...)
			},
		},
		prefix: prefix,
		logger: logger,
	}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get redis connection")
	}
	defer conn.Close()

	_, err = conn.Do("PING")
	return errors.Wrap(err, "redis ping failed")
}

// Save writes the transaction and adds its key to the index set in one MULTI block.
func (s *Store) Save(ctx context.Context, tx *types.BridgeTransaction) error {
	if tx == nil || tx.Handle.IsZero() {
		return errors.New("cannot store a transaction without handle")
	}

	payload, err := json.Marshal(tx)
	if err != nil {
		return errors.Wrap(err, "cannot marshal transaction")
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get redis connection")
	}
	defer conn.Close()

	key := s.recordKey(tx.Handle)
	if err := conn.Send("MULTI"); err != nil {
		return errors.Wrap(err, "redis MULTI")
	}
	if err := conn.Send("SET", key, payload); err != nil {
		return errors.Wrap(err, "redis SET")
	}
	if err := conn.Send("SADD", s.indexKey(), key); err != nil {
		return errors.Wrap(err, "redis SADD")
	}
	if _, err := conn.Do("EXEC"); err != nil {
		s.logger.WithField("key", key).WithError(err).Error("Redis EXEC failed")
		return errors.Wrap(err, "redis EXEC")
	}
	return nil
}

// LoadAll reads every indexed record. Records that vanished or do not decode are skipped.
func (s *Store) LoadAll(ctx context.Context) ([]*types.BridgeTransaction, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get redis connection")
	}
	defer conn.Close()

	keys, err := redis.Strings(conn.Do("SMEMBERS", s.indexKey()))
	if err != nil {
		return nil, errors.Wrap(err, "redis SMEMBERS")
	}
	if len(keys) == 0 {
		return nil, nil
	}

	args := redis.Args{}.AddFlat(keys)
	values, err := redis.ByteSlices(conn.Do("MGET", args...))
	if err != nil {
		return nil, errors.Wrap(err, "redis MGET")
	}

	txs := make([]*types.BridgeTransaction, 0, len(values))
	for i, value := range values {
		if value == nil {
			continue
		}
		var tx types.BridgeTransaction
		if err := json.Unmarshal(value, &tx); err != nil {
			s.logger.WithField("key", keys[i]).WithError(err).Warn("Skipping undecodable transaction")
			continue
		}
		txs = append(txs, &tx)
	}
	return txs, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

func (s *Store) recordKey(handle types.TxHandle) string {
	return fmt.Sprintf("%s:%d:%s", s.prefix, handle.ChainID, handle.ID)
}

func (s *Store) indexKey() string {
	return s.prefix + ":all"
}
