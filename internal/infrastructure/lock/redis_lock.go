package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/jhoicas/ledger-migration-api/internal/application/migration"
	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var _ migration.RunLock = (*RedisRunLock)(nil)

// DefaultKey clave del candado de corridas.
const DefaultKey = "ledger-migration:run"

// RedisRunLock candado distribuido: una sola corrida activa entre todas las réplicas.
// El TTL se renueva en segundo plano mientras la corrida siga viva.
type RedisRunLock struct {
	locker *redislock.Client
	key    string
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedisRunLock construye el candado sobre un cliente Redis existente.
func NewRedisRunLock(rdb redis.UniversalClient, key string, ttl time.Duration) *RedisRunLock {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisRunLock{
		locker: redislock.New(rdb),
		key:    key,
		ttl:    ttl,
		log:    log.With().Str("component", "run_lock").Logger(),
	}
}

// Acquire obtiene el candado. domain.ErrRunInProgress si otra réplica lo tiene.
func (l *RedisRunLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	lk, err := l.locker.Obtain(ctx, l.key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, domain.ErrRunInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("obtener candado %s: %w", l.key, err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(lk, stop)
	}()

	var once sync.Once
	release := func(ctx context.Context) error {
		var err error
		once.Do(func() {
			close(stop)
			wg.Wait()
			if rerr := lk.Release(ctx); rerr != nil && !errors.Is(rerr, redislock.ErrLockNotHeld) {
				err = fmt.Errorf("liberar candado %s: %w", l.key, rerr)
			}
		})
		return err
	}
	return release, nil
}

func (l *RedisRunLock) keepAlive(lk *redislock.Lock, stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := lk.Refresh(ctx, l.ttl, nil)
			cancel()
			if err != nil {
				l.log.Warn().Err(err).Str("key", l.key).Msg("no se pudo renovar el candado de corrida")
			}
		}
	}
}

// NewRedisClient abre el cliente y verifica la conexión.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}
