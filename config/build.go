package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/genstore"
	qclogrus "github.com/unkn0wn-root/querycache/log/logrus"
	"github.com/unkn0wn-root/querycache/provider"
	"github.com/unkn0wn-root/querycache/provider/bigcache"
	"github.com/unkn0wn-root/querycache/provider/redis"
	"github.com/unkn0wn-root/querycache/provider/ristretto"
)

// Deps are optional collaborators for Build; zero values are fine.
type Deps struct {
	Logger *logrus.Logger   // nil => built from Config.Log, writing to stderr
	Hooks  querycache.Hooks // nil => none
}

// Runtime is everything Build wired together. Close releases it in reverse order.
type Runtime struct {
	Cache    *querycache.Cache
	Remote   provider.Provider // nil when remote.kind is none
	GenStore genstore.GenStore // nil when remote.kind is none
	Logger   *logrus.Logger

	codec string
	rdb   goredis.UniversalClient
	cron  *cron.Cron
}

// Build creates the logger, the Cache, the remote tier and its generation store,
// and starts the cron cleanup schedule when one is configured.
func Build(ctx context.Context, cfg *Config, deps Deps) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := deps.Logger
	if log == nil {
		log = newLogger(cfg.Log)
	}
	rt := &Runtime{Logger: log, codec: cfg.Remote.Codec}

	opts := querycache.Options{
		DefaultTTL:      cfg.Cache.DefaultTTL,
		MaxSize:         cfg.Cache.MaxSize,
		CleanupInterval: cfg.Cache.CleanupInterval,
		CoalesceFetches: cfg.Cache.CoalesceFetches,
		Logger:          qclogrus.New(log),
		Hooks:           deps.Hooks,
	}
	if cfg.Cache.CleanupSchedule != "" {
		opts.CleanupInterval = -1
	}
	c, err := querycache.New(opts)
	if err != nil {
		return nil, err
	}
	rt.Cache = c

	if err := rt.buildRemote(ctx, cfg.Remote); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	if s := cfg.Cache.CleanupSchedule; s != "" {
		rt.cron = cron.New(
			cron.WithParser(scheduleParser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		)
		if _, err := rt.cron.AddFunc(s, func() {
			if n := c.Cleanup(); n > 0 {
				log.WithField("removed", n).Debug("scheduled cleanup")
			}
		}); err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("config: cleanup schedule %q: %w", s, err)
		}
		rt.cron.Start()
	}

	log.WithFields(logrus.Fields{
		"max_size":    cfg.Cache.MaxSize,
		"default_ttl": cfg.Cache.DefaultTTL,
		"remote":      cfg.Remote.Kind,
		"schedule":    cfg.Cache.CleanupSchedule,
	}).Info("querycache ready")
	return rt, nil
}

func (rt *Runtime) buildRemote(ctx context.Context, rc RemoteConfig) error {
	switch rc.Kind {
	case "", RemoteNone:
		return nil

	case RemoteRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:        rc.Redis.Addr,
			Password:    rc.Redis.Password,
			DB:          rc.Redis.DB,
			DialTimeout: rc.Redis.DialTimeout,
		})
		rt.rdb = rdb

		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pctx).Err(); err != nil {
			return fmt.Errorf("config: connect to redis %s: %w", rc.Redis.Addr, err)
		}
		p, err := redis.New(redis.Config{Client: rdb})
		if err != nil {
			return err
		}
		rt.Remote = p
		// replicas sharing Redis must share generations too
		rt.GenStore = genstore.NewRedisGenStore(rdb, genstore.RedisOptions{
			KeyPrefix: rc.Redis.GenKeyPrefix,
			TTL:       rc.Redis.GenTTL,
		})
		return nil

	case RemoteBigCache:
		b := rc.BigCache
		p, err := bigcache.New(bigcache.Config{
			LifeWindow:         b.LifeWindow,
			CleanWindow:        b.CleanWindow,
			MaxEntriesInWindow: b.MaxEntriesInWindow,
			MaxEntrySize:       b.MaxEntrySize,
			HardMaxCacheSizeMB: b.HardMaxCacheSizeMB,
			Shards:             b.Shards,
		})
		if err != nil {
			return fmt.Errorf("config: bigcache: %w", err)
		}
		rt.Remote = p
		rt.GenStore = genstore.NewLocalGenStore(0, 0)
		return nil

	case RemoteRistretto:
		r := rc.Ristretto
		p, err := ristretto.New(ristretto.Config{
			NumCounters: r.NumCounters,
			MaxCost:     r.MaxCost,
			BufferItems: r.BufferItems,
			SyncWrites:  r.SyncWrites,
		})
		if err != nil {
			return fmt.Errorf("config: ristretto: %w", err)
		}
		rt.Remote = p
		rt.GenStore = genstore.NewLocalGenStore(0, 0)
		return nil
	}
	return fmt.Errorf("config: unknown remote kind %q", rc.Kind)
}

// Namespace returns a typed Namespace bound to the runtime's Cache and, when
// configured, its remote tier, generation store and codec.
func Namespace[V any](rt *Runtime, prefix string, ttl time.Duration) (*querycache.Namespace[V], error) {
	opts := querycache.NamespaceOptions[V]{Prefix: prefix, TTL: ttl}
	if rt.Remote != nil {
		cd, err := codec.Named[V](rt.codec)
		if err != nil {
			return nil, err
		}
		opts.Remote = rt.Remote
		opts.Codec = cd
		opts.GenStore = rt.GenStore
	}
	return querycache.NewNamespace(rt.Cache, opts)
}

// Close stops the schedule, then releases the generation store, the remote
// provider, the Redis client and the Cache.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.cron != nil {
		select {
		case <-rt.cron.Stop().Done():
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}
	if rt.GenStore != nil {
		errs = append(errs, rt.GenStore.Close(ctx))
	}
	if rt.Remote != nil {
		errs = append(errs, rt.Remote.Close(ctx))
	}
	if rt.rdb != nil {
		errs = append(errs, rt.rdb.Close())
	}
	if rt.Cache != nil {
		errs = append(errs, rt.Cache.Close(ctx))
	}
	return errors.Join(errs...)
}

func newLogger(lc LogConfig) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if lvl, err := logrus.ParseLevel(lc.Level); err == nil {
		l.SetLevel(lvl)
	}
	if lc.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}
