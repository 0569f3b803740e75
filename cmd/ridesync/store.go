package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"ridesync/internal/config"
	"ridesync/internal/infra"
	"ridesync/internal/modules/session"
)

// openStore builds the session store named by cfg.Driver and its closer.
func openStore(ctx context.Context, cfg config.SessionConfig, log *logrus.Entry) (session.Store, func(), error) {
	switch cfg.Driver {
	case "memory":
		log.Warn("memory session store: state is lost on exit")
		return session.NewMemoryStore(), func() {}, nil
	case "redis":
		rdb, err := infra.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisStore(rdb), func() { _ = rdb.Close() }, nil
	case "postgres":
		pool, err := infra.NewDB(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return session.NewPGStore(pool), pool.Close, nil
	case "file":
		fs, err := session.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session driver %q", cfg.Driver)
	}
}
