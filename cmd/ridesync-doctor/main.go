// README: Environment checker; probes the backend, realtime endpoint and session stores and prints results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ridesync/internal/config"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	doctor := NewRunner(cfg)
	results := doctor.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	pass, fail, skipped := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			pass++
		case StatusFail:
			fail++
		case StatusSkip:
			skipped++
		}
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", pass, fail, skipped)

	if fail > 0 || (cfg.Strict && skipped > 0) {
		os.Exit(1)
	}
}

type Config struct {
	BackendURL     string
	RealtimeURL    string
	SessionDriver  string
	DSN            string
	RedisAddr      string
	MigrationPath  string
	ApplyMigration bool
	Strict         bool
	Timeout        time.Duration
	Concurrency    int
	Requests       int
}

// loadConfig starts from the client's RIDESYNC_* settings; flags override them.
func loadConfig() Config {
	base, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	var cfg Config
	flag.StringVar(&cfg.BackendURL, "backend", base.Backend.BaseURL, "backend base URL")
	flag.StringVar(&cfg.RealtimeURL, "realtime", base.Realtime.URL, "realtime WebSocket URL")
	flag.StringVar(&cfg.SessionDriver, "session", base.Session.Driver, "session driver to check (file, memory, redis, postgres)")
	flag.StringVar(&cfg.DSN, "dsn", base.Session.DSN, "Postgres DSN")
	flag.StringVar(&cfg.RedisAddr, "redis", base.Session.RedisAddr, "Redis address")
	flag.StringVar(&cfg.MigrationPath, "migration", "migrations/0001_session.sql", "migration SQL path")
	flag.BoolVar(&cfg.ApplyMigration, "apply-migration", false, "apply migration SQL before checking tables")
	flag.BoolVar(&cfg.Strict, "strict", false, "fail on skipped checks")
	flag.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", 8, "concurrent health probes")
	flag.IntVar(&cfg.Requests, "requests", 40, "health probes for the latency check")
	flag.Parse()
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	cfg.SessionDriver = strings.ToLower(cfg.SessionDriver)
	return cfg
}
