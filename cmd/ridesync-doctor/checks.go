// README: Doctor checks: backend health and latency, realtime handshake, Redis and Postgres session stores.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
	StatusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type Check struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 5 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.SessionDriver == "postgres" && r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.SessionDriver == "redis" && r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	checks := r.checks()
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		start := time.Now()
		res := c.Run(ctx, r)
		res.Name = c.Name
		if res.Latency == 0 && res.Status != StatusSkip {
			res.Latency = time.Since(start).Round(time.Millisecond)
		}
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, c.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func (r *Runner) checks() []Check {
	return []Check{
		{Name: "Backend: health", Run: checkBackendHealth},
		{Name: "Backend: health latency", Run: checkBackendLatency},
		{Name: "Realtime: handshake", Run: checkRealtime},
		{Name: "Session: redis ping", Run: checkRedis},
		{Name: "Session: postgres ping", Run: checkPostgres},
		{Name: "Session: migration apply", Run: applyMigration},
		{Name: "Session: postgres tables", Run: checkTables},
	}
}

func checkBackendHealth(ctx context.Context, r *Runner) Result {
	status, err := r.get(ctx, r.cfg.BackendURL+"/health")
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	if status != http.StatusOK {
		return Result{Status: StatusFail, Note: fmt.Sprintf("status %d", status)}
	}
	return Result{Status: StatusPass}
}

// checkBackendLatency issues concurrent health probes and reports the p50 and p95 latency.
func checkBackendLatency(ctx context.Context, r *Runner) Result {
	if r.cfg.Requests <= 0 {
		return Result{Status: StatusSkip, Note: "requests=0"}
	}
	var mu sync.Mutex
	latencies := make([]time.Duration, 0, r.cfg.Requests)
	failures := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.cfg.Concurrency, 1))
	for i := 0; i < r.cfg.Requests; i++ {
		g.Go(func() error {
			start := time.Now()
			status, err := r.get(gctx, r.cfg.BackendURL+"/health")
			mu.Lock()
			defer mu.Unlock()
			if err != nil || status != http.StatusOK {
				failures++
				return nil
			}
			latencies = append(latencies, time.Since(start))
			return nil
		})
	}
	_ = g.Wait()

	if len(latencies) == 0 {
		return Result{Status: StatusFail, Note: "no probe succeeded"}
	}
	p50, p95 := percentiles(latencies)
	note := fmt.Sprintf("p50=%s p95=%s failures=%d", p50, p95, failures)
	if failures > 0 {
		return Result{Status: StatusFail, Latency: p95, Note: note}
	}
	return Result{Status: StatusPass, Latency: p95, Note: note}
}

func checkRealtime(ctx context.Context, r *Runner) Result {
	if r.cfg.RealtimeURL == "" {
		return Result{Status: StatusSkip, Note: "realtime url not configured"}
	}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, r.cfg.RealtimeURL, nil)
	if err != nil {
		note := err.Error()
		if resp != nil {
			note = fmt.Sprintf("%s (status %d)", note, resp.StatusCode)
		}
		return Result{Status: StatusFail, Note: note}
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = conn.Close()
	return Result{Status: StatusPass}
}

func checkRedis(ctx context.Context, r *Runner) Result {
	if r.cfg.SessionDriver != "redis" {
		return Result{Status: StatusSkip, Note: "session driver is " + r.cfg.SessionDriver}
	}
	if r.redis == nil {
		return Result{Status: StatusFail, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	return Result{Status: StatusPass}
}

func checkPostgres(ctx context.Context, r *Runner) Result {
	if r.cfg.SessionDriver != "postgres" {
		return Result{Status: StatusSkip, Note: "session driver is " + r.cfg.SessionDriver}
	}
	if r.db == nil {
		return Result{Status: StatusFail, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	return Result{Status: StatusPass}
}

func applyMigration(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: StatusSkip, Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: StatusFail, Note: "db not configured"}
	}
	sql, err := os.ReadFile(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	for _, s := range splitSQL(string(sql)) {
		if _, err := r.db.Exec(ctx, s); err != nil {
			return Result{Status: StatusFail, Note: err.Error()}
		}
	}
	return Result{Status: StatusPass}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.cfg.SessionDriver != "postgres" {
		return Result{Status: StatusSkip, Note: "session driver is " + r.cfg.SessionDriver}
	}
	if r.db == nil {
		return Result{Status: StatusFail, Note: "db not configured"}
	}
	b, err := os.ReadFile(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	for _, t := range extractTables(string(b)) {
		var exists bool
		if err := r.db.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", t).Scan(&exists); err != nil {
			return Result{Status: StatusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: StatusFail, Note: "missing table " + t}
		}
	}
	return Result{Status: StatusPass}
}

func (r *Runner) get(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func percentiles(in []time.Duration) (p50, p95 time.Duration) {
	s := append([]time.Duration(nil), in...)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	at := func(q float64) time.Duration {
		i := int(q * float64(len(s)-1))
		return s[i].Round(time.Millisecond)
	}
	return at(0.50), at(0.95)
}

var createTableRe = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)

func extractTables(sql string) []string {
	matches := createTableRe.FindAllStringSubmatch(sql, -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
