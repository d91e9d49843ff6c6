package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Jayphen/dida-digest/internal/logging"
	"github.com/Jayphen/dida-digest/internal/metrics"
	"github.com/Jayphen/dida-digest/internal/pipeline"
	"github.com/Jayphen/dida-digest/internal/redis"
	"github.com/Jayphen/dida-digest/internal/schedule"
)

const (
	digestLockName = "digest"
	digestLockTTL  = 10 * time.Minute
)

var (
	serveRunNow bool
	serveAddr   string
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the digest on a schedule and expose health and metrics",
		Long: `Stay in the foreground and run the digest at the configured times
(schedule.times, e.g. ["08:00"]) or every schedule.interval.

An HTTP listener exposes:
  GET  /healthz   last run status and the next firing
  GET  /metrics   Prometheus metrics
  POST /run       trigger a run immediately (needs run_token, sent as
                  "Authorization: Bearer <token>")

When Redis is reachable, runs are recorded there and a lock keeps
several replicas from sending the same digest twice.`,
		RunE: runServe,
	}

	cmd.Flags().BoolVar(&serveRunNow, "run-now", false, "Run once immediately on startup")
	cmd.Flags().StringVar(&serveAddr, "listen", "", "HTTP listen address (overrides listen_addr)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, "serve", true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.Validate(); err != nil {
		return err
	}

	sched, err := schedule.New(a.cfg.Schedule.Times, a.cfg.Schedule.Interval)
	if err != nil {
		return err
	}

	runner, src, err := a.runner(runOptions{})
	if err != nil {
		return err
	}
	defer src.Close()

	d := &daemon{
		sched:    sched,
		runner:   runner,
		runToken: a.cfg.RunToken,
		log:      a.log,
		now:      func() time.Time { return time.Now().In(a.loc) },
	}
	if a.redis != nil {
		d.history = a.redis
		d.locker = a.redis
	}

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.ListenAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           d.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	a.log.WithFields(map[string]interface{}{
		"schedule": sched.String(),
		"listen":   addr,
		"next_run": sched.Next(d.now()).Format(time.RFC3339),
	}).Info("digest service started")

	if serveRunNow {
		d.trigger(ctx)
	}

	loopDone := make(chan struct{})
	go func() {
		schedule.Loop(ctx, sched, d.now, d.trigger)
		close(loopDone)
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
	case err := <-serveErr:
		stop()
		<-loopDone
		return fmt.Errorf("http server failed: %w", err)
	}

	<-loopDone
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runHistory reads back recorded runs.
type runHistory interface {
	LastRun(ctx context.Context) (*redis.RunRecord, error)
}

// locker serializes runs across replicas.
type locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (*redis.Lock, error)
}

// digestRunner is satisfied by *pipeline.Runner.
type digestRunner interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// daemon runs the digest on a schedule and serves its status.
type daemon struct {
	sched   *schedule.Schedule
	runner  digestRunner
	history runHistory // optional
	locker  locker     // optional
	log     *logging.Logger
	now     func() time.Time

	// runToken is the bearer token for POST /run; empty disables the route.
	runToken string

	runMu sync.Mutex // one run at a time in this process

	mu   sync.Mutex
	last *redis.RunRecord
}

func (d *daemon) trigger(ctx context.Context) {
	d.runOnce(ctx)
}

// runOnce performs one run. It returns nil when another replica holds the lock.
func (d *daemon) runOnce(ctx context.Context) *redis.RunRecord {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if d.locker != nil {
		lock, err := d.locker.AcquireLock(ctx, digestLockName, digestLockTTL)
		if errors.Is(err, redis.ErrLockHeld) {
			d.log.Info("digest already running elsewhere, skipping")
			return nil
		}
		if err != nil {
			d.log.WithError(err).Warn("failed to acquire run lock, running anyway")
		} else {
			defer func() {
				if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
					d.log.WithError(err).Warn("failed to release run lock")
				}
			}()
		}
	}

	// Run logs its own outcome.
	res, _ := d.runner.Run(ctx)
	rec := res.Record()

	d.mu.Lock()
	d.last = rec
	d.mu.Unlock()
	return rec
}

// lastRun prefers the shared history so replicas report the same state.
func (d *daemon) lastRun(ctx context.Context) (*redis.RunRecord, error) {
	if d.history != nil {
		rec, err := d.history.LastRun(ctx)
		if err != nil || rec != nil {
			return rec, err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, nil
}

// maxRunAge is how old the last run may be before health reports stale.
func (d *daemon) maxRunAge() time.Duration {
	if len(d.sched.Times) > 0 {
		return 25 * time.Hour
	}
	return 2 * d.sched.Interval
}

func (d *daemon) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestMetrics())

	r.GET("/healthz", d.handleHealth)
	r.HEAD("/healthz", d.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/run", requireBearer(d.runToken), d.handleRun)

	return r
}

func (d *daemon) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	now := d.now()
	body := gin.H{
		"schedule": d.sched.String(),
		"next_run": d.sched.Next(now).Format(time.RFC3339),
	}

	rec, err := d.lastRun(ctx)
	if err != nil {
		body["status"] = "error"
		body["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}

	health := redis.DetermineRunHealth(rec, d.maxRunAge(), now)
	body["status"] = string(health)
	if rec != nil {
		body["last_run"] = gin.H{
			"run_id":    rec.RunID,
			"status":    rec.Status,
			"finished":  time.UnixMilli(rec.Timestamp).In(now.Location()).Format(time.RFC3339),
			"counts":    rec.Counts,
			"error":     rec.Error,
			"succeeded": rec.Status != pipeline.StatusFailed,
		}
	}

	code := http.StatusOK
	if health == redis.RunStale {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, body)
}

func (d *daemon) handleRun(c *gin.Context) {
	// A client hanging up must not abort a delivery halfway.
	rec := d.runOnce(context.WithoutCancel(c.Request.Context()))
	if rec == nil {
		c.JSON(http.StatusConflict, gin.H{"status": "skipped"})
		return
	}
	code := http.StatusOK
	if rec.Status == pipeline.StatusFailed {
		code = http.StatusBadGateway
	}
	c.JSON(code, rec)
}

// requireBearer rejects requests without "Authorization: Bearer <token>".
// An empty token refuses every request.
func requireBearer(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "run endpoint disabled, set run_token"})
			return
		}
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// requestMetrics records request durations by route template.
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
