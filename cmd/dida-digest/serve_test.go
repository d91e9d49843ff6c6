package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/Jayphen/dida-digest/internal/logging"
	"github.com/Jayphen/dida-digest/internal/pipeline"
	"github.com/Jayphen/dida-digest/internal/redis"
	"github.com/Jayphen/dida-digest/internal/schedule"
)

var serveNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CST", 8*3600))

const testRunToken = "s3cret"

type stubRunner struct {
	status string
	calls  int
}

func (s *stubRunner) Run(ctx context.Context) (*pipeline.Result, error) {
	s.calls++
	res := &pipeline.Result{
		RunID:    "run-" + s.status,
		Status:   s.status,
		Started:  serveNow,
		Finished: serveNow,
	}
	if s.status == pipeline.StatusFailed {
		res.Err = errors.New("webhook down")
		return res, res.Err
	}
	return res, nil
}

type heldLocker struct{}

func (heldLocker) AcquireLock(ctx context.Context, name string, ttl time.Duration) (*redis.Lock, error) {
	return nil, redis.ErrLockHeld
}

func newTestDaemon(t *testing.T, times []string, interval time.Duration, r digestRunner) *daemon {
	t.Helper()
	sched, err := schedule.New(times, interval)
	if err != nil {
		t.Fatalf("schedule.New() failed: %v", err)
	}
	return &daemon{
		sched:    sched,
		runner:   r,
		runToken: testRunToken,
		log:      logging.Nop(),
		now:      func() time.Time { return serveNow },
	}
}

func doRequest(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	return doRequestWithToken(t, h, method, path, "")
}

func doRequestWithToken(t *testing.T, h http.Handler, method, path, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid JSON body %q: %v", rec.Body.String(), err)
		}
	}
	return rec, body
}

func TestHealthBeforeFirstRun(t *testing.T) {
	d := newTestDaemon(t, []string{"08:00"}, 0, &stubRunner{status: pipeline.StatusDelivered})

	rec, body := doRequest(t, d.router(), http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", rec.Code)
	}
	if body["status"] != string(redis.RunMissing) {
		t.Errorf("status = %v, want missing", body["status"])
	}
	if body["next_run"] != "2024-05-02T08:00:00+08:00" {
		t.Errorf("next_run = %v", body["next_run"])
	}
	if body["schedule"] != "daily at 08:00" {
		t.Errorf("schedule = %v", body["schedule"])
	}
}

func TestHealthAfterRun(t *testing.T) {
	d := newTestDaemon(t, []string{"08:00"}, 0, &stubRunner{status: pipeline.StatusDelivered})
	d.trigger(context.Background())

	rec, body := doRequest(t, d.router(), http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", rec.Code)
	}
	if body["status"] != string(redis.RunHealthy) {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	last, ok := body["last_run"].(map[string]interface{})
	if !ok {
		t.Fatalf("last_run missing: %v", body)
	}
	if last["status"] != pipeline.StatusDelivered {
		t.Errorf("last_run.status = %v", last["status"])
	}
}

func TestHealthStale(t *testing.T) {
	d := newTestDaemon(t, nil, time.Hour, &stubRunner{status: pipeline.StatusDelivered})
	d.last = &redis.RunRecord{
		RunID:     "old",
		Timestamp: serveNow.Add(-3 * time.Hour).UnixMilli(),
		Status:    pipeline.StatusDelivered,
	}

	rec, body := doRequest(t, d.router(), http.MethodGet, "/healthz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", rec.Code)
	}
	if body["status"] != string(redis.RunStale) {
		t.Errorf("status = %v, want stale", body["status"])
	}
}

func TestHealthReadsSharedHistory(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	defer client.Close()

	err = client.SetRun(context.Background(), &redis.RunRecord{
		RunID:     "from-replica",
		Timestamp: serveNow.Add(-time.Hour).UnixMilli(),
		Status:    pipeline.StatusSkipped,
	})
	if err != nil {
		t.Fatalf("SetRun() failed: %v", err)
	}

	d := newTestDaemon(t, []string{"08:00"}, 0, &stubRunner{status: pipeline.StatusDelivered})
	d.history = client

	_, body := doRequest(t, d.router(), http.MethodGet, "/healthz")
	last, ok := body["last_run"].(map[string]interface{})
	if !ok {
		t.Fatalf("last_run missing: %v", body)
	}
	if last["run_id"] != "from-replica" {
		t.Errorf("last_run.run_id = %v, want from-replica", last["run_id"])
	}
}

func TestRunEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		status string
		code   int
	}{
		{"delivered", pipeline.StatusDelivered, http.StatusOK},
		{"failed", pipeline.StatusFailed, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubRunner{status: tt.status}
			d := newTestDaemon(t, []string{"08:00"}, 0, r)

			rec, body := doRequestWithToken(t, d.router(), http.MethodPost, "/run", testRunToken)
			if rec.Code != tt.code {
				t.Errorf("status code = %d, want %d", rec.Code, tt.code)
			}
			if body["status"] != tt.status {
				t.Errorf("status = %v, want %s", body["status"], tt.status)
			}
			if r.calls != 1 {
				t.Errorf("runner called %d times, want 1", r.calls)
			}
		})
	}
}

func TestRunSkippedWhenLockHeld(t *testing.T) {
	r := &stubRunner{status: pipeline.StatusDelivered}
	d := newTestDaemon(t, []string{"08:00"}, 0, r)
	d.locker = heldLocker{}

	rec, _ := doRequestWithToken(t, d.router(), http.MethodPost, "/run", testRunToken)
	if rec.Code != http.StatusConflict {
		t.Errorf("status code = %d, want 409", rec.Code)
	}
	if r.calls != 0 {
		t.Errorf("runner called %d times, want 0", r.calls)
	}
}

func TestRunEndpointRequiresToken(t *testing.T) {
	tests := []struct {
		name     string
		runToken string
		sent     string
		code     int
	}{
		{"no header", testRunToken, "", http.StatusUnauthorized},
		{"wrong token", testRunToken, "guess", http.StatusUnauthorized},
		{"endpoint disabled", "", "anything", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubRunner{status: pipeline.StatusDelivered}
			d := newTestDaemon(t, []string{"08:00"}, 0, r)
			d.runToken = tt.runToken

			rec, _ := doRequestWithToken(t, d.router(), http.MethodPost, "/run", tt.sent)
			if rec.Code != tt.code {
				t.Errorf("status code = %d, want %d", rec.Code, tt.code)
			}
			if r.calls != 0 {
				t.Errorf("runner called %d times, want 0", r.calls)
			}
		})
	}
}

// cancelCheckingRunner reports whether the context was already cancelled
// when the run started.
type cancelCheckingRunner struct {
	sawCancel bool
}

func (c *cancelCheckingRunner) Run(ctx context.Context) (*pipeline.Result, error) {
	c.sawCancel = ctx.Err() != nil
	return &pipeline.Result{RunID: "r", Status: pipeline.StatusDelivered, Finished: serveNow}, nil
}

func TestRunEndpointSurvivesClientDisconnect(t *testing.T) {
	r := &cancelCheckingRunner{}
	d := newTestDaemon(t, []string{"08:00"}, 0, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/run", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+testRunToken)
	rec := httptest.NewRecorder()
	d.router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", rec.Code)
	}
	if r.sawCancel {
		t.Error("run saw the client's cancellation")
	}
}

func TestRunReleasesLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	defer client.Close()

	r := &stubRunner{status: pipeline.StatusDelivered}
	d := newTestDaemon(t, []string{"08:00"}, 0, r)
	d.locker = client

	d.trigger(context.Background())
	d.trigger(context.Background())
	if r.calls != 2 {
		t.Errorf("runner called %d times, want 2", r.calls)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("lock keys left behind: %v", keys)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	d := newTestDaemon(t, []string{"08:00"}, 0, &stubRunner{status: pipeline.StatusDelivered})
	h := d.router()

	// Record at least one request so the histogram is exported.
	doRequest(t, h, http.MethodGet, "/healthz")

	rec, _ := doRequest(t, h, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "dida_digest_http_request_duration_seconds") {
		t.Error("metrics output missing request duration histogram")
	}
}
