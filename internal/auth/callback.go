package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultCallbackPath is the redirect path registered with the service.
const DefaultCallbackPath = "/callback"

type callbackResult struct {
	code string
	err  error
}

// CallbackServer receives the OAuth redirect and hands the code to Wait.
type CallbackServer struct {
	state  string
	engine *gin.Engine
	result chan callbackResult
}

// NewCallbackServer creates a callback handler that accepts only the given
// state on path.
func NewCallbackServer(state, path string) *CallbackServer {
	if path == "" {
		path = DefaultCallbackPath
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &CallbackServer{
		state:  state,
		engine: engine,
		result: make(chan callbackResult, 1),
	}
	engine.GET(path, s.handleCallback)
	return s
}

// Handler returns the HTTP handler, for mounting or testing.
func (s *CallbackServer) Handler() http.Handler {
	return s.engine
}

func (s *CallbackServer) handleCallback(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		s.deliver(callbackResult{err: fmt.Errorf("%w: %s", ErrAccessDenied, reason)})
		c.String(http.StatusOK, "授权已取消，可以关闭此页面。")
		return
	}

	if c.Query("state") != s.state {
		c.String(http.StatusBadRequest, ErrStateMismatch.Error())
		return
	}

	code := c.Query("code")
	if code == "" {
		c.String(http.StatusBadRequest, "缺少 code 参数")
		return
	}

	s.deliver(callbackResult{code: code})
	c.String(http.StatusOK, "授权成功，可以关闭此页面。")
}

// deliver keeps the first result and drops later ones.
func (s *CallbackServer) deliver(r callbackResult) {
	select {
	case s.result <- r:
	default:
	}
}

// Wait blocks until a valid callback arrives or ctx ends.
func (s *CallbackServer) Wait(ctx context.Context) (string, error) {
	select {
	case r := <-s.result:
		return r.code, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ListenAndWait serves on addr until a code arrives, then shuts down.
func (s *CallbackServer) ListenAndWait(ctx context.Context, addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	var code string
	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = errors.New("callback server closed before a code arrived")
		}
		return "", err
	case r := <-s.result:
		code, err = r.code, r.err
	case <-ctx.Done():
		err = ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return code, err
}
