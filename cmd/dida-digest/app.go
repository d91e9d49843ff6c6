package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Jayphen/dida-digest/internal/auth"
	"github.com/Jayphen/dida-digest/internal/config"
	"github.com/Jayphen/dida-digest/internal/logging"
	"github.com/Jayphen/dida-digest/internal/notify"
	"github.com/Jayphen/dida-digest/internal/pipeline"
	"github.com/Jayphen/dida-digest/internal/redis"
	"github.com/Jayphen/dida-digest/internal/tasksource"
)

// app holds what a command builds from the configuration.
type app struct {
	cfg   *config.Config
	log   *logging.Logger
	loc   *time.Location
	store auth.TokenStore
	redis *redis.Client // nil unless the token store or serve needs it
}

// newApp loads config and opens the token store. wantRedis connects to Redis
// even for a file token store; a failed optional connection is only logged.
func newApp(ctx context.Context, command string, wantRedis bool) (*app, error) {
	log := logging.WithCommand(command)

	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, loc: loc}

	needRedis := cfg.TokenStore.Type == "redis"
	if needRedis || wantRedis {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		switch {
		case err == nil:
			a.redis = client
		case needRedis:
			return nil, err
		default:
			log.WithError(err).Warn("redis unavailable, continuing without shared state")
		}
	}

	switch cfg.TokenStore.Type {
	case "redis":
		a.store = redis.NewTokenStore(a.redis)
	case "file", "":
		a.store = auth.NewFileStore(cfg.TokenStore.Path)
	default:
		a.Close()
		return nil, fmt.Errorf("unknown token_store.type %q", cfg.TokenStore.Type)
	}

	return a, nil
}

// Close releases the Redis connection, if any.
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// flow builds the OAuth flow; it fails when the application is not configured.
func (a *app) flow() (*auth.Flow, error) {
	return auth.NewFlow(auth.OAuthConfig{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		RedirectURI:  a.cfg.RedirectURI,
		AuthURL:      a.cfg.AuthURL,
		TokenURL:     a.cfg.TokenURL,
	}, a.store)
}

// runOptions are per-invocation overrides of the configuration.
type runOptions struct {
	source    string
	dryRun    bool
	skipEmpty bool
}

// runner wires the pipeline. The returned source must be closed by the caller.
func (a *app) runner(opts runOptions) (*pipeline.Runner, tasksource.TaskSource, error) {
	// Without a flow expired tokens cannot be refreshed, but stored ones still work.
	flow, err := a.flow()
	if err != nil {
		a.log.WithError(err).Debug("oauth application not configured")
		flow = nil
	}
	provider := auth.NewProvider(a.store, flow)

	spec := opts.source
	if spec == "" {
		spec = a.cfg.Source
	}
	parsed, err := tasksource.ParseSourceSpec(spec)
	if err != nil {
		return nil, nil, err
	}
	src, err := tasksource.CreateSource(parsed, tasksource.Deps{
		BaseURL:    a.cfg.APIBaseURL,
		Credential: provider.Token,
		Timeout:    a.cfg.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}

	r := &pipeline.Runner{
		Source:    src,
		Log:       a.log,
		Location:  a.loc,
		SkipEmpty: a.cfg.SkipEmpty || opts.skipEmpty,
		DryRun:    opts.dryRun,
	}
	if parsed.Type == tasksource.SourceTypeDida {
		r.Tokens = provider
	}
	if a.redis != nil {
		r.Recorder = a.redis
	}

	if !opts.dryRun {
		bot, err := notify.NewWeComBot(notify.WeComConfig{
			Key:        a.cfg.WeCom.BotKey,
			WebhookURL: a.cfg.WeCom.WebhookURL,
			Type:       notify.MessageType(a.cfg.WeCom.MessageType),
			Mentions:   a.cfg.WeCom.Mentions,
			Timeout:    a.cfg.Timeout,
		})
		if err != nil {
			_ = src.Close()
			return nil, nil, err
		}
		r.Notifier = bot
		if a.cfg.DesktopNotify {
			r.Reminder = notify.Fanout{bot, notify.NewDesktop("滴答清单授权提醒")}
		}
	}

	return r, src, nil
}
