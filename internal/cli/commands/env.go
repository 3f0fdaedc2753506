package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/fzdarsky/hiveauth/internal/auth"
	"github.com/fzdarsky/hiveauth/internal/config"
	"github.com/fzdarsky/hiveauth/internal/logging"
	"github.com/fzdarsky/hiveauth/internal/provider"
	"github.com/fzdarsky/hiveauth/internal/store"
	"github.com/fzdarsky/hiveauth/pkg/cognito"
)

// env is everything a command needs to talk to the provider for one account.
type env struct {
	cfg     *config.Config
	logger  *logging.Logger
	pool    provider.PoolInfo
	store   *store.Store
	session *auth.Session
}

// loadConfig reads the config file and environment, then applies flags.
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyFlags(o.flags); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *logging.Logger {
	// Both values were validated by config.Validate.
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	format, _ := logging.ParseFormat(cfg.Logging.Format)
	return logging.NewWithWriter(level, format, cmd.ErrOrStderr())
}

// resolvePool returns the configured pool metadata, fetching the bootstrap
// page only when the pool ID or client ID is missing.
func resolvePool(ctx context.Context, cfg *config.Config) (provider.PoolInfo, error) {
	timeout, err := cfg.GetTimeout()
	if err != nil {
		return provider.PoolInfo{}, err
	}

	info := provider.PoolInfo{PoolID: cfg.PoolID, ClientID: cfg.ClientID, Region: cfg.Region}
	if info.PoolID == "" || info.ClientID == "" {
		resolved, err := provider.ResolvePool(ctx, &http.Client{Timeout: timeout}, cfg.BootstrapURL)
		if err != nil {
			return provider.PoolInfo{}, err
		}
		if info.PoolID == "" {
			info.PoolID = resolved.PoolID
		}
		if info.ClientID == "" {
			info.ClientID = resolved.ClientID
		}
	}

	if info.Region == "" {
		if info.Region, err = cognito.Region(info.PoolID); err != nil {
			return provider.PoolInfo{}, err
		}
	}
	return info, nil
}

// setup builds the engine for the configured account and restores any stored
// tokens and device. The caller must call close.
func (o *options) setup(cmd *cobra.Command) (*env, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireUsername(); err != nil {
		return nil, err
	}
	logger := newLogger(cmd, cfg)

	pool, err := resolvePool(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}

	timeout, _ := cfg.GetTimeout()
	clientOpts := []provider.Option{provider.WithTimeout(timeout), provider.WithLogger(logger)}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, provider.WithEndpoint(cfg.Endpoint))
	}
	client, err := provider.New(pool.Region, clientOpts...)
	if err != nil {
		return nil, err
	}

	storePath, err := cfg.GetStorePath()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(storePath)
	if err != nil {
		return nil, err
	}

	session, err := auth.NewSession(client,
		auth.Pool{ID: pool.PoolID, ClientID: pool.ClientID, ClientSecret: cfg.ClientSecret},
		auth.WithLogger(logger.With(map[string]any{"username": cfg.Username})))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	e := &env{cfg: cfg, logger: logger, pool: pool, store: st, session: session}
	if err := e.restore(); err != nil {
		e.close()
		return nil, err
	}
	return e, nil
}

func (e *env) restore() error {
	device, err := e.store.LoadDevice(e.pool.PoolID, e.cfg.Username)
	switch {
	case err == nil:
		e.session.SetDevice(device)
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	tokens, err := e.store.LoadTokens(e.pool.PoolID, e.cfg.Username)
	switch {
	case err == nil:
		e.session.Restore(e.cfg.Username, tokens)
	case !errors.Is(err, store.ErrNotFound):
		return err
	}
	return nil
}

// saveTokens persists the session's current tokens.
func (e *env) saveTokens() error {
	tokens, ok := e.session.Tokens()
	if !ok {
		return nil
	}
	if err := e.store.SaveTokens(e.pool.PoolID, e.cfg.Username, tokens); err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}
	return nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("failed to close credential store", map[string]any{"error": err.Error()})
	}
}
