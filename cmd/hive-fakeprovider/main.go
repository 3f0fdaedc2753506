// Hive-fakeprovider serves an in-memory Cognito-compatible identity provider
// for local development against hivectl. It performs real server-side SRP,
// SMS MFA, device remembering and token refresh, and serves the SSO bootstrap
// page on GET /.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fzdarsky/hiveauth/internal/lifecycle"
	"github.com/fzdarsky/hiveauth/internal/logging"
	"github.com/fzdarsky/hiveauth/internal/providertest"
)

var (
	// version is set by build flags
	version = "dev"
	// commit is set by build flags
	commit = "none"
)

const shutdownTimeout = 5 * time.Second

type options struct {
	listen       string
	poolID       string
	clientID     string
	clientSecret string
	tokenTTL     time.Duration
	maxFailures  int
	lockout      time.Duration
	idleTimeout  time.Duration
	logLevel     string
	logFormat    string
	user         providertest.User
}

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:          "hive-fakeprovider",
		Short:        "Serve a fake Hive SSO identity provider",
		Version:      version + " (" + commit + ")",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.listen, "listen", "127.0.0.1:8642", "Listen address")
	f.StringVar(&o.poolID, "pool-id", "eu-west-1_SamNfoWtf", "User pool ID")
	f.StringVar(&o.clientID, "client-id", "3rl4i0ajrmtdm8sbre54p9dvd9", "App client ID")
	f.StringVar(&o.clientSecret, "client-secret", "", "App client secret; requires SECRET_HASH when set")
	f.DurationVar(&o.tokenTTL, "token-ttl", time.Hour, "Lifetime of issued tokens")
	f.IntVar(&o.maxFailures, "max-failures", 0, "Failed password attempts before lockout (0: default)")
	f.DurationVar(&o.lockout, "lockout", 0, "Lockout duration (0: default)")
	f.DurationVar(&o.idleTimeout, "idle-timeout", 0, "Exit after this long without requests (0: never)")
	f.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.StringVar(&o.logFormat, "log-format", "human", "Log format: human or json")
	f.StringVar(&o.user.Username, "username", "user@example.com", "Username of the account to create")
	f.StringVar(&o.user.Password, "password", "Test12345", "Password of the account to create")
	f.StringVar(&o.user.MFACode, "mfa-code", "", "Require this SMS code after the password")
	f.BoolVar(&o.user.OfferDevice, "offer-device", false, "Offer a device to remember on login")

	return cmd
}

func run(ctx context.Context, o *options) error {
	level, err := logging.ParseLevel(o.logLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(o.logFormat)
	if err != nil {
		return err
	}
	logger := logging.New(level, format)

	server, err := providertest.New(providertest.Config{
		PoolID:          o.poolID,
		ClientID:        o.clientID,
		ClientSecret:    o.clientSecret,
		TokenTTL:        o.tokenTTL,
		MaxFailures:     o.maxFailures,
		LockoutDuration: o.lockout,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	sub, err := server.AddUser(o.user)
	if err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}

	shutdown := lifecycle.NewShutdown()
	ctx = shutdown.Start(ctx)
	defer shutdown.Stop()

	handler := server.Handler()
	if o.idleTimeout > 0 {
		idle, err := lifecycle.NewIdleTimer(o.idleTimeout, func() {
			shutdown.Trigger(fmt.Sprintf("no requests for %v", o.idleTimeout))
		})
		if err != nil {
			return err
		}
		go idle.Run(ctx)
		next := handler
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idle.Touch()
			next.ServeHTTP(w, r)
		})
	}

	ln, err := net.Listen("tcp", o.listen)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	httpServer := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	logger.Info("fake provider starting", map[string]any{
		"version":  version,
		"commit":   commit,
		"url":      "http://" + ln.Addr().String(),
		"pool_id":  o.poolID,
		"username": o.user.Username,
		"sub":      sub,
		"mfa":      o.user.MFACode != "",
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("fake provider stopping", map[string]any{"reason": shutdown.Reason()})
		if err := lifecycle.Graceful(context.Background(), httpServer.Shutdown, shutdownTimeout); err != nil {
			return err
		}
	}

	logger.Info("fake provider stopped")
	return nil
}
