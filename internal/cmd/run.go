// Package cmd holds the command-line modes of the git-captain binary: the
// server itself and the interactive setup wizard.
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/git-captain/git-captain/internal/api"
	"github.com/git-captain/git-captain/internal/browser"
	"github.com/git-captain/git-captain/internal/config"
	"github.com/git-captain/git-captain/internal/ghclient"
	"github.com/git-captain/git-captain/internal/ratelimit"
	"github.com/git-captain/git-captain/internal/watcher"
	log "github.com/sirupsen/logrus"
)

// ServiceOptions configures StartService.
type ServiceOptions struct {
	// ConfigPath and EnvPath are watched for hot reload. Either may be empty.
	ConfigPath string
	EnvPath    string

	// OpenBrowser opens the sign-in page once the listener is up.
	OpenBrowser bool
}

// StartService runs the server until SIGINT or SIGTERM.
func StartService(cfg *config.Config, opts ServiceOptions) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := ratelimit.NewTracker(cfg.RateLimit.GitHubMaxPerMinute)
	client := ghclient.NewFromConfig(cfg, tracker)
	server, errServer := api.NewServer(cfg, client)
	if errServer != nil {
		log.Errorf("failed to create server: %v", errServer)
		return
	}

	if opts.ConfigPath != "" || opts.EnvPath != "" {
		fileWatcher, errWatcher := watcher.NewWatcher(opts.ConfigPath, opts.EnvPath, server.UpdateConfig)
		if errWatcher != nil {
			log.Warnf("config hot reload disabled: %v", errWatcher)
		} else {
			fileWatcher.SetConfig(cfg)
			if errStart := fileWatcher.Start(ctx); errStart != nil {
				log.Warnf("config hot reload disabled: %v", errStart)
			}
			defer func() {
				if errStop := fileWatcher.Stop(); errStop != nil {
					log.Debugf("failed to stop config watcher: %v", errStop)
				}
			}()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	if opts.OpenBrowser {
		go func() {
			time.Sleep(500 * time.Millisecond)
			if errOpen := browser.OpenURL(cfg.GitPortEndpoint + "/"); errOpen != nil {
				log.Warnf("failed to open browser: %v", errOpen)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case errStart := <-errCh:
		if errStart != nil && !errors.Is(errStart, context.Canceled) {
			log.Errorf("server stopped: %v", errStart)
		}
		return
	}

	if errStop := server.Stop(context.Background()); errStop != nil {
		log.Errorf("failed to stop server: %v", errStop)
	}
	<-errCh
}
