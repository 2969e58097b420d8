package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/s3transfer/transferctl/internal/api"
	"github.com/s3transfer/transferctl/internal/auth"
	"github.com/s3transfer/transferctl/internal/config"
	"github.com/s3transfer/transferctl/internal/dashboard"
	"github.com/s3transfer/transferctl/internal/events"
	"github.com/s3transfer/transferctl/internal/http"
	"github.com/s3transfer/transferctl/internal/logging"
	"github.com/s3transfer/transferctl/internal/notify"
	"github.com/s3transfer/transferctl/internal/recent"
	"github.com/s3transfer/transferctl/internal/store"
	"github.com/s3transfer/transferctl/internal/transfer"
)

// configPath returns --config or the default location.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the config file and applies environment and flag
// overrides, in that order.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	cfg.MergeWithFlags(config.Overrides{
		APIBaseURL:   apiBaseURL,
		ProxyMode:    proxyMode,
		ProxyHost:    proxyHost,
		ProxyPort:    proxyPort,
		MaxRetries:   maxRetries,
		PollInterval: pollInterval,
		StatePath:    statePath,
		LogFile:      logFile,
	})
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if http.NeedsProxyPassword(cfg) {
		pw, err := promptPassword(os.Stderr, fmt.Sprintf("Proxy password for %s: ", cfg.ProxyUser))
		if err != nil {
			return nil, fmt.Errorf("failed to read proxy password: %w", err)
		}
		cfg.ProxyPassword = pw
	}
	return cfg, nil
}

// app bundles what every command needs: configuration, persisted client
// state and an authenticated API client.
type app struct {
	cfg     *config.Config
	state   store.Store
	session *auth.Session
	client  *api.Client
	recent  *recent.Cache
	logger  *logging.Logger
}

// newApp loads configuration and opens the state file.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	state, err := store.Open(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open client state: %w", err)
	}

	log := GetLogger()
	session := auth.NewSession(state)

	client, err := api.NewClient(cfg,
		api.WithLogger(log),
		api.WithTokenSource(session),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	return &app{
		cfg:     cfg,
		state:   state,
		session: session,
		client:  client,
		recent:  recent.New(state, log),
		logger:  log,
	}, nil
}

// dashboardOptions tune the session built by newDashboard.
type dashboardOptions struct {
	bus              *events.EventBus
	onUploadEstimate func(int)
	onTransferChange func(transfer.Job)
	extraSinks       []notify.Sink

	// noConsole drops the log sink when extraSinks already print.
	noConsole bool
}

// newDashboard builds an orchestrator session wired to the console (and,
// when enabled, desktop) notification sinks.
func (a *app) newDashboard(opts dashboardOptions) *dashboard.Session {
	var sinks []notify.Sink
	if !opts.noConsole {
		sinks = append(sinks, notify.NewConsoleSink(a.logger))
	}
	if a.cfg.DesktopNotifications {
		sinks = append(sinks, notify.NewDesktopSink(a.logger))
	}
	sinks = append(sinks, opts.extraSinks...)

	return dashboard.New(dashboard.Options{
		Client:           a.client,
		Recent:           a.recent,
		PollInterval:     a.cfg.PollInterval,
		Sinks:            sinks,
		Bus:              opts.bus,
		Logger:           a.logger,
		OnUploadEstimate: opts.onUploadEstimate,
		OnTransferChange: opts.onTransferChange,
	})
}

// requireLogin fails early with a hint when no token is stored.
func (a *app) requireLogin(w io.Writer) error {
	if a.session.LoggedIn() {
		return nil
	}
	fmt.Fprintln(w, "Not logged in. Run 'transferctl login' first.")
	return fmt.Errorf("not logged in")
}
