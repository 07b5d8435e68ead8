package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/fluxora/internal/auth"
	"github.com/roach88/fluxora/internal/config"
	"github.com/roach88/fluxora/internal/domain"
	"github.com/roach88/fluxora/internal/engine"
	"github.com/roach88/fluxora/internal/eventlog"
	"github.com/roach88/fluxora/internal/store"
)

// session is one CLI invocation's view of the ledger: the resolved config,
// the open registry and event log, and an engine wired to both.
type session struct {
	ctx    context.Context // carries the caller principal
	cfg    *config.Config
	store  *store.Store
	log    *eventlog.Log
	engine *engine.Engine
	clock  engine.Clock
	logger *slog.Logger
}

// loadConfig resolves the config file and applies flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigPath == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(opts.ConfigPath)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.Events != "" {
		cfg.Events = opts.Events
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, WrapExitError(ExitCommandError, "invalid config", errs[0])
	}
	return cfg, nil
}

// newLogger builds the process logger. Diagnostics go to stderr so JSON
// output on stdout stays parseable.
func newLogger(cfg *config.Config, verbose bool, w io.Writer) *slog.Logger {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

func (o *RootOptions) clock() engine.Clock {
	if o.Now >= 0 {
		return engine.FixedClock(uint64(o.Now))
	}
	return engine.SystemClock{}
}

// openSession opens the registry and the event log and authenticates the
// caller. Close must be called when done.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, opts.Verbose, cmd.ErrOrStderr())
	clock := opts.clock()

	st, err := store.Open(cfg.Database,
		store.WithClock(clock),
		store.WithRetention(store.Retention{
			Threshold: cfg.Retention.Threshold,
			ExtendTo:  cfg.Retention.ExtendTo,
		}),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	var evlog *eventlog.Log
	if cfg.Events == "" {
		// No durable log configured: events live only for this command.
		evlog, err = eventlog.OpenInMemory(eventlog.WithLogger(logger))
	} else {
		evlog, err = eventlog.Open(cfg.Events,
			eventlog.WithSync(true),
			eventlog.WithLogger(logger),
		)
	}
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open event log", err)
	}

	custody, err := domain.ParseIdentity(cfg.Custody)
	if err != nil {
		evlog.Close()
		st.Close()
		return nil, WrapExitError(ExitCommandError, "invalid custody identity", err)
	}

	s := &session{
		cfg:   cfg,
		store: st,
		log:   evlog,
		engine: engine.New(st, st, auth.ContextAuthorizer{},
			engine.WithNotifier(evlog),
			engine.WithClock(clock),
			engine.WithCustody(custody),
			engine.WithLogger(logger),
		),
		clock:  clock,
		logger: logger,
	}

	s.ctx, err = authenticate(cmd.Context(), opts, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// authenticate attaches the caller principal.
//
// A --token is verified against the configured secret. Without a token,
// --as is trusted when no secret is configured (single-operator mode) and
// is only a claim otherwise.
func authenticate(ctx context.Context, opts *RootOptions, cfg *config.Config) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Token != "" {
		if cfg.Auth.Secret == "" {
			return nil, NewExitError(ExitCommandError, "--token given but auth.secret is not configured")
		}
		v := auth.NewJWTVerifier([]byte(cfg.Auth.Secret), cfg.Auth.Issuer)
		authed, err := auth.Authenticate(ctx, v, opts.Token)
		if err != nil {
			return nil, WrapExitError(ExitFailure, "authentication failed", err)
		}
		return authed, nil
	}

	if opts.As == "" {
		return ctx, nil
	}
	id, err := domain.ParseIdentity(opts.As)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --as identity", err)
	}
	if cfg.Auth.Secret == "" {
		return auth.WithPrincipal(ctx, auth.Trusted(id)), nil
	}
	return auth.WithPrincipal(ctx, auth.Claimed(id)), nil
}

// Close releases the event log and the database.
func (s *session) Close() error {
	logErr := s.log.Close()
	storeErr := s.store.Close()
	if logErr != nil {
		return fmt.Errorf("close event log: %w", logErr)
	}
	return storeErr
}
