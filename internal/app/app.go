// Package app wires the backend, the durable key store, the session and the
// task store together.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"todo/internal/config"
	"todo/internal/federated"
	"todo/internal/keystore"
	"todo/internal/service"
	"todo/internal/session"
	"todo/internal/taskstore"
)

// Env is the restored session and its task store, ready for commands.
type Env struct {
	Session *session.Manager
	Tasks   *taskstore.Store
	Logger  *slog.Logger

	closers []io.Closer
}

// New builds a session over keys, attaches a task store to it and restores
// the persisted session. Restore runs exactly once, here.
func New(ctx context.Context, backend service.Service, keys keystore.Store, logger *slog.Logger, opts ...session.Option) *Env {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts = append([]session.Option{session.WithLogger(logger)}, opts...)
	sess := session.New(backend, keys, opts...)
	tasks := taskstore.New(backend, sess, taskstore.WithLogger(logger))
	tasks.Attach(sess)

	sess.Restore(ctx)
	return &Env{Session: sess, Tasks: tasks, Logger: logger}
}

// Open builds an Env from cfg: it opens the configured key store, enables
// Google login when client credentials are present, and restores the
// session. prompt receives the Google authorization URL.
func Open(ctx context.Context, cfg *config.Config, backend service.Service, logger *slog.Logger, prompt io.Writer) (*Env, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	keys, closer, err := OpenKeyStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	var opts []session.Option
	if cfg.HasGoogleClient() {
		g, err := federated.NewGoogleFromConfig(cfg,
			federated.WithLogger(logger),
			federated.WithPrompt(prompt),
		)
		if err != nil {
			logger.Warn("google login disabled", "error", err)
		} else {
			opts = append(opts, session.WithIdentityProvider(g))
		}
	}

	env := New(ctx, backend, keys, logger, opts...)
	if closer != nil {
		env.closers = append(env.closers, closer)
	}
	return env, nil
}

// OpenKeyStore opens the key store selected by cfg.Storage, sealing it with
// the age identity when cfg.EncryptToken is set. The returned closer is nil
// when the store holds no resources.
func OpenKeyStore(cfg *config.Config, logger *slog.Logger) (keystore.Store, io.Closer, error) {
	var (
		keys   keystore.Store
		closer io.Closer
	)
	switch cfg.Storage {
	case config.StorageSQLite:
		if err := cfg.EnsureDir(); err != nil {
			return nil, nil, fmt.Errorf("create config directory: %w", err)
		}
		db, err := keystore.OpenSQLite(cfg.DatabasePath(), logger)
		if err != nil {
			return nil, nil, err
		}
		keys, closer = db, db
	case config.StorageFile, "":
		keys = keystore.NewFileStore(cfg.CredentialsPath())
	default:
		return nil, nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}

	if cfg.EncryptToken {
		if err := cfg.EnsureDir(); err != nil {
			closeQuietly(closer)
			return nil, nil, fmt.Errorf("create config directory: %w", err)
		}
		sealed, err := keystore.NewSealedStore(keys, cfg.IdentityPath())
		if err != nil {
			closeQuietly(closer)
			return nil, nil, err
		}
		keys = sealed
	}
	return keys, closer, nil
}

// Close releases the key store.
func (e *Env) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	e.closers = nil
	return errors.Join(errs...)
}

func closeQuietly(c io.Closer) {
	if c != nil {
		c.Close()
	}
}
