// Package cli implements the clinicctl administration commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-api/internal/app"
	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/identity"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

// Options overrides the dependencies clinicctl would otherwise build from
// its configuration file.
type Options struct {
	Config *config.Config
	Store  repository.Store
	Hasher security.PasswordHasher
	Broker messaging.Broker
	Logger *logger.Logger
	Out    io.Writer
}

type env struct {
	opts       Options
	configPath string
	closers    []func() error
}

func NewRootCmd(opts Options) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	e := &env{opts: opts}

	root := &cobra.Command{
		Use:   "clinicctl",
		Short: "clinicctl administers a clinic-api installation",
		Long: `clinicctl prepares the database and performs user administration
with the same authorization rules as the HTTP API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.loadConfig()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return e.close()
		},
	}
	root.SetOut(opts.Out)
	root.PersistentFlags().StringVar(&e.configPath, "config", "", "path to config file")

	root.AddCommand(
		newMigrateCmd(e),
		newSeedCmd(e),
		newRolesCmd(e),
		newUsersCmd(e),
		newEventsCmd(e),
	)
	return root
}

func (e *env) loadConfig() error {
	if e.opts.Config == nil {
		cfg, err := config.LoadConfig(e.configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		e.opts.Config = cfg
	}
	if e.opts.Logger == nil {
		e.opts.Logger = app.NewLogger(e.opts.Config.Logging)
	}
	if e.opts.Hasher == nil {
		e.opts.Hasher = app.NewHasher(e.opts.Config.Users)
	}
	return nil
}

func (e *env) store(ctx context.Context) (repository.Store, error) {
	if e.opts.Store != nil {
		return e.opts.Store, nil
	}
	store, closeFn, err := app.OpenStore(ctx, e.opts.Config, e.opts.Hasher, e.opts.Logger)
	if err != nil {
		return nil, err
	}
	e.opts.Store = store
	e.closers = append(e.closers, closeFn)
	return store, nil
}

func (e *env) close() error {
	var errs []error
	for _, fn := range e.closers {
		errs = append(errs, fn())
	}
	e.closers = nil
	return errors.Join(errs...)
}

// actor resolves the account a command acts as, with its live permissions.
func (e *env) actor(ctx context.Context, store repository.Store, userName string) (*model.Actor, error) {
	if userName == "" {
		return nil, errors.New("--as is required")
	}
	u, err := store.Users().GetByUserName(ctx, userName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("unknown user %q", userName)
		}
		return nil, err
	}
	return identity.NewService(store, e.opts.Logger).BuildActor(ctx, u.ID)
}

func (e *env) printJSON(v interface{}) error {
	enc := json.NewEncoder(e.opts.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
