package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/artpar/instancedeck/internal/core/auth"
	"github.com/artpar/instancedeck/internal/core/domain"
	"github.com/artpar/instancedeck/internal/core/instance"
	"github.com/artpar/instancedeck/internal/core/provider"
	"github.com/artpar/instancedeck/internal/shell/instances"
)

// cli carries state shared by all subcommands once configuration is loaded.
type cli struct {
	configPath string
	envFile    string

	cfg    *Config
	logger *slog.Logger

	stdout io.Writer
	stderr io.Writer
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "instancedeck",
		Short: "View and control EC2 instances",
		Long: `instancedeck serves a small web application for listing, starting and
stopping AWS EC2 instances, and offers the same operations from the command line.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.load,
		RunE:              c.serve,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Path to config file")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "Path to a dotenv file loaded before the environment")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the web server",
			Args:  cobra.NoArgs,
			RunE:  c.serve,
		},
		c.instancesCommand(),
		c.usersCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			// version needs no configuration
			PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(c.stdout, "instancedeck %s (built %s)\n", Version, BuildTime)
			},
		},
	)

	return root
}

// load reads the env file and configuration, then sets up the logger.
func (c *cli) load(cmd *cobra.Command, args []string) error {
	if err := LoadEnvFile(c.envFile); err != nil {
		return &ServerError{Op: "LoadEnvFile", Err: err, ExitCode: ExitConfigError}
	}
	cfg, err := LoadConfig(c.configPath)
	if err != nil {
		return &ServerError{Op: "LoadConfig", Err: err, ExitCode: ExitConfigError}
	}
	if err := cfg.Validate(); err != nil {
		return &ServerError{Op: "Validate", Err: err, ExitCode: ExitConfigError}
	}
	c.cfg = cfg
	c.logger = SetupLogger(cfg)
	return nil
}

func (c *cli) serve(cmd *cobra.Command, args []string) error {
	c.logger.Info("starting instancedeck",
		"version", Version,
		"config", c.configPath,
	)

	server, err := NewServer(c.cfg, c.logger)
	if err != nil {
		return err
	}
	return server.Start(cmd.Context())
}

// =============================================================================
// instances
// =============================================================================

func (c *cli) instancesCommand() *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "instances",
		Short: "List, start and stop EC2 instances",
	}
	cmd.PersistentFlags().StringVar(&region, "region", "", "AWS region (defaults to aws.region)")

	var (
		ids    []string
		output string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.instanceService(region)
			if err != nil {
				return err
			}
			summaries := svc.Describe(cmd.Context(), ids)
			return printInstances(c.stdout, output, svc.Region(), summaries)
		},
	}
	list.Flags().StringSliceVar(&ids, "id", nil, "Only show these instance IDs (repeatable)")
	list.Flags().StringVarP(&output, "output", "o", OutputTable, "Output format: table, json or yaml")

	cmd.AddCommand(
		list,
		c.actionCommand(instance.ActionStart, &region),
		c.actionCommand(instance.ActionStop, &region),
	)
	return cmd
}

func (c *cli) actionCommand(action instance.Action, region *string) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   string(action) + " <instance-id>",
		Short: capitalize(string(action)) + " an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.instanceService(*region)
			if err != nil {
				return err
			}

			if !dryRun && !c.cfg.Actions.AllowLive {
				fmt.Fprintln(c.stderr, "actions.allow_live is false, sending as a dry run")
				dryRun = true
			}

			result := runAction(cmd.Context(), svc, action, args[0], dryRun)
			printActionResult(c.stdout, args[0], result)
			if !result.Success {
				return &ServerError{
					Op:       string(action),
					Err:      errors.New(result.Message),
					ExitCode: ExitProviderError,
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", true, "Validate the request without changing the instance")
	return cmd
}

func runAction(ctx context.Context, svc *instances.Service, action instance.Action, id string, dryRun bool) instance.ActionResult {
	if action == instance.ActionStop {
		return svc.Stop(ctx, id, dryRun)
	}
	return svc.Start(ctx, id, dryRun)
}

func (c *cli) instanceService(region string) (*instances.Service, error) {
	if region != "" {
		if err := provider.ValidateRegion(region); err != nil {
			return nil, &ServerError{Op: "region", Err: err, ExitCode: ExitConfigError}
		}
	}
	return newInstanceService(c.cfg, c.logger, instances.WithRegion(region)), nil
}

// =============================================================================
// users
// =============================================================================

func (c *cli) usersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}

	var reg domain.Registration
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.createUser(cmd.Context(), reg)
		},
	}
	create.Flags().StringVar(&reg.Username, "username", "", "Display name")
	create.Flags().StringVar(&reg.Email, "email", "", "Login email address")
	create.Flags().StringVar(&reg.Password, "password", "", "Password (at least 8 characters)")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}

func (c *cli) createUser(ctx context.Context, reg domain.Registration) error {
	reg = reg.Normalize()
	if err := reg.Validate(); err != nil {
		return err
	}

	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return err
	}
	user, err := domain.NewUser(reg, hash)
	if err != nil {
		return err
	}

	s, err := openStore(c.cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.CreateUser(ctx, user); err != nil {
		return &ServerError{Op: "CreateUser", Err: err, ExitCode: ExitDatabaseError}
	}

	fmt.Fprintf(c.stdout, "created user %s <%s> (%s)\n", user.Username, user.Email, user.ReferenceID)
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
