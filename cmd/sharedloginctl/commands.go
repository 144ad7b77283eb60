package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	sqliteadapter "github.com/ericfisherdev/sharedlogin/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/sharedlogin/internal/application"
	"github.com/ericfisherdev/sharedlogin/internal/config"
)

// cli carries the state shared by every subcommand.
type cli struct {
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
	dbPath  string
	verbose bool
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	c := &cli{in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "sharedloginctl",
		Short:         "Manage shared streaming logins and their subscribers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "database path (default: SHAREDLOGIN_DB_PATH)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log engine warnings to stderr")

	root.AddCommand(
		newImportCommand(c),
		newAssignCommand(c),
		newLoadCommand(c),
		newStatusCommand(c),
	)
	return root
}

func newImportCommand(c *cli) *cobra.Command {
	var service string
	cmd := &cobra.Command{
		Use:   "import --service <name> < accounts.txt",
		Short: "Bulk import credentials, one account,secret[,date] per line from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text, err := io.ReadAll(c.in)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return c.withService(cmd.Context(), func(svc *application.CredentialService) error {
				n, err := svc.ImportCredentials(cmd.Context(), service, string(text))
				fmt.Fprintf(c.out, "imported %d credentials for %s\n", n, service)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&service, "service", "s", "", "service the credentials belong to")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}

func newAssignCommand(c *cli) *cobra.Command {
	var service string
	cmd := &cobra.Command{
		Use:   "assign <phone> --service <name>",
		Short: "Show which credential a subscriber gets for a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *application.CredentialService) error {
				a, err := svc.AssignmentFor(cmd.Context(), args[0], service)
				if err != nil {
					return err
				}
				if a.Credential == nil {
					fmt.Fprintf(c.out, "no credential: %s\n", a.Alert)
					return nil
				}

				tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "credential\t%s\n", a.Credential.ID)
				fmt.Fprintf(tw, "account\t%s\n", a.Credential.AccountID)
				fmt.Fprintf(tw, "secret\t%s\n", a.Credential.Secret)
				fmt.Fprintf(tw, "days active\t%d\n", a.DaysActive)
				if a.Manual {
					fmt.Fprintf(tw, "manual\tyes\n")
				}
				if a.Alert != "" {
					fmt.Fprintf(tw, "alert\t%s\n", a.Alert)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&service, "service", "s", "", "service name")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}

func newLoadCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "List credentials with their health and subscriber count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), func(svc *application.CredentialService) error {
				loads, err := svc.CredentialLoads(cmd.Context())
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSERVICE\tACCOUNT\tVISIBLE\tHEALTH\tSUBSCRIBERS")
				for _, l := range loads {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%d\n",
						l.Credential.ID, l.Credential.Service, l.Credential.AccountID,
						l.Credential.Visible, l.Health.Label, l.Subscribers)
				}
				return tw.Flush()
			})
		},
	}
}

func newStatusCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status <phone>",
		Short: "Show the expiry status of every service a subscriber pays for",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *application.CredentialService) error {
				statuses, err := svc.SubscriberStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "SERVICE\tEXPIRES\tDAYS LEFT\tSTATUS")
				for _, s := range statuses {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
						s.Service, s.ExpiresAt.Format("2006-01-02"), s.DaysRemaining, strings.ToUpper(string(s.Status)))
				}
				return tw.Flush()
			})
		},
	}
}

// withService opens the database, migrates it, and runs fn with a
// CredentialService over it.
func (c *cli) withService(ctx context.Context, fn func(*application.CredentialService) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dbPath := cfg.DBPath
	if c.dbPath != "" {
		dbPath = c.dbPath
	}

	db, err := sqliteadapter.NewDB(ctx, dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if _, err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}

	logOut := io.Discard
	if c.verbose {
		logOut = c.errOut
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelWarn}))

	svc := application.NewCredentialService(
		sqliteadapter.NewCredentialRepo(db, cfg.SecretKey),
		sqliteadapter.NewSubscriberRepo(db),
		nil,
		cfg.DemoPhones,
		logger,
	)
	return fn(svc)
}
