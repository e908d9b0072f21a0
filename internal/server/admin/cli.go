package admin

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/server/auth"
	"github.com/dmitrijs2005/taskkeeper/internal/server/config"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/repomanager"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// Deps are the collaborators of the CLI. Tests replace them.
type Deps struct {
	LoadConfig       func() (*config.Config, error)
	OpenRepositories func(ctx context.Context, cfg *config.Config) (repomanager.RepositoryManager, error)
	Out              io.Writer
}

// NewCLI builds the admin command tree.
func NewCLI(d Deps) *cli.App {
	var (
		cfg *config.Config
		dsn string
		// set by Before for the command being run
		rm   repomanager.RepositoryManager
		tool *Tool
	)

	open := func(c *cli.Context) error {
		var err error
		rm, err = d.OpenRepositories(c.Context, cfg)
		if err != nil {
			return err
		}
		tool = NewTool(rm, auth.NewHasher(cfg.BcryptCost))
		return nil
	}
	closeRepos := func(*cli.Context) error {
		if rm == nil {
			return nil
		}
		return rm.Close()
	}

	return &cli.App{
		Name:      "taskkeeper-admin",
		Usage:     "Operator commands for the taskkeeper database",
		Writer:    d.Out,
		ErrWriter: d.Out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "dsn",
				Aliases:     []string{"d"},
				Usage:       "PostgreSQL DSN (overrides TASKKEEPER_DATABASE_DSN)",
				Destination: &dsn,
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			cfg, err = d.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if dsn != "" {
				cfg.DatabaseDSN = dsn
			}
			// commands apply migrations explicitly
			cfg.RunMigrations = false
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Apply the embedded schema migrations",
				Action: func(c *cli.Context) error {
					cfg.RunMigrations = true
					if err := open(c); err != nil {
						return err
					}
					defer closeRepos(c)
					fmt.Fprintln(d.Out, "migrations applied")
					return nil
				},
			},
			{
				Name:  "create-admin",
				Usage: "Create an admin account (password is read from the terminal)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "first-name", Required: true},
					&cli.StringFlag{Name: "last-name", Required: true},
				},
				Action: func(c *cli.Context) error {
					password, err := promptPassword(d.Out)
					if err != nil {
						return err
					}
					defer common.WipeByteArray(password)

					if err := open(c); err != nil {
						return err
					}
					defer closeRepos(c)

					u, err := tool.CreateAdmin(c.Context, c.String("first-name"), c.String("last-name"), c.String("email"), password)
					if err != nil {
						return err
					}
					fmt.Fprintf(d.Out, "created admin %s (%s)\n", u.Email, u.ID)
					return nil
				},
			},
			{
				Name:  "set-role",
				Usage: "Change the role of an account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "role", Required: true, Usage: "user or admin"},
				},
				Action: func(c *cli.Context) error {
					if err := open(c); err != nil {
						return err
					}
					defer closeRepos(c)

					u, err := tool.SetRole(c.Context, c.String("email"), c.String("role"))
					if err != nil {
						return err
					}
					fmt.Fprintf(d.Out, "%s is now %s\n", u.Email, u.Role)
					return nil
				},
			},
			{
				Name:  "set-active",
				Usage: "Activate or deactivate an account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.BoolFlag{Name: "active", Value: true},
				},
				Action: func(c *cli.Context) error {
					if err := open(c); err != nil {
						return err
					}
					defer closeRepos(c)

					u, err := tool.SetActive(c.Context, c.String("email"), c.Bool("active"))
					if err != nil {
						return err
					}
					fmt.Fprintf(d.Out, "%s active=%v\n", u.Email, u.IsActive)
					return nil
				},
			},
			{
				Name:  "hash-password",
				Usage: "Print a stored secret for a password read from the terminal",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "legacy", Usage: "produce a salted legacy digest instead of bcrypt"},
				},
				Action: func(c *cli.Context) error {
					password, err := promptPassword(d.Out)
					if err != nil {
						return err
					}
					defer common.WipeByteArray(password)

					secret, salt, err := NewTool(nil, auth.NewHasher(cfg.BcryptCost)).HashPassword(password, c.Bool("legacy"))
					if err != nil {
						return err
					}
					fmt.Fprintln(d.Out, secret)
					if salt != "" {
						fmt.Fprintln(d.Out, "salt:", salt)
					}
					return nil
				},
			},
		},
	}
}

// promptPassword reads a password without echo. The caller wipes it.
func promptPassword(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Enter password: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}
