// Package admincli implements the bankadmin maintenance commands: schema
// migration and interactive creation of administrator accounts.
package admincli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/bankapp/internal/common"
	"github.com/dmitrijs2005/bankapp/internal/logging"
	"github.com/dmitrijs2005/bankapp/internal/server/models"
	"github.com/dmitrijs2005/bankapp/internal/server/validation"
)

// Migrator applies pending schema migrations.
type Migrator interface {
	RunMigrations(ctx context.Context) error
}

// AdminCreator creates an active administrator account.
type AdminCreator interface {
	CreateAdmin(ctx context.Context, form validation.RegistrationForm) (*models.User, error)
}

type App struct {
	logger   logging.Logger
	migrator Migrator
	admins   AdminCreator
	reader   *bufio.Reader
	out      io.Writer
	fd       int
}

// NewApp builds the command runner. fd is the terminal descriptor that
// passwords are read from without echo; other input comes from in.
func NewApp(logger logging.Logger, migrator Migrator, admins AdminCreator, in io.Reader, fd int, out io.Writer) *App {
	return &App{
		logger:   logger,
		migrator: migrator,
		admins:   admins,
		reader:   bufio.NewReader(in),
		out:      out,
		fd:       fd,
	}
}

const usage = `Usage: bankadmin <command>

Commands:
  migrate        apply database migrations
  create-admin   create an administrator account
  help           show this message`

// ErrUsage is returned for an unknown or missing command.
var ErrUsage = errors.New("unknown command")

// Run executes the command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, usage)
		return ErrUsage
	}

	switch args[0] {
	case "migrate":
		return a.migrate(ctx)
	case "create-admin":
		return a.createAdmin(ctx)
	case "help", "-h", "--help":
		fmt.Fprintln(a.out, usage)
		return nil
	default:
		fmt.Fprintln(a.out, usage)
		return fmt.Errorf("%w: %s", ErrUsage, args[0])
	}
}

func (a *App) migrate(ctx context.Context) error {
	if err := a.migrator.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	a.logger.Info(ctx, "migrations applied")
	fmt.Fprintln(a.out, "Migrations applied.")
	return nil
}

func (a *App) createAdmin(ctx context.Context) error {
	if err := a.migrator.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	username, err := GetSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	email, err := GetSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}

	pw, err := GetPassword(a.fd, "Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)
	pw2, err := GetPassword(a.fd, "Repeat password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw2)

	user, err := a.admins.CreateAdmin(ctx, validation.RegistrationForm{
		Username:  username,
		Email:     email,
		Password:  string(pw),
		Password2: string(pw2),
	})
	if err != nil {
		var vr *validation.Result
		if errors.As(err, &vr) {
			for field, msgs := range vr.Fields {
				for _, m := range msgs {
					fmt.Fprintf(a.out, "%s: %s\n", field, m)
				}
			}
		}
		return fmt.Errorf("create admin: %w", err)
	}

	a.logger.Info(ctx, "administrator created", "user_id", user.ID, "username", user.Username)
	fmt.Fprintf(a.out, "Administrator %s created, account number %s.\n", user.Username, user.AccountNumber)
	return nil
}
