package command

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/yndnr/crmdesk-go/internal/core/domain"
)

// LoginCommand returns the login command.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and persist the session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "email",
				Aliases: []string{"e"},
				Usage:   "Account email",
				EnvVars: []string{"CRMDESK_EMAIL"},
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Account password (prompted when omitted)",
				EnvVars: []string{"CRMDESK_PASSWORD"},
			},
		},
		Action: login,
	}
}

func login(c *cli.Context) error {
	rt, err := EnsureRuntime(c)
	if err != nil {
		return err
	}

	creds := domain.Credentials{
		Email:    strings.TrimSpace(c.String("email")),
		Password: c.String("password"),
	}
	if creds.Email == "" {
		if creds.Email, err = prompt(c, "Email: ", false); err != nil {
			return err
		}
	}
	if creds.Password == "" {
		if creds.Password, err = prompt(c, "Password: ", true); err != nil {
			return err
		}
	}

	s, err := rt.Auth.Authenticate(c.Context, creds)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Signed in as %s.\n", s.SubjectID())
	return nil
}

// LogoutCommand returns the logout command.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Sign out and remove the persisted session",
		Action: logout,
	}
}

func logout(c *cli.Context) error {
	rt, err := EnsureRuntime(c)
	if err != nil {
		return err
	}
	rt.Auth.Logout(c.Context)
	fmt.Fprintln(c.App.Writer, "Signed out.")
	return nil
}

// prompt reads one line from the app's reader. Secrets are read without
// echo when the reader is a terminal.
func prompt(c *cli.Context, label string, secret bool) (string, error) {
	fmt.Fprint(c.App.ErrWriter, label)

	if f, ok := c.App.Reader.(*os.File); ok && secret && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.App.ErrWriter)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(label, ": "), err)
		}
		return string(b), nil
	}

	line, err := readLine(c.App.Reader)
	if err != nil {
		return "", domain.ErrMissingArgument.WithDetails(strings.ToLower(strings.TrimSuffix(label, ": ")) + " is required")
	}
	if !secret {
		line = strings.TrimSpace(line)
	}
	return line, nil
}

// readLine reads up to a newline one byte at a time, so no input past the
// line is consumed from a reader shared with the shell.
func readLine(r io.Reader) (string, error) {
	var buf bytes.Buffer
	b := make([]byte, 1)
	for {
		n, err := r.Read(b)
		if n == 1 {
			if b[0] == '\n' {
				return strings.TrimSuffix(buf.String(), "\r"), nil
			}
			buf.WriteByte(b[0])
		}
		if err == io.EOF && buf.Len() > 0 {
			return buf.String(), nil
		}
		if err != nil {
			return "", err
		}
	}
}
