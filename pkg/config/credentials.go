package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/term"

	"github.com/nicklasfrahm/pepper/pkg/saltapi"
)

// Prompter asks the user for missing credentials.
type Prompter struct {
	In  io.Reader
	Out io.Writer
	// ReadPassword reads a line without echoing it.
	ReadPassword func() ([]byte, error)
	// NonInteractive disables prompting.
	NonInteractive bool
}

// NewTerminalPrompter returns a prompter reading from stdin and
// writing prompts to stderr.
func NewTerminalPrompter(nonInteractive bool) *Prompter {
	return &Prompter{
		In:  os.Stdin,
		Out: os.Stderr,
		ReadPassword: func() ([]byte, error) {
			return term.ReadPassword(int(os.Stdin.Fd()))
		},
		NonInteractive: nonInteractive,
	}
}

// Credentials returns the login credentials of the profile. Missing
// values are prompted for unless the prompter is non-interactive. The
// kerberos backend does not use a password.
func (p *Profile) Credentials(prompter *Prompter) (*saltapi.Credentials, error) {
	username := p.Username
	password := p.Password
	kerberos := p.Eauth == EauthKerberos

	var reader *bufio.Reader
	prompt := func(field, label string) error {
		if prompter == nil || prompter.NonInteractive {
			return errors.WithHintf(errors.Wrapf(ErrMissingCredentials, "no %s configured", field),
				"set %s/%s or the %s option in the configuration file", EnvUser, EnvPass, field)
		}
		fmt.Fprintf(prompter.Out, "%s: ", label)
		if reader == nil {
			reader = bufio.NewReader(prompter.In)
		}
		return nil
	}

	if username == "" {
		if err := prompt("username", "Username"); err != nil {
			return nil, err
		}
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, errors.Wrap(err, "failed to read username")
		}
		username = strings.TrimSpace(line)
	}

	if password == "" && !kerberos {
		if err := prompt("password", "Password"); err != nil {
			return nil, err
		}
		secret, err := prompter.ReadPassword()
		fmt.Fprintln(prompter.Out)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read password")
		}
		password = string(secret)
	}

	creds := &saltapi.Credentials{
		Username: username,
		Eauth:    p.Eauth,
	}
	if !kerberos {
		creds.Password = &password
	}
	if p.TokenExpire > 0 {
		expire := p.TokenExpire
		creds.TokenExpire = &expire
	}

	return creds, nil
}
