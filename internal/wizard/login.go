package wizard

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
)

// Credentials are a username and password entered at sign-in.
type Credentials struct {
	Username string
	Password string
}

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.New("cancelled")

func notBlank(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// PromptCredentials asks for a username and password. The username field is
// pre-filled with username.
func PromptCredentials(username string) (Credentials, error) {
	c := Credentials{Username: username}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(&c.Username).
				Validate(notBlank("username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&c.Password).
				Validate(notBlank("password")),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return c, ErrCancelled
		}
		return c, err
	}
	c.Username = strings.TrimSpace(c.Username)
	return c, nil
}

// ReadCredentials reads a username line and a password line from r, for
// scripted sign-in. A non-empty username skips the first line.
func ReadCredentials(r io.Reader, username string) (Credentials, error) {
	sc := bufio.NewScanner(r)
	next := func(field string) (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", fmt.Errorf("missing %s on stdin", field)
		}
		return strings.TrimRight(sc.Text(), "\r"), nil
	}

	c := Credentials{Username: strings.TrimSpace(username)}
	if c.Username == "" {
		u, err := next("username")
		if err != nil {
			return c, err
		}
		c.Username = strings.TrimSpace(u)
	}
	p, err := next("password")
	if err != nil {
		return c, err
	}
	c.Password = p
	if c.Username == "" || c.Password == "" {
		return c, errors.New("username and password are required")
	}
	return c, nil
}
