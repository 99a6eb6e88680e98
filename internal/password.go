package internal

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/term"

	"github.com/simiotics/sqlcli/dburl"
)

// ErrNoUserinfo - a password was requested for a URL that has no host to authenticate against
var ErrNoUserinfo = errors.New("Database URL has no host to send a password to")

// PromptPassword asks for a password on out and reads it from in. When in is a terminal the
// password is not echoed; otherwise a single line is read.
func PromptPassword(in *os.File, out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", errors.Wrap(err, "read password")
		}
		return string(password), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrap(err, "read password")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// InjectPassword returns rawURL with its password replaced by password. The user name is kept.
// rawURL may be any form dburl.Parse accepts (pg:user@host/db is rewritten as pg://user@host/db).
func InjectPassword(rawURL, password string) (string, error) {
	u, err := dburl.Parse(rawURL)
	if err != nil {
		return "", errors.Wrap(err, "parse database url")
	}
	if u.Host == "" {
		return "", ErrNoUserinfo
	}
	username := ""
	if u.User != nil {
		username = u.User.Username()
	}
	u.User = url.UserPassword(username, password)
	return u.String(), nil
}
