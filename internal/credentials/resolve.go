package credentials

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"
)

// Prompter asks the user for missing values.
type Prompter interface {
	Ask(question string) (string, error)
	AskSecret(question string) (string, error)
	Confirm(question string) (bool, error)
}

// TerminalPrompter prompts on out and reads answers from in. Secrets are
// read without echo when in is a terminal.
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

func NewTerminalPrompter(in *os.File, out io.Writer) *TerminalPrompter {
	fd := int(in.Fd())
	return &TerminalPrompter{in: bufio.NewReader(in), out: out, fd: fd, tty: term.IsTerminal(fd)}
}

// NewReaderPrompter reads every answer, secrets included, line by line.
func NewReaderPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out, fd: -1}
}

func (p *TerminalPrompter) Ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (p *TerminalPrompter) AskSecret(question string) (string, error) {
	if !p.tty {
		return p.Ask(question)
	}
	fmt.Fprint(p.out, question)
	secret, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(secret), nil
}

func (p *TerminalPrompter) Confirm(question string) (bool, error) {
	answer, err := p.Ask(question + " (y/n) ")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(answer, "y"), nil
}

// Resolved holds the credentials and where each value came from.
type Resolved struct {
	Credentials
	URLFrom      Source
	UsernameFrom Source
	PasswordFrom Source
}

// Prompted reports whether the username or password was typed in.
func (r Resolved) Prompted() bool {
	return r.UsernameFrom == SourcePrompt || r.PasswordFrom == SourcePrompt
}

// Resolver fills in credentials from, in order, flags, environment, the
// credentials file and finally the prompter.
type Resolver struct {
	File     string
	Prompter Prompter
	Logger   *zap.Logger
}

func (r *Resolver) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Resolve returns normalized, validated credentials.
func (r *Resolver) Resolve(flags, env Credentials) (Resolved, error) {
	var res Resolved
	take := func(dst *string, from *Source, val string, src Source) {
		if *dst == "" && val != "" {
			*dst = val
			*from = src
		}
	}
	takeAll := func(c Credentials, src Source) {
		take(&res.URL, &res.URLFrom, c.URL, src)
		take(&res.Username, &res.UsernameFrom, c.Username, src)
		take(&res.Password, &res.PasswordFrom, c.Password, src)
	}

	takeAll(flags, SourceFlag)
	takeAll(env, SourceEnv)
	if res.URL == "" || res.Username == "" || res.Password == "" {
		fromFile, err := Load(r.File)
		if err != nil {
			r.logger().Warn("ignoring credentials file", zap.String("file", r.File), zap.Error(err))
		}
		takeAll(fromFile, SourceFile)
	}

	if r.Prompter == nil && (res.URL == "" || res.Username == "" || res.Password == "") {
		return res, fmt.Errorf("credentials incomplete and no prompt available")
	}
	if res.URL == "" {
		v, err := r.Prompter.Ask("Enter the Nerve management system URL: ")
		if err != nil {
			return res, err
		}
		res.URL, res.URLFrom = v, SourcePrompt
	}
	if res.Username == "" {
		v, err := r.Prompter.Ask("Enter your username: ")
		if err != nil {
			return res, err
		}
		res.Username, res.UsernameFrom = v, SourcePrompt
	}
	if res.Password == "" {
		v, err := r.Prompter.AskSecret("Enter your password: ")
		if err != nil {
			return res, err
		}
		res.Password, res.PasswordFrom = v, SourcePrompt
	}

	res.URL = NormalizeURL(res.URL)
	r.logger().Debug("credentials resolved",
		zap.String("url_from", string(res.URLFrom)),
		zap.String("username_from", string(res.UsernameFrom)),
		zap.String("password_from", string(res.PasswordFrom)),
	)
	return res, res.Validate()
}

// Remember saves prompted credentials to the resolver's file. Unless yes
// is set the user is asked first; when they decline only the URL is kept.
// Nothing is written when no value was prompted for.
func (r *Resolver) Remember(res Resolved, yes bool) (bool, error) {
	if !res.Prompted() {
		return false, nil
	}
	keep := yes
	if !keep {
		if r.Prompter == nil {
			return false, nil
		}
		var err error
		keep, err = r.Prompter.Confirm(fmt.Sprintf("Do you want to save the credentials in %s ?", r.File))
		if err != nil {
			return false, err
		}
	}
	toSave := Credentials{URL: res.URL}
	if keep {
		toSave.Username = res.Username
		toSave.Password = res.Password
	}
	return keep, Save(r.File, toSave)
}
