// SPDX-License-Identifier: MPL-2.0

package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"mvdan.cc/sh/v3/syntax"
)

// SSH provisions bare repositories below a directory of an SSH host.
type SSH struct {
	settings SSHSettings
	config   *ssh.ClientConfig
	timeout  time.Duration
	logger   *slog.Logger
}

func newSSH(s SSHSettings, o options) (*SSH, error) {
	s = s.withDefaults()
	cfg, err := clientConfig(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %w", ErrInvalidSettings, KindSSH, s.Name, err)
	}
	cfg.Timeout = o.timeout
	return &SSH{settings: s, config: cfg, timeout: o.timeout, logger: o.logger}, nil
}

func clientConfig(s SSHSettings) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if s.KeyFile != "" {
		data, err := os.ReadFile(s.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file: %w", err)
		}
		var signer ssh.Signer
		if s.Password != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(s.Password))
		} else {
			signer, err = ssh.ParsePrivateKey(data)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing key file: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	} else if s.Password != "" {
		auth = append(auth, ssh.Password(s.Password))
	}

	var hostKey ssh.HostKeyCallback
	if s.InsecureIgnoreHostKey {
		hostKey = ssh.InsecureIgnoreHostKey() //nolint:gosec // explicitly requested in configuration
	} else {
		cb, err := knownhosts.New(s.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("loading known hosts: %w", err)
		}
		hostKey = cb
	}

	return &ssh.ClientConfig{
		User:            s.Username,
		Auth:            auth,
		HostKeyCallback: hostKey,
	}, nil
}

// Name returns the display name.
func (s *SSH) Name() string { return s.settings.Name }

// Color returns the display color.
func (s *SSH) Color() string { return s.settings.Color }

// Kind returns KindSSH.
func (s *SSH) Kind() Kind { return KindSSH }

func (s *SSH) repoPath(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return "", fmt.Errorf("%w: repository name %q contains a path separator", ErrInvalidSettings, name)
	}
	return path.Join(s.settings.RootPath, name+bareSuffix), nil
}

// URL returns the clone URL of the repository at remotePath.
func (s *SSH) URL(remotePath string) string {
	u := url.URL{
		Scheme: "ssh",
		User:   url.User(s.settings.Username),
		Host:   net.JoinHostPort(s.settings.Host, strconv.Itoa(s.settings.Port)),
		Path:   remotePath,
	}
	return u.String()
}

// run executes command in a fresh session and returns its standard output.
func (s *SSH) run(ctx context.Context, command string) (string, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	addr := net.JoinHostPort(s.settings.Host, strconv.Itoa(s.settings.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, s.config)
	if err != nil {
		_ = conn.Close()
		return "", ctxErr(ctx, err)
	}
	client := ssh.NewClient(c, chans, reqs)
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return "", ctxErr(ctx, err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()
	select {
	case <-ctx.Done():
		_ = client.Close()
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg != "" {
				return stdout.String(), fmt.Errorf("%s: %w", msg, err)
			}
			return stdout.String(), ctxErr(ctx, err)
		}
	}
	s.logger.Debug("ssh command", "manager", s.Name(), "command", command)
	return stdout.String(), nil
}

// ctxErr prefers the context error over the I/O error it caused.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}

// shellCommand formats a POSIX command line, substituting each path as a
// quoted shell word, and rejects results that do not parse.
func shellCommand(format string, paths ...string) (string, error) {
	args := make([]any, len(paths))
	for i, p := range paths {
		q, err := syntax.Quote(p, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("%w: path %q: %w", ErrInvalidSettings, p, err)
		}
		args[i] = q
	}
	cmd := fmt.Sprintf(format, args...)
	if _, err := syntax.NewParser(syntax.Variant(syntax.LangPOSIX)).Parse(strings.NewReader(cmd), "ssh"); err != nil {
		return "", fmt.Errorf("command syntax error: %w", err)
	}
	return cmd, nil
}

func createScript(p string) (string, error) {
	return shellCommand("test ! -e %[1]s && mkdir -p %[1]s && git init --bare --quiet %[1]s", p)
}

func deleteScript(p string) (string, error) {
	return shellCommand("test -d %[1]s && rm -rf %[1]s", p)
}

func listScript(root string) (string, error) {
	return shellCommand(`cd %s 2>/dev/null || exit 0; for d in *.git; do [ -d "$d" ] && echo "$d"; done; exit 0`, root)
}

// CreateRepository runs "git init --bare" on the host.
func (s *SSH) CreateRepository(ctx context.Context, name string) (Remote, error) {
	p, err := s.repoPath(name)
	if err != nil {
		return Remote{}, provisioningError(s.Name(), "create", name, err)
	}
	cmd, err := createScript(p)
	if err != nil {
		return Remote{}, provisioningError(s.Name(), "create", name, err)
	}
	if _, err := s.run(ctx, cmd); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitStatus() == 1 {
			err = fmt.Errorf("%w: %w", ErrRepositoryExists, err)
		}
		return Remote{}, provisioningError(s.Name(), "create", name, err)
	}
	return Remote{Name: name, URL: s.URL(p)}, nil
}

// DeleteRepository removes the repository directory from the host.
func (s *SSH) DeleteRepository(ctx context.Context, name string) error {
	p, err := s.repoPath(name)
	if err != nil {
		return provisioningError(s.Name(), "delete", name, err)
	}
	cmd, err := deleteScript(p)
	if err != nil {
		return provisioningError(s.Name(), "delete", name, err)
	}
	if _, err := s.run(ctx, cmd); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitStatus() == 1 {
			err = fmt.Errorf("%w: %w", ErrRepositoryNotFound, err)
		}
		return provisioningError(s.Name(), "delete", name, err)
	}
	return nil
}

// ListRepositories lists the "*.git" directories below the root path.
func (s *SSH) ListRepositories(ctx context.Context) ([]Remote, error) {
	cmd, err := listScript(s.settings.RootPath)
	if err != nil {
		return nil, provisioningError(s.Name(), "list", "", err)
	}
	out, err := s.run(ctx, cmd)
	if err != nil {
		return nil, provisioningError(s.Name(), "list", "", err)
	}
	return s.parseListing(out), nil
}

func (s *SSH) parseListing(out string) []Remote {
	var remotes []Remote
	for line := range strings.Lines(out) {
		entry := strings.TrimSpace(line)
		if entry == "" || !strings.HasSuffix(entry, bareSuffix) {
			continue
		}
		remotes = append(remotes, Remote{
			Name: strings.TrimSuffix(entry, bareSuffix),
			URL:  s.URL(path.Join(s.settings.RootPath, entry)),
		})
	}
	slices.SortFunc(remotes, func(a, b Remote) int { return strings.Compare(a.Name, b.Name) })
	return remotes
}
