// SPDX-License-Identifier: MPL-2.0

package gitrepo

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// AuthFunc picks the credentials used to reach url. A nil result means
// anonymous access.
type AuthFunc func(url string) transport.AuthMethod

// DefaultAuth returns an AuthFunc that uses the first SSH key found in
// ~/.ssh for SSH URLs and a token from GITHUB_TOKEN, GITLAB_TOKEN or
// GIT_TOKEN for HTTPS URLs. keyPath, when set, overrides the key search.
func DefaultAuth(keyPath string) AuthFunc {
	return func(url string) transport.AuthMethod {
		switch {
		case isSSHURL(url):
			return sshAuth(keyPath)
		case strings.HasPrefix(url, "https://"), strings.HasPrefix(url, "http://"):
			return httpAuth()
		default:
			return nil
		}
	}
}

func isSSHURL(url string) bool {
	return strings.HasPrefix(url, "ssh://") || strings.HasPrefix(url, "git@") ||
		(strings.Contains(url, "@") && strings.Contains(url, ":") && !strings.Contains(url, "://"))
}

func sshAuth(keyPath string) transport.AuthMethod {
	keyPaths := []string{keyPath}
	if keyPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		keyPaths = []string{
			filepath.Join(homeDir, ".ssh", "id_ed25519"),
			filepath.Join(homeDir, ".ssh", "id_rsa"),
			filepath.Join(homeDir, ".ssh", "id_ecdsa"),
		}
	}

	for _, p := range keyPaths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if auth, err := ssh.NewPublicKeysFromFile("git", p, ""); err == nil {
			return auth
		}
	}
	return nil
}

func httpAuth() transport.AuthMethod {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return &http.BasicAuth{Username: "x-access-token", Password: token}
	}
	if token := os.Getenv("GITLAB_TOKEN"); token != "" {
		return &http.BasicAuth{Username: "gitlab-ci-token", Password: token}
	}
	if token := os.Getenv("GIT_TOKEN"); token != "" {
		return &http.BasicAuth{Username: "git", Password: token}
	}
	return nil
}
