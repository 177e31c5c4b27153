// SPDX-License-Identifier: MPL-2.0

//go:build integration

package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/moduni/moduni/internal/testutil"
)

const sshdBootstrap = `apk add --no-cache openssh git >/dev/null &&
ssh-keygen -A &&
adduser -D git &&
echo 'git:secret' | chpasswd &&
sed -i 's/^#\?PasswordAuthentication.*/PasswordAuthentication yes/' /etc/ssh/sshd_config &&
exec /usr/sbin/sshd -D -e`

// checkTestcontainersAvailable safely checks if testcontainers can be used.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

func TestSSHManager_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping ssh integration test: testcontainers provider not available")
	}

	sem := testutil.ContainerSemaphore()
	sem <- struct{}{}
	defer func() { <-sem }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "alpine:3.20",
			ExposedPorts: []string{"22/tcp"},
			Cmd:          []string{"sh", "-c", sshdBootstrap},
			WaitingFor:   wait.ForListeningPort("22/tcp").WithStartupTimeout(3 * time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, c)
	if err != nil {
		t.Fatalf("starting sshd container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := c.MappedPort(ctx, "22/tcp")
	if err != nil {
		t.Fatal(err)
	}

	m, err := New(NewSSHSettings(SSHSettings{
		Name:                  "Container",
		Host:                  host,
		Port:                  port.Int(),
		Username:              "git",
		Password:              "secret",
		RootPath:              "/home/git/repos",
		InsecureIgnoreHostKey: true,
	}), WithTimeout(30*time.Second))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	list, err := m.ListRepositories(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("ListRepositories() on empty root = %v, %v", list, err)
	}

	for _, name := range []string{"physics", "core"} {
		if _, err := m.CreateRepository(ctx, name); err != nil {
			t.Fatalf("CreateRepository(%q) error = %v", name, err)
		}
	}
	if _, err := m.CreateRepository(ctx, "core"); !errors.Is(err, ErrRepositoryExists) {
		t.Fatalf("duplicate CreateRepository() error = %v, want ErrRepositoryExists", err)
	}

	list, err = m.ListRepositories(ctx)
	if err != nil {
		t.Fatalf("ListRepositories() error = %v", err)
	}
	if len(list) != 2 || list[0].Name != "core" || list[1].Name != "physics" {
		t.Fatalf("ListRepositories() = %+v", list)
	}

	if err := m.DeleteRepository(ctx, "core"); err != nil {
		t.Fatalf("DeleteRepository() error = %v", err)
	}
	if err := m.DeleteRepository(ctx, "core"); !errors.Is(err, ErrRepositoryNotFound) {
		t.Fatalf("second DeleteRepository() error = %v, want ErrRepositoryNotFound", err)
	}
}
