// SPDX-License-Identifier: MPL-2.0

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

type fakeBitbucket struct {
	mu    sync.Mutex
	repos []string
	fail  atomic.Int32
	hits  atomic.Int32
}

func (f *fakeBitbucket) repoJSON(name string) map[string]any {
	slug := Slugify(name)
	return map[string]any{
		"slug": slug,
		"name": name,
		"links": map[string]any{
			"clone": []map[string]string{
				{"name": "ssh", "href": "ssh://git@bitbucket.local:7999/pjkey/" + slug + ".git"},
				{"name": "http", "href": "https://bitbucket.local/scm/pjkey/" + slug + ".git"},
			},
		},
	}
}

func (f *fakeBitbucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	if user, pass, ok := r.BasicAuth(); !ok || user != "builder" || pass != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"errors":[{"message":"Authentication failed"}]}`)
		return
	}
	if f.fail.Load() > 0 {
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	const base = "/rest/api/1.0/projects/GAME/repos"
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.Method == http.MethodPost && r.URL.Path == base:
		var body bitbucketCreate
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ScmID != "git" || !body.Forkable {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, existing := range f.repos {
			if Slugify(existing) == Slugify(body.Name) {
				w.WriteHeader(http.StatusConflict)
				_, _ = fmt.Fprint(w, `{"errors":[{"message":"This repository URL is already taken."}]}`)
				return
			}
		}
		f.repos = append(f.repos, body.Name)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(f.repoJSON(body.Name))
	case r.Method == http.MethodGet && r.URL.Path == base:
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		// two repositories per page regardless of the requested limit
		end := min(start+2, len(f.repos))
		values := []map[string]any{}
		for _, name := range f.repos[start:end] {
			values = append(values, f.repoJSON(name))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"size":          len(values),
			"limit":         2,
			"start":         start,
			"isLastPage":    end == len(f.repos),
			"nextPageStart": end,
			"values":        values,
		})
	case r.Method == http.MethodDelete && len(r.URL.Path) > len(base)+1:
		slug := r.URL.Path[len(base)+1:]
		for i, existing := range f.repos {
			if Slugify(existing) == slug {
				f.repos = append(f.repos[:i], f.repos[i+1:]...)
				w.WriteHeader(http.StatusAccepted)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestBitbucket(t *testing.T, password string) (*Bitbucket, *fakeBitbucket) {
	t.Helper()
	fake := &fakeBitbucket{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)

	m, err := New(NewBitbucketSettings(BitbucketSettings{
		Name:       "Studio server",
		Scheme:     "http",
		Host:       host,
		Port:       port,
		Username:   "builder",
		Password:   password,
		ProjectKey: "GAME",
	}), WithHTTPClient(srv.Client()), WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m.(*Bitbucket), fake
}

func TestBitbucketLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m, fake := newTestBitbucket(t, "secret")

	if m.Kind() != KindBitbucket || m.Name() != "Studio server" || m.Color() != DefaultColor {
		t.Fatalf("identity = %q %q %v", m.Name(), m.Color(), m.Kind())
	}

	for _, name := range []string{"Core", "Player Controls", "Audio"} {
		remote, err := m.CreateRepository(ctx, name)
		if err != nil {
			t.Fatalf("CreateRepository(%q) error = %v", name, err)
		}
		if want := "https://bitbucket.local/scm/pjkey/" + Slugify(name) + ".git"; remote.URL != want {
			t.Errorf("CreateRepository(%q).URL = %q, want %q", name, remote.URL, want)
		}
	}

	list, err := m.ListRepositories(ctx)
	if err != nil {
		t.Fatalf("ListRepositories() error = %v", err)
	}
	if len(list) != 3 || list[0].Name != "Core" || list[2].Name != "Audio" {
		t.Fatalf("ListRepositories() = %+v", list)
	}

	if _, err := m.CreateRepository(ctx, "core"); !errors.Is(err, ErrRepositoryExists) {
		t.Fatalf("duplicate CreateRepository() error = %v, want ErrRepositoryExists", err)
	}

	if err := m.DeleteRepository(ctx, "Player Controls"); err != nil {
		t.Fatalf("DeleteRepository() error = %v", err)
	}
	if err := m.DeleteRepository(ctx, "Player Controls"); !errors.Is(err, ErrRepositoryNotFound) {
		t.Fatalf("second DeleteRepository() error = %v, want ErrRepositoryNotFound", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.repos) != 2 {
		t.Fatalf("server repos = %v", fake.repos)
	}
}

func TestBitbucketAuthFailure(t *testing.T) {
	t.Parallel()
	m, _ := newTestBitbucket(t, "wrong")

	_, err := m.ListRepositories(context.Background())
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("ListRepositories() error = %v, want 401", err)
	}
	if httpErr.Message != "Authentication failed" {
		t.Errorf("Message = %q", httpErr.Message)
	}
	if !errors.Is(err, ErrRemoteProvisioning) {
		t.Error("errors.Is(err, ErrRemoteProvisioning) = false")
	}
}

func TestBitbucketClientErrorsKeepBreakerClosed(t *testing.T) {
	t.Parallel()
	m, fake := newTestBitbucket(t, "wrong")

	for range breakerThreshold + 2 {
		_, _ = m.ListRepositories(context.Background())
	}
	if got := fake.hits.Load(); got != breakerThreshold+2 {
		t.Fatalf("server hits = %d, want %d", got, breakerThreshold+2)
	}
	for host, state := range m.BreakerStates() {
		if state != "closed" {
			t.Errorf("breaker for %s = %s, want closed", host, state)
		}
	}
}

func TestBitbucketBreakerTrips(t *testing.T) {
	t.Parallel()
	m, fake := newTestBitbucket(t, "secret")
	fake.fail.Store(1)

	for i := range breakerThreshold {
		if _, err := m.CreateRepository(context.Background(), "Core"); err == nil {
			t.Fatalf("attempt %d succeeded against a failing server", i)
		}
	}
	hits := fake.hits.Load()

	_, err := m.CreateRepository(context.Background(), "Core")
	if !errors.Is(err, ErrCircuitOpen) || !errors.Is(err, ErrRemoteProvisioning) {
		t.Fatalf("CreateRepository() error = %v, want ErrCircuitOpen", err)
	}
	if fake.hits.Load() != hits {
		t.Error("request reached the server while the breaker was open")
	}
	for host, state := range m.BreakerStates() {
		if state != "open" {
			t.Errorf("breaker for %s = %s, want open", host, state)
		}
	}
}

func TestBitbucketHalfOpenBreakerSendsTrialRequest(t *testing.T) {
	t.Parallel()
	m, fake := newTestBitbucket(t, "secret")
	ctx := context.Background()

	const interval = 200 * time.Millisecond
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = interval
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.Reset()
	m.mu.Lock()
	m.breakers[m.base.Host] = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    bo,
		ShouldTrip: circuit.ThresholdTripFunc(breakerThreshold),
	})
	m.mu.Unlock()

	fake.fail.Store(1)
	for range breakerThreshold {
		_, _ = m.CreateRepository(ctx, "Core")
	}
	if _, err := m.CreateRepository(ctx, "Core"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("CreateRepository() error = %v, want ErrCircuitOpen", err)
	}
	hits := fake.hits.Load()

	// Past the first backoff but short of the doubled one: exactly one
	// readiness check lets the trial through.
	time.Sleep(interval * 3 / 2)
	fake.fail.Store(0)
	if _, err := m.CreateRepository(ctx, "Core"); err != nil {
		t.Fatalf("trial CreateRepository() error = %v", err)
	}
	if fake.hits.Load() == hits {
		t.Error("trial request never reached the server")
	}
}

func TestBitbucketTimeout(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})
	u, _ := url.Parse(srv.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)

	m, err := New(NewBitbucketSettings(BitbucketSettings{Scheme: "http", Host: host, Port: port}),
		WithHTTPClient(srv.Client()), WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.CreateRepository(context.Background(), "Core")
	if !errors.Is(err, ErrProvisioningTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("CreateRepository() error = %v, want ErrProvisioningTimeout", err)
	}
}
