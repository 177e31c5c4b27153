// SPDX-License-Identifier: MPL-2.0

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
	circuit "github.com/rubyist/circuitbreaker"
)

const (
	bitbucketAPIPrefix = "/rest/api/1.0"
	bitbucketPageLimit = 100
	dnsRefreshInterval = 5 * time.Minute
	breakerThreshold   = 5
)

type (
	// Bitbucket provisions repositories in a Bitbucket Server project.
	Bitbucket struct {
		settings BitbucketSettings
		base     *url.URL
		client   *http.Client
		timeout  time.Duration
		logger   *slog.Logger

		mu       sync.RWMutex
		breakers map[string]*circuit.Breaker
	}

	// HTTPError is a non-2xx answer from the server.
	HTTPError struct {
		StatusCode int
		Message    string
	}

	bitbucketRepo struct {
		Slug  string `json:"slug"`
		Name  string `json:"name"`
		Links struct {
			Clone []struct {
				Href string `json:"href"`
				Name string `json:"name"`
			} `json:"clone"`
		} `json:"links"`
	}

	bitbucketPage struct {
		Size          int             `json:"size"`
		Limit         int             `json:"limit"`
		Start         int             `json:"start"`
		IsLastPage    bool            `json:"isLastPage"`
		NextPageStart int             `json:"nextPageStart"`
		Values        []bitbucketRepo `json:"values"`
	}

	bitbucketCreate struct {
		Name     string `json:"name"`
		ScmID    string `json:"scmId"`
		Forkable bool   `json:"forkable"`
	}

	bitbucketErrors struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
)

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

func newBitbucket(s BitbucketSettings, o options) *Bitbucket {
	s = s.withDefaults()
	client := o.httpClient
	if client == nil {
		client = newCachingClient()
	}
	return &Bitbucket{
		settings: s,
		base: &url.URL{
			Scheme: s.Scheme,
			Host:   net.JoinHostPort(s.Host, strconv.Itoa(s.Port)),
		},
		client:   client,
		timeout:  o.timeout,
		logger:   o.logger,
		breakers: make(map[string]*circuit.Breaker),
	}
}

// newCachingClient returns an HTTP client whose dialer resolves hosts
// through a DNS cache refreshed at most every dnsRefreshInterval.
func newCachingClient() *http.Client {
	resolver := &dnscache.Resolver{}
	var (
		mu          sync.Mutex
		lastRefresh = time.Now()
	)
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				mu.Lock()
				if time.Since(lastRefresh) > dnsRefreshInterval {
					resolver.Refresh(true)
					lastRefresh = time.Now()
				}
				mu.Unlock()
				ips, err := resolver.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				var lastErr error
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
					lastErr = err
				}
				return nil, lastErr
			},
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// Name returns the display name.
func (b *Bitbucket) Name() string { return b.settings.Name }

// Color returns the display color.
func (b *Bitbucket) Color() string { return b.settings.Color }

// Kind returns KindBitbucket.
func (b *Bitbucket) Kind() Kind { return KindBitbucket }

// BreakerStates reports "open" or "closed" per host.
func (b *Bitbucket) BreakerStates() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	states := make(map[string]string, len(b.breakers))
	for host, br := range b.breakers {
		if br.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

func (b *Bitbucket) breaker(host string) *circuit.Breaker {
	b.mu.RLock()
	br, ok := b.breakers[host]
	b.mu.RUnlock()
	if ok {
		return br
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if br, ok := b.breakers[host]; ok {
		return br
	}
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()
	br = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(breakerThreshold),
	})
	b.breakers[host] = br
	return br
}

func (b *Bitbucket) reposPath(slug string) string {
	p := bitbucketAPIPrefix + "/projects/" + url.PathEscape(b.settings.ProjectKey) + "/repos"
	if slug != "" {
		p += "/" + url.PathEscape(slug)
	}
	return p
}

// do sends one request through the host breaker. Server errors and
// transport failures count against the breaker; client errors do not.
// Call is the only readiness check, so a half-open breaker advances its
// backoff once per trial request.
func (b *Bitbucket) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	host := b.base.Host
	br := b.breaker(host)

	var clientErr error
	err := br.Call(func() error {
		err := b.roundTrip(ctx, method, path, query, body, out)
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode < http.StatusInternalServerError {
			clientErr = err
			return nil
		}
		return err
	}, 0)
	if errors.Is(err, circuit.ErrBreakerOpen) {
		return fmt.Errorf("%w for %s", ErrCircuitOpen, host)
	}
	if err != nil {
		return err
	}
	return clientErr
}

func (b *Bitbucket) roundTrip(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *b.base
	u.Path = path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(b.settings.Username, b.settings.Password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	b.logger.Debug("bitbucket request", "method", method, "url", u.String())
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

func errorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 64*1024))
	var payload bitbucketErrors
	if json.Unmarshal(data, &payload) == nil && len(payload.Errors) > 0 {
		return payload.Errors[0].Message
	}
	return string(bytes.TrimSpace(data))
}

func (b *Bitbucket) cloneURL(r bitbucketRepo) string {
	for _, link := range r.Links.Clone {
		if link.Name == "http" || link.Name == "https" {
			return link.Href
		}
	}
	if len(r.Links.Clone) > 0 {
		return r.Links.Clone[0].Href
	}
	u := *b.base
	u.Path = "/scm/" + Slugify(b.settings.ProjectKey) + "/" + r.Slug + ".git"
	return u.String()
}

func mapStatus(err error) error {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusConflict:
			return fmt.Errorf("%w: %w", ErrRepositoryExists, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrRepositoryNotFound, err)
		}
	}
	return err
}

// CreateRepository creates a git repository named name in the project.
func (b *Bitbucket) CreateRepository(ctx context.Context, name string) (Remote, error) {
	if err := validateName(name); err != nil {
		return Remote{}, provisioningError(b.Name(), "create", name, err)
	}
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	var created bitbucketRepo
	body := bitbucketCreate{Name: name, ScmID: "git", Forkable: true}
	if err := b.do(ctx, http.MethodPost, b.reposPath(""), nil, body, &created); err != nil {
		return Remote{}, provisioningError(b.Name(), "create", name, mapStatus(err))
	}
	if created.Slug == "" {
		created.Slug = Slugify(name)
	}
	return Remote{Name: created.Name, URL: b.cloneURL(created)}, nil
}

// DeleteRepository deletes the repository whose slug derives from name.
func (b *Bitbucket) DeleteRepository(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return provisioningError(b.Name(), "delete", name, err)
	}
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.do(ctx, http.MethodDelete, b.reposPath(Slugify(name)), nil, nil, nil); err != nil {
		return provisioningError(b.Name(), "delete", name, mapStatus(err))
	}
	return nil
}

// ListRepositories walks every page of the project's repositories.
func (b *Bitbucket) ListRepositories(ctx context.Context) ([]Remote, error) {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	var remotes []Remote
	start := 0
	for {
		query := url.Values{}
		query.Set("start", strconv.Itoa(start))
		query.Set("limit", strconv.Itoa(bitbucketPageLimit))

		var page bitbucketPage
		if err := b.do(ctx, http.MethodGet, b.reposPath(""), query, nil, &page); err != nil {
			return nil, provisioningError(b.Name(), "list", "", err)
		}
		for _, r := range page.Values {
			remotes = append(remotes, Remote{Name: r.Name, URL: b.cloneURL(r)})
		}
		if page.IsLastPage || page.NextPageStart <= start {
			return remotes, nil
		}
		start = page.NextPageStart
	}
}
