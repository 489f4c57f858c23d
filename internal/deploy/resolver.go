// Package deploy resolves the latest successful deployment of a repository
// and the commit message behind it.
package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/stablekernel/ghd/internal/github"
)

// Fetcher issues an authenticated GET and returns the undecoded body.
type Fetcher interface {
	Get(ctx context.Context, endpoint *url.URL) ([]byte, error)
}

// Resolver walks a repository's deployments in provider order (newest first)
// and picks the first one with a successful status.
type Resolver struct {
	fetcher    Fetcher
	endpoints  *github.Endpoints
	trustOrder bool
	skipFailed bool
	logger     *slog.Logger
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithTrustProviderOrder makes the resolver return the first listed
// deployment without fetching any statuses.
func WithTrustProviderOrder(trust bool) Option {
	return func(r *Resolver) { r.trustOrder = trust }
}

// WithSkipFailedStatus makes the resolver skip a candidate whose status fetch
// fails instead of aborting the whole resolution.
func WithSkipFailedStatus(skip bool) Option {
	return func(r *Resolver) { r.skipFailed = skip }
}

// WithLogger sets the logger used for resolution decisions.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Resolver that fetches through fetcher.
func NewResolver(fetcher Fetcher, endpoints *github.Endpoints, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:   fetcher,
		endpoints: endpoints,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LatestCommitMessage resolves the latest successful deployment of repository
// and returns the message of its commit.
func (r *Resolver) LatestCommitMessage(ctx context.Context, repository string) (string, error) {
	d, err := r.LatestSuccessful(ctx, repository)
	if err != nil {
		return "", err
	}
	return r.CommitMessage(ctx, repository, d.SHA)
}

// LatestSuccessful returns the first deployment, in provider order, with at
// least one status equal to SuccessState. The scan stops at the first match.
// A status fetch failure aborts the scan unless WithSkipFailedStatus is set.
func (r *Resolver) LatestSuccessful(ctx context.Context, repository string) (Deployment, error) {
	deployments, err := r.deployments(ctx, repository)
	if err != nil {
		return Deployment{}, err
	}
	r.logger.Debug("listed deployments", "repository", repository, "count", len(deployments))
	if len(deployments) == 0 {
		return Deployment{}, fmt.Errorf("%w for %s", ErrNoSuccessfulDeployment, repository)
	}

	if r.trustOrder {
		r.logger.Debug("trusting provider order", "sha", deployments[0].SHA)
		return deployments[0], nil
	}

	skipped := 0
	for _, d := range deployments {
		ok, err := r.successful(ctx, d)
		if err != nil {
			if !r.skipFailed {
				return Deployment{}, fmt.Errorf("checking deployment %s: %w", d.SHA, err)
			}
			r.logger.Warn("skipping deployment", "sha", d.SHA, "error", err)
			skipped++
			continue
		}
		if ok {
			r.logger.Debug("selected deployment", "sha", d.SHA)
			return d, nil
		}
		r.logger.Debug("deployment not successful", "sha", d.SHA)
	}

	if skipped > 0 {
		return Deployment{}, fmt.Errorf("%w for %s (%d of %d deployments skipped after status errors)",
			ErrNoSuccessfulDeployment, repository, skipped, len(deployments))
	}
	return Deployment{}, fmt.Errorf("%w for %s", ErrNoSuccessfulDeployment, repository)
}

// CommitMessage fetches the git commit object for revision and returns its message.
func (r *Resolver) CommitMessage(ctx context.Context, repository, revision string) (string, error) {
	c, err := r.Commit(ctx, repository, revision)
	if err != nil {
		return "", err
	}
	return c.Message, nil
}

// Commit fetches and decodes the git commit object for revision.
func (r *Resolver) Commit(ctx context.Context, repository, revision string) (Commit, error) {
	endpoint, err := r.endpoints.Repo(repository, github.CommitPath(revision))
	if err != nil {
		return Commit{}, fmt.Errorf("building commit URL: %w", err)
	}
	body, err := r.fetcher.Get(ctx, endpoint)
	if err != nil {
		return Commit{}, fmt.Errorf("fetching commit %s: %w", revision, err)
	}

	var raw struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Commit{}, &github.DecodeError{URL: endpoint.String(), Err: err}
	}
	if raw.Message == nil {
		return Commit{}, &github.DecodeError{URL: endpoint.String(), Err: errors.New("commit object has no message")}
	}
	return Commit{Message: *raw.Message}, nil
}

func (r *Resolver) deployments(ctx context.Context, repository string) ([]Deployment, error) {
	endpoint, err := r.endpoints.Repo(repository, github.DeploymentsPath)
	if err != nil {
		return nil, fmt.Errorf("building deployments URL: %w", err)
	}
	body, err := r.fetcher.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetching deployments for %s: %w", repository, err)
	}

	var raw []struct {
		SHA         *string `json:"sha"`
		StatusesURL *string `json:"statuses_url"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &github.DecodeError{URL: endpoint.String(), Err: err}
	}
	if raw == nil {
		return nil, &github.DecodeError{URL: endpoint.String(), Err: errors.New("deployments body is not a list")}
	}

	deployments := make([]Deployment, 0, len(raw))
	for i, d := range raw {
		switch {
		case d.SHA == nil:
			return nil, &github.DecodeError{URL: endpoint.String(), Err: fmt.Errorf("deployment %d has no sha", i)}
		case d.StatusesURL == nil:
			return nil, &github.DecodeError{URL: endpoint.String(), Err: fmt.Errorf("deployment %d has no statuses_url", i)}
		}
		deployments = append(deployments, Deployment{SHA: *d.SHA, StatusesURL: *d.StatusesURL})
	}
	return deployments, nil
}

func (r *Resolver) successful(ctx context.Context, d Deployment) (bool, error) {
	endpoint, err := r.endpoints.Absolute(d.StatusesURL)
	if err != nil {
		return false, err
	}
	body, err := r.fetcher.Get(ctx, endpoint)
	if err != nil {
		return false, err
	}

	var raw []struct {
		State *string `json:"state"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return false, &github.DecodeError{URL: endpoint.String(), Err: err}
	}
	if raw == nil {
		return false, &github.DecodeError{URL: endpoint.String(), Err: errors.New("statuses body is not a list")}
	}

	statuses := make([]Status, 0, len(raw))
	for i, s := range raw {
		if s.State == nil {
			return false, &github.DecodeError{URL: endpoint.String(), Err: fmt.Errorf("status %d has no state", i)}
		}
		statuses = append(statuses, Status{State: *s.State})
	}
	return anySuccessful(statuses), nil
}
