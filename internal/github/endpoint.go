package github

import (
	"net/url"
	"strings"
)

const (
	// DefaultAPIRoot is the public GitHub REST API root.
	DefaultAPIRoot = "https://api.github.com/"

	// DeploymentsPath is the repository-relative deployments collection.
	DeploymentsPath = "deployments"
)

// CommitPath returns the repository-relative path of a git commit object.
func CommitPath(revision string) string {
	return "git/commits/" + revision
}

// Endpoints builds resource URLs below an API root.
type Endpoints struct {
	root *url.URL
}

// NewEndpoints parses apiRoot. The root must be absolute; a missing trailing
// slash is added so relative joins keep any path prefix (e.g. /api/v3).
func NewEndpoints(apiRoot string) (*Endpoints, error) {
	root, err := url.Parse(strings.TrimSpace(apiRoot))
	if err != nil {
		return nil, &InvalidURLError{URL: apiRoot, Reason: "parsing api root", Err: err}
	}
	if !root.IsAbs() || root.Host == "" {
		return nil, &InvalidURLError{URL: apiRoot, Reason: "api root must be an absolute URL"}
	}
	if !strings.HasSuffix(root.Path, "/") {
		root.Path += "/"
		if root.RawPath != "" {
			root.RawPath += "/"
		}
	}
	root.RawQuery = ""
	root.Fragment = ""
	return &Endpoints{root: root}, nil
}

// Root returns a copy of the API root.
func (e *Endpoints) Root() *url.URL {
	u := *e.root
	return &u
}

// Repo builds root/repos/{repository}/{resource}. Each level is joined on its
// own and must stay below its parent.
func (e *Endpoints) Repo(repository, resource string) (*url.URL, error) {
	u, err := join(e.root, "repos/")
	if err != nil {
		return nil, err
	}
	if u, err = join(u, strings.Trim(repository, "/")+"/"); err != nil {
		return nil, err
	}
	return join(u, strings.TrimPrefix(resource, "/"))
}

// Absolute validates a URL handed out by the provider, such as a deployment's
// statuses_url, and returns it as is. It is never re-based onto the root.
func (e *Endpoints) Absolute(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &InvalidURLError{URL: raw, Err: err}
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, &InvalidURLError{URL: raw, Reason: "not an absolute URL"}
	}
	return u, nil
}

func join(parent *url.URL, segment string) (*url.URL, error) {
	target := parent.String() + segment
	if segment == "" || segment == "/" {
		return nil, &InvalidURLError{URL: target, Reason: "empty path segment"}
	}
	ref, err := url.Parse(segment)
	if err != nil {
		return nil, &InvalidURLError{URL: target, Err: err}
	}
	if ref.Scheme != "" || ref.Host != "" || ref.User != nil {
		return nil, &InvalidURLError{URL: target, Reason: "segment is not a relative path"}
	}
	if ref.RawQuery != "" || ref.ForceQuery || ref.Fragment != "" || strings.ContainsAny(segment, "?#") {
		return nil, &InvalidURLError{URL: target, Reason: "segment breaks out of the path"}
	}
	u := parent.ResolveReference(ref)
	if !strings.HasPrefix(u.Path, parent.Path) || u.Path == parent.Path {
		return nil, &InvalidURLError{URL: target, Reason: "segment escapes its parent path"}
	}
	return u, nil
}
