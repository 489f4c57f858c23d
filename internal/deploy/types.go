package deploy

import "errors"

// SuccessState is the provider's canonical label for a successful deployment status.
const SuccessState = "success"

// ErrNoSuccessfulDeployment is returned when every round trip succeeded but
// no deployment carries a successful status.
var ErrNoSuccessfulDeployment = errors.New("no successful deployment")

// Deployment is a provider-tracked release of one revision.
type Deployment struct {
	SHA         string `json:"sha"`
	StatusesURL string `json:"statuses_url"`
}

// Status is one state record attached to a deployment.
type Status struct {
	State string `json:"state"`
}

// Successful reports whether the status is exactly the canonical success label.
func (s Status) Successful() bool {
	return s.State == SuccessState
}

// Commit is the part of a git commit object ghd cares about.
type Commit struct {
	Message string `json:"message"`
}

func anySuccessful(statuses []Status) bool {
	for _, s := range statuses {
		if s.Successful() {
			return true
		}
	}
	return false
}
