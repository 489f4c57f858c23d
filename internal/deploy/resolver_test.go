package deploy_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stablekernel/ghd/internal/deploy"
	"github.com/stablekernel/ghd/internal/github"
)

const (
	apiRoot        = "https://api.test/"
	repo           = "octo/hello"
	deploymentsURL = apiRoot + "repos/octo/hello/deployments"
)

// MockFetcher is a mock implementation of the Fetcher interface.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Get(ctx context.Context, endpoint *url.URL) ([]byte, error) {
	args := m.Called(ctx, endpoint)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

func urlIs(raw string) interface{} {
	return mock.MatchedBy(func(u *url.URL) bool { return u.String() == raw })
}

func (m *MockFetcher) onGet(raw, body string) *mock.Call {
	return m.On("Get", mock.Anything, urlIs(raw)).Return([]byte(body), nil).Once()
}

func (m *MockFetcher) onGetError(raw string, err error) *mock.Call {
	return m.On("Get", mock.Anything, urlIs(raw)).Return(nil, err).Once()
}

func statusesURL(sha string) string {
	return apiRoot + "repos/octo/hello/deployments/" + sha + "/statuses"
}

func commitURL(sha string) string {
	return apiRoot + "repos/octo/hello/git/commits/" + sha
}

func deploymentsJSON(shas ...string) string {
	out := "["
	for i, sha := range shas {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"sha":%q,"statuses_url":%q,"environment":"prod"}`, sha, statusesURL(sha))
	}
	return out + "]"
}

func newResolver(t *testing.T, m *MockFetcher, opts ...deploy.Option) *deploy.Resolver {
	t.Helper()
	endpoints, err := github.NewEndpoints(apiRoot)
	require.NoError(t, err)
	return deploy.NewResolver(m, endpoints, opts...)
}

func TestResolver_LatestSuccessful(t *testing.T) {
	t.Run("empty deployments list is not found and fetches no commit", func(t *testing.T) {
		m := &MockFetcher{}
		m.onGet(deploymentsURL, `[]`)

		_, err := newResolver(t, m).LatestCommitMessage(context.Background(), repo)
		assert.ErrorIs(t, err, deploy.ErrNoSuccessfulDeployment)
		m.AssertNumberOfCalls(t, "Get", 1)
		m.AssertNotCalled(t, "Get", mock.Anything, mock.MatchedBy(func(u *url.URL) bool {
			return u.Path != "/repos/octo/hello/deployments"
		}))
	})

	t.Run("returns the single successful candidate at any position", func(t *testing.T) {
		shas := []string{"aaa", "bbb", "ccc", "ddd"}
		for winner := range shas {
			t.Run(shas[winner], func(t *testing.T) {
				m := &MockFetcher{}
				m.onGet(deploymentsURL, deploymentsJSON(shas...))
				for i := 0; i < winner; i++ {
					m.onGet(statusesURL(shas[i]), `[{"state":"failure"},{"state":"pending"}]`)
				}
				m.onGet(statusesURL(shas[winner]), `[{"state":"pending"},{"state":"success"}]`)

				d, err := newResolver(t, m).LatestSuccessful(context.Background(), repo)
				require.NoError(t, err)
				assert.Equal(t, shas[winner], d.SHA)
				assert.Equal(t, statusesURL(shas[winner]), d.StatusesURL)
				m.AssertExpectations(t)
				m.AssertNumberOfCalls(t, "Get", winner+2)
			})
		}
	})

	t.Run("stops at the first successful candidate", func(t *testing.T) {
		m := &MockFetcher{}
		m.onGet(deploymentsURL, deploymentsJSON("new", "old"))
		m.onGet(statusesURL("new"), `[{"state":"success"}]`)

		d, err := newResolver(t, m).LatestSuccessful(context.Background(), repo)
		require.NoError(t, err)
		assert.Equal(t, "new", d.SHA)
		m.AssertNotCalled(t, "Get", mock.Anything, urlIs(statusesURL("old")))
	})

	t.Run("queries every candidate exactly once when none succeeded", func(t *testing.T) {
		m := &MockFetcher{}
		m.onGet(deploymentsURL, deploymentsJSON("aaa", "bbb", "ccc"))
		m.onGet(statusesURL("aaa"), `[{"state":"failure"}]`)
		m.onGet(statusesURL("bbb"), `[]`)
		m.onGet(statusesURL("ccc"), `[{"state":"error"},{"state":"inactive"}]`)

		_, err := newResolver(t, m).LatestSuccessful(context.Background(), repo)
		assert.ErrorIs(t, err, deploy.ErrNoSuccessfulDeployment)
		assert.Contains(t, err.Error(), "no successful deployment")
		m.AssertExpectations(t)
		m.AssertNumberOfCalls(t, "Get", 4)
	})

	t.Run("success label is exact and case-sensitive", func(t *testing.T) {
		for _, state := range []string{"Success", "SUCCESS", "successful", " success", "success "} {
			m := &MockFetcher{}
			m.onGet(deploymentsURL, deploymentsJSON("aaa"))
			m.onGet(statusesURL("aaa"), fmt.Sprintf(`[{"state":%q}]`, state))

			_, err := newResolver(t, m).LatestSuccessful(context.Background(), repo)
			assert.ErrorIs(t, err, deploy.ErrNoSuccessfulDeployment, "state=%q", state)
		}
	})

	t.Run("status fetch failure aborts the scan", func(t *testing.T) {
		m := &MockFetcher{}
		m.onGet(deploymentsURL, deploymentsJSON("aaa", "bbb"))
		m.onGetError(statusesURL("aaa"), &github.StatusError{URL: statusesURL("aaa"), StatusCode: http.StatusBadGateway})

		_, err := newResolver(t, m).LatestSuccessful(context.Background(), repo)
		var statusErr *github.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
		assert.NotErrorIs(t, err, deploy.ErrNoSuccessfulDeployment)
		m.AssertNotCalled(t, "Get", mock.Anything, urlIs(statusesURL("bbb")))
	})

	t.Run("skips a failing candidate when configured to", func(t *testing.T) {
		m := &MockFetcher{}
		m.onGet(deploymentsURL, deploymentsJSON("aaa", "bbb"))
		m.onGetError(statusesURL("aaa"), &github.TransportError{URL: statusesURL("aaa"), Err: assert.AnError})
		m.onGet(statusesURL("bbb"), `[{"state":"success"}]`)

		d, err := newResolver(t, m, deploy.WithSkipFailedStatus(true)).LatestSuccessful(context.Background(), repo)
		require.NoError(t, err)
		assert.Equal(t, "bbb", d.SHA)
		m.AssertExpectations(t)
	})

	t.Run("reports skipped candidates when nothing matched", func(t *testing.T) {
		m := &MockFetcher{}
		m.onGet(deploymentsURL, deploymentsJSON("aaa", "bbb"))
		m.onGetError(statusesURL("aaa"), &github.TransportError{URL: statusesURL("aaa"), Err: assert.AnError})
		m.onGet(statusesURL("bbb"), `[{"state":"failure"}]`)

		_, err := newResolver(t, m, deploy.WithSkipFailedStatus(true)).LatestSuccessful(context.Background(), repo)
		assert.ErrorIs(t, err, deploy.ErrNoSuccessfulDeployment)
		assert.Contains(t, err.Error(), "1 of 2 deployments skipped")
	})

	t.Run("trusting provider order skips status checks", func(t *testing.T) {
		m := &MockFetcher{}
		m.onGet(deploymentsURL, deploymentsJSON("aaa", "bbb"))

		d, err := newResolver(t, m, deploy.WithTrustProviderOrder(true)).LatestSuccessful(context.Background(), repo)
		require.NoError(t, err)
		assert.Equal(t, "aaa", d.SHA)
		m.AssertNumberOfCalls(t, "Get", 1)
	})

	t.Run("trusting provider order still fails on an empty list", func(t *testing.T) {
		m := &MockFetcher{}
		m.onGet(deploymentsURL, `[]`)

		_, err := newResolver(t, m, deploy.WithTrustProviderOrder(true)).LatestSuccessful(context.Background(), repo)
		assert.ErrorIs(t, err, deploy.ErrNoSuccessfulDeployment)
	})

	t.Run("deployments fetch failure is not wrapped as not found", func(t *testing.T) {
		m := &MockFetcher{}
		m.onGetError(deploymentsURL, &github.StatusError{URL: deploymentsURL, StatusCode: http.StatusUnauthorized})

		_, err := newResolver(t, m).LatestSuccessful(context.Background(), repo)
		var statusErr *github.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
		m.AssertNumberOfCalls(t, "Get", 1)
	})

	t.Run("malformed deployments body is a decode error", func(t *testing.T) {
		for _, body := range []string{
			`{"message":"oops"}`,
			`not json`,
			`null`,
			`[{"statuses_url":"https://api.test/x"}]`,
			`[{"sha":"aaa"}]`,
		} {
			m := &MockFetcher{}
			m.onGet(deploymentsURL, body)

			_, err := newResolver(t, m).LatestSuccessful(context.Background(), repo)
			var decodeErr *github.DecodeError
			assert.ErrorAs(t, err, &decodeErr, "body=%s", body)
			assert.NotErrorIs(t, err, deploy.ErrNoSuccessfulDeployment, "body=%s", body)
			m.AssertNumberOfCalls(t, "Get", 1)
		}
	})

	t.Run("malformed statuses body is a decode error", func(t *testing.T) {
		for _, body := range []string{
			`{"state":"success"}`,
			`null`,
			`[{"status":"success"}]`,
			`[{"state":"failure"},{}]`,
		} {
			m := &MockFetcher{}
			m.onGet(deploymentsURL, deploymentsJSON("aaa"))
			m.onGet(statusesURL("aaa"), body)

			_, err := newResolver(t, m).LatestSuccessful(context.Background(), repo)
			var decodeErr *github.DecodeError
			assert.ErrorAs(t, err, &decodeErr, "body=%s", body)
			assert.NotErrorIs(t, err, deploy.ErrNoSuccessfulDeployment, "body=%s", body)
		}
	})

	t.Run("relative statuses URL is an invalid URL error", func(t *testing.T) {
		m := &MockFetcher{}
		m.onGet(deploymentsURL, `[{"sha":"aaa","statuses_url":"deployments/1/statuses"}]`)

		_, err := newResolver(t, m).LatestSuccessful(context.Background(), repo)
		var urlErr *github.InvalidURLError
		assert.ErrorAs(t, err, &urlErr)
		m.AssertNumberOfCalls(t, "Get", 1)
	})

	t.Run("invalid repository is an invalid URL error before any fetch", func(t *testing.T) {
		m := &MockFetcher{}

		_, err := newResolver(t, m).LatestSuccessful(context.Background(), "octo/hello?x")
		var urlErr *github.InvalidURLError
		assert.ErrorAs(t, err, &urlErr)
		m.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})
}

func TestResolver_CommitMessage(t *testing.T) {
	t.Run("returns the message verbatim", func(t *testing.T) {
		m := &MockFetcher{}
		m.onGet(commitURL("deadbeef"), `{"sha":"deadbeef","message":"Fix bug\n\nLonger body"}`)

		msg, err := newResolver(t, m).CommitMessage(context.Background(), repo, "deadbeef")
		require.NoError(t, err)
		assert.Equal(t, "Fix bug\n\nLonger body", msg)
	})

	t.Run("missing message is a decode error", func(t *testing.T) {
		m := &MockFetcher{}
		m.onGet(commitURL("deadbeef"), `{"sha":"deadbeef"}`)

		_, err := newResolver(t, m).CommitMessage(context.Background(), repo, "deadbeef")
		var decodeErr *github.DecodeError
		assert.ErrorAs(t, err, &decodeErr)
	})

	t.Run("status failure is kept distinct from decode failure", func(t *testing.T) {
		m := &MockFetcher{}
		m.onGetError(commitURL("deadbeef"), &github.StatusError{URL: commitURL("deadbeef"), StatusCode: http.StatusNotFound})

		_, err := newResolver(t, m).CommitMessage(context.Background(), repo, "deadbeef")
		var statusErr *github.StatusError
		require.ErrorAs(t, err, &statusErr)
		var decodeErr *github.DecodeError
		assert.False(t, errors.As(err, &decodeErr))
	})
}

func TestResolver_LatestCommitMessage(t *testing.T) {
	m := &MockFetcher{}
	m.onGet(deploymentsURL, deploymentsJSON("abc123"))
	m.onGet(statusesURL("abc123"), `[{"state":"pending"},{"state":"success"}]`)
	m.onGet(commitURL("abc123"), `{"message":"Fix bug"}`)

	msg, err := newResolver(t, m).LatestCommitMessage(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, "Fix bug", msg)
	m.AssertExpectations(t)
}

func TestStatus_Successful(t *testing.T) {
	tests := []struct {
		state string
		want  bool
	}{
		{"success", true},
		{"Success", false},
		{"successful", false},
		{"pending", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			assert.Equal(t, tt.want, deploy.Status{State: tt.state}.Successful())
		})
	}
}
