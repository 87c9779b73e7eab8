package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentgraph/talentgraph-go/internal/config"
	"github.com/talentgraph/talentgraph-go/internal/logging"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger, err := logging.New(logging.Config{Subsystem: "test"})
	require.NoError(t, err)

	cfg := config.GitHubConfig{
		RequestDelay:    time.Millisecond,
		RateLimitBuffer: 10,
		MaxRetries:      3,
		RetryBackoff:    2,
		RequestTimeout:  5 * time.Second,
	}
	c := NewClient(cfg, logger, srv.Client()).WithBaseURL(srv.URL)

	var sleeps []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return c, &sleeps
}

func rateHeaders(w http.ResponseWriter, remaining int, reset time.Time) {
	w.Header().Set("X-RateLimit-Limit", "5000")
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
	w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))
}

func TestGetUserNotFoundIsAbsent(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rateHeaders(w, 4999, time.Now().Add(time.Hour))
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}))

	user, found, err := c.GetUser(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, user)
}

func TestGetUserRetriesOn500(t *testing.T) {
	calls := 0
	c, sleeps := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		rateHeaders(w, 4999, time.Now().Add(time.Hour))
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"login": "alice", "followers": 12}`)
	}))

	user, found, err := c.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "alice", user.Login)
	assert.Equal(t, 12, user.Followers)
	assert.Equal(t, 3, calls)
	// Backoff doubles: 1s then 2s.
	require.Len(t, *sleeps, 2)
	assert.Equal(t, time.Second, (*sleeps)[0])
	assert.Equal(t, 2*time.Second, (*sleeps)[1])
}

func TestGetUserGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		rateHeaders(w, 4999, time.Now().Add(time.Hour))
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, _, err := c.GetUser(context.Background(), "alice")
	require.Error(t, err)
	assert.Equal(t, 4, calls) // initial attempt + 3 retries
}

func TestRateLimitExceededWaitsUntilReset(t *testing.T) {
	calls := 0
	reset := time.Now().Add(60 * time.Second)
	c, sleeps := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			rateHeaders(w, 0, reset)
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
			return
		}
		rateHeaders(w, 4999, time.Now().Add(time.Hour))
		fmt.Fprint(w, `{"login": "alice"}`)
	}))

	user, found, err := c.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "alice", user.Login)

	// The client slept roughly until the advertised reset (+1s slack).
	require.NotEmpty(t, *sleeps)
	assert.InDelta(t, 61, (*sleeps)[0].Seconds(), 5)
}

func TestLowBudgetBlocksBeforeNextCall(t *testing.T) {
	calls := 0
	reset := time.Now().Add(30 * time.Second)
	c, sleeps := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			// Response succeeds but leaves the budget under the buffer.
			rateHeaders(w, 5, reset)
		} else {
			rateHeaders(w, 4999, time.Now().Add(time.Hour))
		}
		fmt.Fprint(w, `{"login": "alice"}`)
	}))

	_, _, err := c.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, *sleeps)

	_, _, err = c.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	require.NotEmpty(t, *sleeps)
	assert.InDelta(t, 31, (*sleeps)[0].Seconds(), 5)
}

func TestListRepoContributorsExcludesBotsAndPaginates(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rateHeaders(w, 4999, time.Now().Add(time.Hour))
		page := r.URL.Query().Get("page")
		if page == "" || page == "1" {
			w.Header().Set("Link", fmt.Sprintf(`<%s?page=2>; rel="next"`, "http://"+r.Host+r.URL.Path))
			fmt.Fprint(w, `[
				{"login": "alice", "type": "User", "contributions": 40},
				{"login": "dependabot[bot]", "type": "Bot", "contributions": 99}
			]`)
			return
		}
		fmt.Fprint(w, `[{"login": "bob", "type": "User", "contributions": 10}]`)
	}))

	contributors, found, err := c.ListRepoContributors(context.Background(), "uniswap", "v4-core", 10)
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, contributors, 2)
	assert.Equal(t, "alice", contributors[0].Login)
	assert.Equal(t, 40, contributors[0].Contributions)
	assert.Equal(t, "bob", contributors[1].Login)
}

func TestListRepoContributorsPageCap(t *testing.T) {
	calls := 0
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		rateHeaders(w, 4999, time.Now().Add(time.Hour))
		// Always advertise another page.
		w.Header().Set("Link", fmt.Sprintf(`<%s?page=%d>; rel="next"`, "http://"+r.Host+r.URL.Path, calls+1))
		fmt.Fprintf(w, `[{"login": "user%d", "type": "User", "contributions": 1}]`, calls)
	}))

	contributors, _, err := c.ListRepoContributors(context.Background(), "o", "r", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, contributors, 3)
}

func TestGetRepoLanguages(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rateHeaders(w, 4999, time.Now().Add(time.Hour))
		fmt.Fprint(w, `{"Solidity": 120000, "TypeScript": 45000}`)
	}))

	langs, found, err := c.GetRepoLanguages(context.Background(), "uniswap", "v4-core")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 120000, langs["Solidity"])
	assert.Equal(t, 45000, langs["TypeScript"])
}

func TestBudgetTrackingFromHeaders(t *testing.T) {
	reset := time.Now().Add(42 * time.Minute).Truncate(time.Second)
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rateHeaders(w, 1234, reset)
		fmt.Fprint(w, `{"login": "alice"}`)
	}))

	_, _, err := c.GetUser(context.Background(), "alice")
	require.NoError(t, err)

	remaining, resetAt := c.RateBudget()
	assert.Equal(t, 1234, remaining)
	assert.WithinDuration(t, reset, resetAt, time.Second)
}
