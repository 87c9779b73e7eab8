package github

import (
	"context"
	"fmt"
	"time"

	gh "github.com/google/go-github/v57/github"
)

// User is the subset of a GitHub user record the pipeline consumes.
type User struct {
	Login           string
	Name            *string
	Email           *string
	Bio             *string
	Company         *string
	Location        *string
	Blog            *string
	TwitterUsername *string
	AvatarURL       *string
	Hireable        *bool
	Followers       int
	Following       int
	PublicRepos     int
	CreatedAt       *time.Time
	UpdatedAt       *time.Time
}

// Repo is the subset of a repository record the pipeline consumes.
type Repo struct {
	FullName    string
	Owner       string
	Name        string
	Description *string
	Language    *string
	HomepageURL *string
	Stars       int
	Forks       int
	IsFork      bool
	CreatedAt   *time.Time
	UpdatedAt   *time.Time
	PushedAt    *time.Time
}

// Contributor is one entry of a repository's contributor list.
type Contributor struct {
	Login         string
	AvatarURL     string
	Contributions int
}

// Org is the subset of an organization record the pipeline consumes.
type Org struct {
	Login       string
	Name        *string
	Description *string
	PublicRepos int
}

// GetUser fetches a user by login. found=false on 404.
func (c *Client) GetUser(ctx context.Context, login string) (*User, bool, error) {
	var user *gh.User
	absent, err := c.do(ctx, "users/"+login, func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		user, resp, err = c.gh.Users.Get(ctx, login)
		return resp, err
	})
	if err != nil || absent {
		return nil, false, err
	}
	return convertUser(user), true, nil
}

// ListUserRepos fetches all non-private repos owned by a user, paginated.
func (c *Client) ListUserRepos(ctx context.Context, login string) ([]Repo, bool, error) {
	opts := &gh.RepositoryListByUserOptions{
		Type:        "owner",
		Sort:        "updated",
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	var all []Repo
	for {
		var page []*gh.Repository
		absent, err := c.do(ctx, "users/"+login+"/repos", func() (*gh.Response, error) {
			var resp *gh.Response
			var err error
			page, resp, err = c.gh.Repositories.ListByUser(ctx, login, opts)
			if err == nil && resp.NextPage == 0 {
				opts.Page = 0
			} else if err == nil {
				opts.Page = resp.NextPage
			}
			return resp, err
		})
		if err != nil {
			return nil, false, err
		}
		if absent {
			return nil, false, nil
		}
		for _, r := range page {
			all = append(all, convertRepo(r))
		}
		if opts.Page == 0 {
			break
		}
	}
	return all, true, nil
}

// GetOrg fetches an organization by name. found=false on 404.
func (c *Client) GetOrg(ctx context.Context, name string) (*Org, bool, error) {
	var org *gh.Organization
	absent, err := c.do(ctx, "orgs/"+name, func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		org, resp, err = c.gh.Organizations.Get(ctx, name)
		return resp, err
	})
	if err != nil || absent {
		return nil, false, err
	}
	return &Org{
		Login:       org.GetLogin(),
		Name:        org.Name,
		Description: org.Description,
		PublicRepos: org.GetPublicRepos(),
	}, true, nil
}

// ListOrgMembers fetches all public members of an organization.
func (c *Client) ListOrgMembers(ctx context.Context, org string) ([]Contributor, bool, error) {
	opts := &gh.ListMembersOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	var all []Contributor
	for {
		var page []*gh.User
		absent, err := c.do(ctx, "orgs/"+org+"/members", func() (*gh.Response, error) {
			var resp *gh.Response
			var err error
			page, resp, err = c.gh.Organizations.ListMembers(ctx, org, opts)
			if err == nil && resp.NextPage == 0 {
				opts.Page = 0
			} else if err == nil {
				opts.Page = resp.NextPage
			}
			return resp, err
		})
		if err != nil {
			return nil, false, err
		}
		if absent {
			return nil, false, nil
		}
		for _, u := range page {
			if u.GetType() != "User" {
				continue
			}
			all = append(all, Contributor{Login: u.GetLogin(), AvatarURL: u.GetAvatarURL()})
		}
		if opts.Page == 0 {
			break
		}
	}
	return all, true, nil
}

// ListOrgRepos fetches all public repositories of an organization.
func (c *Client) ListOrgRepos(ctx context.Context, org string) ([]Repo, bool, error) {
	opts := &gh.RepositoryListByOrgOptions{
		Type:        "public",
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	var all []Repo
	for {
		var page []*gh.Repository
		absent, err := c.do(ctx, "orgs/"+org+"/repos", func() (*gh.Response, error) {
			var resp *gh.Response
			var err error
			page, resp, err = c.gh.Repositories.ListByOrg(ctx, org, opts)
			if err == nil && resp.NextPage == 0 {
				opts.Page = 0
			} else if err == nil {
				opts.Page = resp.NextPage
			}
			return resp, err
		})
		if err != nil {
			return nil, false, err
		}
		if absent {
			return nil, false, nil
		}
		for _, r := range page {
			all = append(all, convertRepo(r))
		}
		if opts.Page == 0 {
			break
		}
	}
	return all, true, nil
}

// GetRepo fetches a single repository. found=false on 404.
func (c *Client) GetRepo(ctx context.Context, owner, name string) (*Repo, bool, error) {
	var repo *gh.Repository
	absent, err := c.do(ctx, fmt.Sprintf("repos/%s/%s", owner, name), func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		repo, resp, err = c.gh.Repositories.Get(ctx, owner, name)
		return resp, err
	})
	if err != nil || absent {
		return nil, false, err
	}
	converted := convertRepo(repo)
	return &converted, true, nil
}

// ListRepoContributors fetches contributors ordered by contribution count,
// capped at maxPages (100 contributors per page) to bound cost on long-tail
// repos. Bot accounts (type != User) are excluded.
func (c *Client) ListRepoContributors(ctx context.Context, owner, name string, maxPages int) ([]Contributor, bool, error) {
	if maxPages <= 0 {
		maxPages = 10
	}
	opts := &gh.ListContributorsOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	endpoint := fmt.Sprintf("repos/%s/%s/contributors", owner, name)
	var all []Contributor
	for pages := 0; pages < maxPages; pages++ {
		var page []*gh.Contributor
		absent, err := c.do(ctx, endpoint, func() (*gh.Response, error) {
			var resp *gh.Response
			var err error
			page, resp, err = c.gh.Repositories.ListContributors(ctx, owner, name, opts)
			if err == nil && resp.NextPage == 0 {
				opts.Page = 0
			} else if err == nil {
				opts.Page = resp.NextPage
			}
			return resp, err
		})
		if err != nil {
			return nil, false, err
		}
		if absent {
			return nil, false, nil
		}
		for _, con := range page {
			if con.GetType() != "User" {
				continue
			}
			all = append(all, Contributor{
				Login:         con.GetLogin(),
				AvatarURL:     con.GetAvatarURL(),
				Contributions: con.GetContributions(),
			})
		}
		if opts.Page == 0 {
			break
		}
	}
	return all, true, nil
}

// GetRepoLanguages fetches the language -> bytes map for a repository.
func (c *Client) GetRepoLanguages(ctx context.Context, owner, name string) (map[string]int, bool, error) {
	var langs map[string]int
	endpoint := fmt.Sprintf("repos/%s/%s/languages", owner, name)
	absent, err := c.do(ctx, endpoint, func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		langs, resp, err = c.gh.Repositories.ListLanguages(ctx, owner, name)
		return resp, err
	})
	if err != nil || absent {
		return nil, false, err
	}
	return langs, true, nil
}

// CheckRateLimit queries the current core budget. This endpoint does not
// count against the rate limit.
func (c *Client) CheckRateLimit(ctx context.Context) (remaining int, resetAt time.Time, err error) {
	limits, _, err := c.gh.RateLimit.Get(ctx)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("check rate limit: %w", err)
	}
	core := limits.GetCore()
	c.mu.Lock()
	c.remaining = core.Remaining
	c.resetAt = core.Reset.Time
	c.mu.Unlock()
	return core.Remaining, core.Reset.Time, nil
}

func convertUser(u *gh.User) *User {
	out := &User{
		Login:           u.GetLogin(),
		Name:            u.Name,
		Email:           u.Email,
		Bio:             u.Bio,
		Company:         u.Company,
		Location:        u.Location,
		Blog:            u.Blog,
		TwitterUsername: u.TwitterUsername,
		Hireable:        u.Hireable,
		Followers:       u.GetFollowers(),
		Following:       u.GetFollowing(),
		PublicRepos:     u.GetPublicRepos(),
	}
	if u.AvatarURL != nil {
		out.AvatarURL = u.AvatarURL
	}
	if u.CreatedAt != nil {
		t := u.CreatedAt.Time
		out.CreatedAt = &t
	}
	if u.UpdatedAt != nil {
		t := u.UpdatedAt.Time
		out.UpdatedAt = &t
	}
	return out
}

func convertRepo(r *gh.Repository) Repo {
	out := Repo{
		FullName:    r.GetFullName(),
		Owner:       r.GetOwner().GetLogin(),
		Name:        r.GetName(),
		Description: r.Description,
		Language:    r.Language,
		HomepageURL: r.Homepage,
		Stars:       r.GetStargazersCount(),
		Forks:       r.GetForksCount(),
		IsFork:      r.GetFork(),
	}
	if r.CreatedAt != nil {
		t := r.CreatedAt.Time
		out.CreatedAt = &t
	}
	if r.UpdatedAt != nil {
		t := r.UpdatedAt.Time
		out.UpdatedAt = &t
	}
	if r.PushedAt != nil {
		t := r.PushedAt.Time
		out.PushedAt = &t
	}
	return out
}
