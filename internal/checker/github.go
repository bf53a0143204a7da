package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"appwatch/internal/track"
)

const (
	githubAPIBase        = "https://api.github.com"
	defaultGitHubTimeout = 30 * time.Second
)

var repoCoordinate = regexp.MustCompile(`^[\w-]+/[\w.-]+$`)

// GitHubChecker resolves the latest published release of a repository via
// the GitHub releases API. An optional bearer token raises the request
// quota; without it checks still work under the anonymous limit.
type GitHubChecker struct {
	token   string
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewGitHub creates the GitHub releases checker.
func NewGitHub(opts Options) *GitHubChecker {
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultGitHubTimeout
	}
	return &GitHubChecker{
		token:   opts.GitHubToken,
		baseURL: githubAPIBase,
		client:  &http.Client{},
		timeout: timeout,
	}
}

func (c *GitHubChecker) Source() track.Source { return track.SourceGitHub }

func (c *GitHubChecker) CanCheck(app *track.App) bool {
	return app.Source == track.SourceGitHub
}

type githubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Check queries /repos/{repo}/releases/latest and strips the leading "v"
// marker from the release tag.
func (c *GitHubChecker) Check(ctx context.Context, app *track.App) track.UpdateInfo {
	info := track.UpdateInfo{InstalledVersion: app.InstalledVersion}
	if app.GitHubRepo == "" {
		info.Error = "no GitHub repository configured for this app"
		return info
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rel, status, err := c.latestRelease(ctx, app.GitHubRepo)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		info.Error = "timed out talking to the GitHub API"
	case err != nil:
		info.Error = fmt.Sprintf("GitHub API request failed: %v", err)
	case status == http.StatusForbidden:
		info.Error = "GitHub API rate limit exceeded (set GITHUB_TOKEN to raise the quota)"
	case status == http.StatusNotFound:
		info.Error = "repository not found or it has no releases"
	case status != http.StatusOK:
		info.Error = fmt.Sprintf("GitHub API returned status %d", status)
	case rel.TagName == "":
		info.Error = "no releases found for this repository"
	default:
		info.LatestVersion = track.NormalizeVersion(rel.TagName)
		info.ReleaseURL = rel.HTMLURL
	}
	return info
}

func (c *GitHubChecker) latestRelease(ctx context.Context, repo string) (githubRelease, int, error) {
	var rel githubRelease

	endpoint := fmt.Sprintf("%s/repos/%s/releases/latest", c.baseURL, repo)
	resp, err := getWithRetry(ctx, c.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)
		return req, nil
	})
	if err != nil {
		return rel, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rel, resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return rel, resp.StatusCode, fmt.Errorf("failed to parse release response: %w", err)
	}
	return rel, resp.StatusCode, nil
}

func (c *GitHubChecker) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// ValidateRepo checks that a repository coordinate is well-formed and
// exists. Used by the add-app and interactive-scan flows, not by checks.
func (c *GitHubChecker) ValidateRepo(ctx context.Context, repo string) (bool, string) {
	if !repoCoordinate.MatchString(repo) {
		return false, "invalid repository format, use 'owner/repo'"
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/repos/%s", c.baseURL, repo)
	resp, err := getWithRetry(ctx, c.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)
		return req, nil
	})
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, ""
	case http.StatusNotFound:
		return false, "repository not found"
	case http.StatusForbidden:
		return false, "rate limit exceeded"
	default:
		return false, fmt.Sprintf("GitHub API returned status %d", resp.StatusCode)
	}
}

// RepoResult is one repository search hit, surfaced in the interactive
// scan flow for search-and-pick disambiguation.
type RepoResult struct {
	FullName    string
	Description string
	Stars       int
}

// SearchRepos searches GitHub repositories by free-text query.
func (c *GitHubChecker) SearchRepos(ctx context.Context, query string, limit int) ([]RepoResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/search/repositories?q=" + url.QueryEscape(query) +
		"&per_page=" + strconv.Itoa(limit)
	resp, err := getWithRetry(ctx, c.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("GitHub search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub search returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Items []struct {
			FullName    string `json:"full_name"`
			Description string `json:"description"`
			Stars       int    `json:"stargazers_count"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	results := make([]RepoResult, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		results = append(results, RepoResult{
			FullName:    item.FullName,
			Description: item.Description,
			Stars:       item.Stars,
		})
	}
	return results, nil
}
