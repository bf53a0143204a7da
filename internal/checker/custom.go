package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"time"

	"appwatch/internal/track"
)

const (
	defaultCustomTimeout = 30 * time.Second
	maxPageBytes         = 4 << 20 // cap page reads; version strings live near the top anyway
	maxDetectedPatterns  = 5
	maxPatternExamples   = 5
)

// defaultVersionPatterns are tried in order when an app has no explicit
// extraction pattern configured. The first capture group is the version.
var defaultVersionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)version[:\s]+(\d+(?:\.\d+)*)`),
	regexp.MustCompile(`(?i)v(\d+(?:\.\d+)+)`),
	regexp.MustCompile(`(?i)latest[:\s]+(\d+(?:\.\d+)*)`),
	regexp.MustCompile(`(?i)(\d+\.\d+\.\d+(?:-[a-zA-Z0-9]+)?)`),
	regexp.MustCompile(`(?i)(\d+\.\d+)`),
}

// CustomChecker fetches an arbitrary URL and extracts a version with a
// configured regex pattern, falling back to the built-in pattern list.
type CustomChecker struct {
	client  *http.Client
	timeout time.Duration
}

// NewCustom creates the custom-URL checker.
func NewCustom(opts Options) *CustomChecker {
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultCustomTimeout
	}
	return &CustomChecker{client: &http.Client{}, timeout: timeout}
}

func (c *CustomChecker) Source() track.Source { return track.SourceCustom }

func (c *CustomChecker) CanCheck(app *track.App) bool {
	return app.Source == track.SourceCustom
}

// Check fetches the configured URL and matches the configured pattern
// against the page body; the first capture group becomes the version.
// Absence of a match is a check failure, not a fault.
func (c *CustomChecker) Check(ctx context.Context, app *track.App) track.UpdateInfo {
	info := track.UpdateInfo{InstalledVersion: app.InstalledVersion}
	if app.CustomURL == "" {
		info.Error = "no URL configured for this app"
		return info
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, errMsg := c.fetch(ctx, app.CustomURL)
	if errMsg != "" {
		info.Error = errMsg
		return info
	}

	var version string
	if app.VersionRegex != "" {
		// Case-insensitive to match how the patterns are authored.
		re, err := regexp.Compile("(?i)" + app.VersionRegex)
		if err != nil {
			info.Error = fmt.Sprintf("invalid version pattern: %v", err)
			return info
		}
		version = firstCapture(re, body)
	} else {
		for _, re := range defaultVersionPatterns {
			if version = firstCapture(re, body); version != "" {
				break
			}
		}
	}

	if version == "" {
		info.Error = "could not extract a version from the page"
		return info
	}
	info.LatestVersion = version
	info.ReleaseURL = app.CustomURL
	return info
}

func (c *CustomChecker) fetch(ctx context.Context, pageURL string) (body, errMsg string) {
	resp, err := getWithRetry(ctx, c.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		return req, nil
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return "", "timed out fetching the page"
	}
	if err != nil {
		return "", fmt.Sprintf("failed to fetch URL: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Sprintf("page returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Sprintf("failed to read page body: %v", err)
	}
	return string(data), ""
}

func firstCapture(re *regexp.Regexp, body string) string {
	m := re.FindStringSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// PatternMatch describes one built-in pattern that matched a page, with
// example captures. Used only in the add-app flow to suggest a pattern.
type PatternMatch struct {
	Pattern  string
	Examples []string
	Count    int
}

// DetectPatterns fetches a URL and reports which of the built-in patterns
// match its body, ranked by match count.
func (c *CustomChecker) DetectPatterns(ctx context.Context, pageURL string) ([]PatternMatch, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, errMsg := c.fetch(ctx, pageURL)
	if errMsg != "" {
		return nil, errors.New(errMsg)
	}

	var found []PatternMatch
	for _, re := range defaultVersionPatterns {
		matches := re.FindAllStringSubmatch(body, -1)
		if len(matches) == 0 {
			continue
		}
		seen := make(map[string]bool)
		var examples []string
		for _, m := range matches {
			if len(m) < 2 || seen[m[1]] {
				continue
			}
			seen[m[1]] = true
			examples = append(examples, m[1])
			if len(examples) == maxPatternExamples {
				break
			}
		}
		found = append(found, PatternMatch{
			Pattern:  re.String(),
			Examples: examples,
			Count:    len(matches),
		})
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Count > found[j].Count
	})
	if len(found) > maxDetectedPatterns {
		found = found[:maxDetectedPatterns]
	}
	return found, nil
}
