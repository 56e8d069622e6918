package fetcher

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RobotsRule is one user-agent group of a robots.txt file
type RobotsRule struct {
	UserAgent  string
	Disallowed []string
	CrawlDelay time.Duration
}

// RobotsPolicy answers whether a corpus URL may be fetched
type RobotsPolicy struct {
	rules []RobotsRule
}

// robotsURL returns the robots.txt location for the host of rawURL
func robotsURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing corpus URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("corpus URL %q must be absolute", rawURL)
	}
	return parsed.Scheme + "://" + parsed.Host + "/robots.txt", nil
}

// parseRobotsTxt reads user-agent groups, Disallow lines and Crawl-delay values
func parseRobotsTxt(reader io.Reader) (*RobotsPolicy, error) {
	policy := &RobotsPolicy{rules: make([]RobotsRule, 0)}

	scanner := bufio.NewScanner(reader)
	var current *RobotsRule

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			if current != nil {
				policy.rules = append(policy.rules, *current)
			}
			current = &RobotsRule{UserAgent: value, Disallowed: make([]string, 0)}

		case "disallow":
			if current != nil && value != "" {
				current.Disallowed = append(current.Disallowed, value)
			}

		case "crawl-delay":
			if current == nil {
				continue
			}
			if seconds, err := strconv.ParseFloat(value, 64); err == nil && seconds > 0 {
				current.CrawlDelay = time.Duration(seconds * float64(time.Second))
			}
		}
	}

	if current != nil {
		policy.rules = append(policy.rules, *current)
	}

	return policy, scanner.Err()
}

// IsAllowed reports whether userAgent may fetch rawURL
func (rp *RobotsPolicy) IsAllowed(rawURL, userAgent string) bool {
	if rp == nil || len(rp.rules) == 0 {
		return true
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}

	for _, rule := range rp.applicable(userAgent) {
		for _, pattern := range rule.Disallowed {
			if matchesPattern(path, pattern) {
				return false
			}
		}
	}
	return true
}

// CrawlDelay returns the delay requested for userAgent, preferring its own group over *
func (rp *RobotsPolicy) CrawlDelay(userAgent string) time.Duration {
	if rp == nil {
		return 0
	}
	for _, rule := range rp.applicable(userAgent) {
		if rule.CrawlDelay > 0 {
			return rule.CrawlDelay
		}
	}
	return 0
}

// applicable returns the groups naming userAgent followed by the wildcard groups
func (rp *RobotsPolicy) applicable(userAgent string) []RobotsRule {
	var specific, wildcard []RobotsRule
	for _, rule := range rp.rules {
		switch {
		case rule.UserAgent == "*":
			wildcard = append(wildcard, rule)
		case strings.EqualFold(rule.UserAgent, userAgent):
			specific = append(specific, rule)
		}
	}
	return append(specific, wildcard...)
}

// matchesPattern checks a path against a Disallow value, supporting * wildcards
func matchesPattern(path, pattern string) bool {
	if pattern == "" {
		return false
	}
	if strings.Contains(pattern, "*") {
		expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*")
		if matched, _ := regexp.MatchString(expr, path); matched {
			return true
		}
	}
	return strings.HasPrefix(path, pattern)
}
