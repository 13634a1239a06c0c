// Package match evaluates declarative rule conditions against emails.
// Evaluation never fails: malformed input degrades to a non-match.
package match

import (
	"regexp"
	"strings"

	"mailgate_server/core/domain"
)

// Matches reports whether every present condition passes. An empty
// condition set matches everything. String conditions are case-insensitive
// substring checks.
func Matches(email *domain.Email, c *domain.RuleConditions) bool {
	if c == nil {
		return true
	}

	if c.From != nil && !containsFold(email.From, *c.From) {
		return false
	}
	if c.To != nil && !containsFold(email.To, *c.To) {
		return false
	}
	if c.SubjectContains != nil && !containsFold(email.Subject, *c.SubjectContains) {
		return false
	}
	if c.Category != nil && (email.Category == nil || *email.Category != *c.Category) {
		return false
	}
	// An unclassified email defaults to 0 against the lower bound and 10
	// against the upper bound. The asymmetry is intentional.
	if c.PriorityGTE != nil && priorityOr(email, 0) < *c.PriorityGTE {
		return false
	}
	if c.PriorityLTE != nil && priorityOr(email, 10) > *c.PriorityLTE {
		return false
	}

	return true
}

// MatchesFiltering evaluates the extended filtering condition set. An
// invalid regex pattern counts as a non-match, never an error.
func MatchesFiltering(email *domain.Email, c *domain.FilteringConditions) bool {
	if c == nil {
		return true
	}

	if !Matches(email, &c.RuleConditions) {
		return false
	}

	if c.FromDomain != nil {
		senderDomain := ExtractDomain(email.From)
		if senderDomain == "" || !strings.EqualFold(senderDomain, *c.FromDomain) {
			return false
		}
	}
	if c.FromRegex != nil && !matchInsensitive(*c.FromRegex, email.From) {
		return false
	}
	if c.SubjectRegex != nil && !matchInsensitive(*c.SubjectRegex, email.Subject) {
		return false
	}

	return true
}

// ExtractDomain pulls the domain out of an address or "Name <addr>" string.
// Returns "" when no @ is present.
func ExtractDomain(address string) string {
	at := strings.Index(address, "@")
	if at < 0 {
		return ""
	}
	domain := address[at+1:]
	if end := strings.Index(domain, ">"); end >= 0 {
		domain = domain[:end]
	}
	return strings.TrimSpace(domain)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func matchInsensitive(pattern, s string) bool {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func priorityOr(email *domain.Email, fallback int) int {
	if email.Priority != nil {
		return *email.Priority
	}
	return fallback
}
