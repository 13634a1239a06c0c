package match

import (
	"testing"

	"mailgate_server/core/domain"
)

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func catPtr(c domain.EmailCategory) *domain.EmailCategory { return &c }

func testEmail() *domain.Email {
	return &domain.Email{
		From:    "Billing <billing@vendor.com>",
		To:      "me@example.com",
		Subject: "Invoice #123 attached",
	}
}

func TestMatchesEmptyConditions(t *testing.T) {
	if !Matches(testEmail(), &domain.RuleConditions{}) {
		t.Error("empty conditions must match everything")
	}
	if !Matches(testEmail(), nil) {
		t.Error("nil conditions must match everything")
	}
}

func TestMatchesStringConditions(t *testing.T) {
	tests := []struct {
		name string
		cond domain.RuleConditions
		want bool
	}{
		{"from substring case-insensitive", domain.RuleConditions{From: strPtr("BILLING@")}, true},
		{"from no match", domain.RuleConditions{From: strPtr("sales@")}, false},
		{"to substring", domain.RuleConditions{To: strPtr("me@example")}, true},
		{"subject contains", domain.RuleConditions{SubjectContains: strPtr("invoice")}, true},
		{"subject no match", domain.RuleConditions{SubjectContains: strPtr("receipt")}, false},
		{"all present all pass", domain.RuleConditions{
			From:            strPtr("vendor.com"),
			SubjectContains: strPtr("#123"),
		}, true},
		{"one failing condition fails the set", domain.RuleConditions{
			From:            strPtr("vendor.com"),
			SubjectContains: strPtr("nope"),
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(testEmail(), &tt.cond); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchesCategory(t *testing.T) {
	email := testEmail()
	cond := &domain.RuleConditions{Category: catPtr(domain.CategoryFYI)}

	if Matches(email, cond) {
		t.Error("unclassified email must not match a category condition")
	}

	cat := domain.CategoryFYI
	email.Category = &cat
	if !Matches(email, cond) {
		t.Error("matching category must pass")
	}
}

func TestMatchesPriorityDefaults(t *testing.T) {
	email := testEmail() // Priority == nil

	if Matches(email, &domain.RuleConditions{PriorityGTE: intPtr(1)}) {
		t.Error("nil priority defaults to 0 for the lower bound")
	}
	if Matches(email, &domain.RuleConditions{PriorityLTE: intPtr(9)}) {
		t.Error("nil priority defaults to 10 for the upper bound")
	}

	email.Priority = intPtr(5)
	if !Matches(email, &domain.RuleConditions{PriorityGTE: intPtr(3), PriorityLTE: intPtr(7)}) {
		t.Error("priority 5 must pass gte 3 / lte 7")
	}
	if Matches(email, &domain.RuleConditions{PriorityGTE: intPtr(6)}) {
		t.Error("priority 5 must fail gte 6")
	}
}

func TestMatchesFilteringDomain(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		want   bool
	}{
		{"exact domain match", "vendor.com", true},
		{"case-insensitive", "VENDOR.COM", true},
		{"different domain", "other.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := &domain.FilteringConditions{FromDomain: strPtr(tt.domain)}
			if got := MatchesFiltering(testEmail(), cond); got != tt.want {
				t.Errorf("MatchesFiltering = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchesFilteringRegex(t *testing.T) {
	cond := &domain.FilteringConditions{SubjectRegex: strPtr(`invoice\s*#\d+`)}
	if !MatchesFiltering(testEmail(), cond) {
		t.Error("case-insensitive subject regex must match")
	}

	cond = &domain.FilteringConditions{FromRegex: strPtr(`^billing\s`)}
	if !MatchesFiltering(testEmail(), cond) {
		t.Error("from regex must match display name form")
	}
}

func TestMatchesFilteringInvalidRegex(t *testing.T) {
	cond := &domain.FilteringConditions{SubjectRegex: strPtr("[invalid")}
	if MatchesFiltering(testEmail(), cond) {
		t.Error("invalid regex must evaluate to false, not match")
	}

	cond = &domain.FilteringConditions{FromRegex: strPtr("[invalid")}
	if MatchesFiltering(testEmail(), cond) {
		t.Error("invalid from regex must evaluate to false")
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"John <john@example.com>", "example.com"},
		{"plain@example.org", "example.org"},
		{"no-at-sign", ""},
		{"  <spaced@tabs.io>  ", "tabs.io"},
	}

	for _, tt := range tests {
		if got := ExtractDomain(tt.address); got != tt.want {
			t.Errorf("ExtractDomain(%q) = %q, want %q", tt.address, got, tt.want)
		}
	}
}
