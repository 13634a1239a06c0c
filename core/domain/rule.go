package domain

import "time"

// RuleConditions is the sparse predicate record shared by automation and
// filtering rules. Absent fields always match; present fields AND together.
type RuleConditions struct {
	From            *string        `json:"from,omitempty"`
	To              *string        `json:"to,omitempty"`
	SubjectContains *string        `json:"subject_contains,omitempty"`
	Category        *EmailCategory `json:"category,omitempty"`
	PriorityGTE     *int           `json:"priority_gte,omitempty"`
	PriorityLTE     *int           `json:"priority_lte,omitempty"`
}

// FilteringConditions extends RuleConditions with the free-tier matchers.
type FilteringConditions struct {
	RuleConditions
	FromDomain   *string `json:"from_domain,omitempty"`
	FromRegex    *string `json:"from_regex,omitempty"`
	SubjectRegex *string `json:"subject_regex,omitempty"`
}

// RuleActions is the sparse action record of an automation rule.
type RuleActions struct {
	Classify       *EmailCategory `json:"classify,omitempty"`
	Archive        bool           `json:"archive,omitempty"`
	MarkRead       bool           `json:"mark_read,omitempty"`
	AutoReply      bool           `json:"auto_reply,omitempty"`
	ReplyTemplate  *string        `json:"reply_template,omitempty"`
	ForwardToAgent bool           `json:"forward_to_agent,omitempty"`
}

// FilteringActions extends RuleActions with a webhook target notified on
// match.
type FilteringActions struct {
	RuleActions
	Webhook *string `json:"webhook,omitempty"`
}

// AutomationRule runs after classification; first match by descending
// priority wins. Priority carries no uniqueness constraint; ties break by
// rule id ascending.
type AutomationRule struct {
	ID         string
	UserID     string
	Name       string
	Conditions RuleConditions
	Actions    RuleActions
	Enabled    bool
	Priority   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FilteringRule runs before AI classification and is free on every tier.
type FilteringRule struct {
	ID         string
	UserID     string
	Name       string
	Conditions FilteringConditions
	Actions    FilteringActions
	Enabled    bool
	Priority   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
