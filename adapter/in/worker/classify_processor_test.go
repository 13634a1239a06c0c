package worker

import (
	"context"
	"testing"

	"mailgate_server/core/domain"
	"mailgate_server/core/service/classify"
	"mailgate_server/core/service/rules"
	"mailgate_server/core/service/safety"
	"mailgate_server/core/service/usage"
)

type fakeCompletions struct {
	response string
	err      error
	calls    int
}

func (f *fakeCompletions) CompleteJSON(context.Context, string, string) (string, error) {
	f.calls++
	return f.response, f.err
}

func (f *fakeCompletions) Complete(context.Context, string, string) (string, error) {
	f.calls++
	return f.response, f.err
}

func newClassifyProcessor(emails *memEmailRepo, completions *fakeCompletions, ruleRepo *stubRuleRepo) (*ClassifyProcessor, *recordingRealtime) {
	users := &stubUserRepo{user: &domain.User{ID: "u1", Tier: "pro"}}
	gate := usage.NewGate(emails, stubDraftRepo{}, stubAccountRepo{}, stubAPIKeyRepo{})
	guard := safety.NewGuard(stubDraftRepo{})
	realtime := &recordingRealtime{}

	classifier := classify.NewClassifier(completions)
	rulesEngine := rules.NewEngine(ruleRepo, emails, gate, guard, &recordingEnqueuer{}, realtime)

	processor := NewClassifyProcessor(emails, users, classifier, rulesEngine, realtime)
	return processor, realtime
}

func classifyMessage() *Message {
	return NewMessage(JobAIClassify, map[string]any{"email_id": "e1", "user_id": "u1"})
}

func TestClassifyProcessorPersistsClassification(t *testing.T) {
	emails := newMemEmailRepo(invoiceEmail())
	completions := &fakeCompletions{response: `{
		"category": "automated",
		"priority": 3,
		"summary": "Vendor invoice notification.",
		"entities": {"people": [], "companies": ["Vendor"], "dates": [], "amounts": ["$99.00"]}
	}`}
	processor, realtime := newClassifyProcessor(emails, completions, &stubRuleRepo{})

	if err := processor.Process(context.Background(), classifyMessage()); err != nil {
		t.Fatalf("Process: %v", err)
	}

	email := emails.emails["e1"]
	if email.Category == nil || *email.Category != domain.CategoryAutomated {
		t.Errorf("category = %v, want automated", email.Category)
	}
	if email.Priority == nil || *email.Priority != 3 {
		t.Errorf("priority = %v, want 3", email.Priority)
	}
	if email.Summary == nil || *email.Summary == "" {
		t.Error("summary must be persisted")
	}
	if email.Entities == nil || len(email.Entities.Companies) != 1 {
		t.Errorf("entities = %+v, want one company", email.Entities)
	}
	if email.ProcessedAt == nil {
		t.Error("processedAt must be set")
	}

	if len(realtime.events) != 1 || realtime.events[0] != domain.EventEmailClassified {
		t.Fatalf("events = %v, want one email_classified", realtime.events)
	}
	if realtime.data[0]["method"] != "ai" {
		t.Errorf("method = %v, want ai", realtime.data[0]["method"])
	}
}

func TestClassifyProcessorEmptyResponseFailsJob(t *testing.T) {
	emails := newMemEmailRepo(invoiceEmail())
	processor, _ := newClassifyProcessor(emails, &fakeCompletions{response: ""}, &stubRuleRepo{})

	if err := processor.Process(context.Background(), classifyMessage()); err == nil {
		t.Fatal("an empty completion must fail the job for retry")
	}
	if emails.emails["e1"].Category != nil {
		t.Error("a failed classification must not persist anything")
	}
}

func TestClassifyProcessorSkipsAlreadyClassified(t *testing.T) {
	email := invoiceEmail()
	cat := domain.CategoryFYI
	email.Category = &cat
	emails := newMemEmailRepo(email)
	completions := &fakeCompletions{response: `{"category": "spam", "priority": 1}`}
	processor, _ := newClassifyProcessor(emails, completions, &stubRuleRepo{})

	if err := processor.Process(context.Background(), classifyMessage()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if completions.calls != 0 {
		t.Error("a classified email must not reach the model")
	}
	if *emails.emails["e1"].Category != domain.CategoryFYI {
		t.Error("existing category must be left alone")
	}
}

func TestClassifyProcessorRunsAutomationRulesAfter(t *testing.T) {
	emails := newMemEmailRepo(invoiceEmail())
	completions := &fakeCompletions{response: `{"category": "newsletter", "priority": 2}`}
	ruleRepo := &stubRuleRepo{automation: []*domain.AutomationRule{
		{
			ID:         "r1",
			Priority:   10,
			Conditions: domain.RuleConditions{Category: catPtr(domain.CategoryNewsletter)},
			Actions:    domain.RuleActions{Archive: true},
		},
	}}
	processor, _ := newClassifyProcessor(emails, completions, ruleRepo)

	if err := processor.Process(context.Background(), classifyMessage()); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !emails.emails["e1"].Archived {
		t.Error("the automation rule must see the fresh AI category")
	}
}
