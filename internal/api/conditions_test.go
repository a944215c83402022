package api

import (
	"net/http"
	"testing"

	"sluice/internal/trigger"
)

func TestConditionsMetUnconfiguredNeverRestricts(t *testing.T) {
	if !conditionsMet(trigger.WebhookSpec{}, map[string]any{"anything": true}, nil) {
		t.Fatalf("empty spec must match everything")
	}
}

func TestConditionsMetBranchFilter(t *testing.T) {
	spec := trigger.WebhookSpec{Branches: []string{"main", "release"}}

	if !conditionsMet(spec, map[string]any{"ref": "refs/heads/main"}, nil) {
		t.Fatalf("main push must match")
	}
	if conditionsMet(spec, map[string]any{"ref": "refs/heads/feature"}, nil) {
		t.Fatalf("feature push must not match")
	}
	if conditionsMet(spec, map[string]any{}, nil) {
		t.Fatalf("payload without branch must not match a branch filter")
	}
}

func TestConditionsMetEventFilterFromHeader(t *testing.T) {
	spec := trigger.WebhookSpec{Events: []string{"push"}}
	headers := http.Header{}
	headers.Set("X-GitHub-Event", "push")

	if !conditionsMet(spec, map[string]any{}, headers) {
		t.Fatalf("push event must match")
	}

	headers.Set("X-GitHub-Event", "issues")
	if conditionsMet(spec, map[string]any{}, headers) {
		t.Fatalf("issues event must not match")
	}
}

func TestConditionsMetEventFilterFromPayload(t *testing.T) {
	spec := trigger.WebhookSpec{Events: []string{"opened"}}

	if !conditionsMet(spec, map[string]any{"action": "opened"}, nil) {
		t.Fatalf("action field must satisfy the event filter")
	}
	if !conditionsMet(spec, map[string]any{"event_type": "opened"}, nil) {
		t.Fatalf("event_type field must satisfy the event filter")
	}
}

func TestConditionsMetRepositoryFilter(t *testing.T) {
	spec := trigger.WebhookSpec{Repositories: []string{"acme/widgets"}}

	github := map[string]any{
		"repository": map[string]any{"full_name": "acme/widgets"},
	}
	if !conditionsMet(spec, github, nil) {
		t.Fatalf("github repository shape must match")
	}

	gitlab := map[string]any{
		"project": map[string]any{"path_with_namespace": "acme/widgets"},
	}
	if !conditionsMet(spec, gitlab, nil) {
		t.Fatalf("gitlab project shape must match")
	}

	other := map[string]any{
		"repository": map[string]any{"full_name": "acme/gadgets"},
	}
	if conditionsMet(spec, other, nil) {
		t.Fatalf("other repository must not match")
	}
}

func TestConditionsMetAllListsMustMatch(t *testing.T) {
	spec := trigger.WebhookSpec{
		Events:   []string{"push"},
		Branches: []string{"main"},
	}
	headers := http.Header{}
	headers.Set("X-GitHub-Event", "push")

	if !conditionsMet(spec, map[string]any{"ref": "refs/heads/main"}, headers) {
		t.Fatalf("both filters satisfied must match")
	}
	if conditionsMet(spec, map[string]any{"ref": "refs/heads/dev"}, headers) {
		t.Fatalf("one failed filter must reject")
	}
}

func TestExtractBranchFallbacks(t *testing.T) {
	if got := extractBranch(map[string]any{"branch": "main"}); got != "main" {
		t.Fatalf("branch field not read: %q", got)
	}
	if got := extractBranch(map[string]any{"target_branch": "main"}); got != "main" {
		t.Fatalf("target_branch field not read: %q", got)
	}
}
