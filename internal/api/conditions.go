package api

import (
	"net/http"
	"strings"

	"sluice/internal/trigger"
)

// conditionsMet evaluates a webhook trigger's declarative conditions
// against the payload and headers. Every configured allow-list must
// match; an unconfigured list never restricts.
func conditionsMet(spec trigger.WebhookSpec, payload map[string]any, headers http.Header) bool {
	if len(spec.Events) > 0 {
		if !listContains(spec.Events, extractEventType(payload, headers)) {
			return false
		}
	}
	if len(spec.Branches) > 0 {
		if !listContains(spec.Branches, extractBranch(payload)) {
			return false
		}
	}
	if len(spec.Repositories) > 0 {
		if !listContains(spec.Repositories, extractRepository(payload)) {
			return false
		}
	}
	return true
}

// extractEventType reads the provider event name: the X-GitHub-Event
// header, or event_type / action payload fields.
func extractEventType(payload map[string]any, headers http.Header) string {
	if headers != nil {
		if value := headers.Get("X-GitHub-Event"); value != "" {
			return value
		}
		if value := headers.Get("X-Gitlab-Event"); value != "" {
			return value
		}
	}
	if value := payloadString(payload, "event_type"); value != "" {
		return value
	}
	return payloadString(payload, "action")
}

// extractBranch reads ref-shaped fields; refs/heads/ prefixes are
// stripped so conditions name plain branches.
func extractBranch(payload map[string]any) string {
	if ref := payloadString(payload, "ref"); ref != "" {
		return strings.TrimPrefix(ref, "refs/heads/")
	}
	if branch := payloadString(payload, "branch"); branch != "" {
		return branch
	}
	return payloadString(payload, "target_branch")
}

// extractRepository reads provider-specific nested repository fields.
func extractRepository(payload map[string]any) string {
	if repository, ok := payload["repository"].(map[string]any); ok {
		if full := payloadString(repository, "full_name"); full != "" {
			return full
		}
		if name := payloadString(repository, "name"); name != "" {
			return name
		}
	}
	if project, ok := payload["project"].(map[string]any); ok {
		if path := payloadString(project, "path_with_namespace"); path != "" {
			return path
		}
	}
	return ""
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	value, ok := payload[key].(string)
	if !ok {
		return ""
	}
	return value
}

func listContains(list []string, value string) bool {
	if value == "" {
		return false
	}
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
