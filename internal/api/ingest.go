package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"sluice/internal/eventlog"
	"sluice/internal/processor"
	"sluice/internal/trigger"
)

// handleWebhook serves POST /webhook/{trigger_id}: signature check,
// declarative condition filter, then hand-off to the processor. A failed
// signature never creates an event.
func (gateway *Gateway) handleWebhook(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodPost {
		return methodNotAllowed(w, "POST")
	}
	id := pathSuffix(r.URL.Path, "/webhook/")
	if id == "" {
		return &apiError{Status: http.StatusNotFound, Message: "trigger not found"}
	}

	definition, err := gateway.System.Registry().Get(id)
	if err != nil || definition.Kind != trigger.KindWebhook {
		return &apiError{Status: http.StatusNotFound, Message: "trigger not found"}
	}
	if !definition.Enabled {
		return &apiError{Status: http.StatusForbidden, Message: "trigger disabled"}
	}
	if apiErr := gateway.allowTrigger(definition); apiErr != nil {
		return apiErr
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return &apiError{Status: http.StatusBadRequest, Message: "failed to read body"}
	}

	if definition.Authentication.RequiresSignature() {
		signature := r.Header.Get(SignatureHeader)
		if !VerifySignature(body, definition.Authentication.Secret, signature) {
			return &apiError{Status: http.StatusUnauthorized, Message: "invalid signature"}
		}
	}

	payload, apiErr := parsePayload(body)
	if apiErr != nil {
		return apiErr
	}

	if definition.HasWebhookConditions() && !conditionsMet(definition.WebhookSpec(), payload, r.Header) {
		// Understood but filtered: deliberately not an error and
		// deliberately no event record.
		gateway.System.Metrics().IncEventsFiltered()
		writeJSON(w, http.StatusOK, filteredResponse{Message: "conditions not met"})
		return nil
	}

	evt := eventlog.New(id, eventlog.TypeWebhook, payload, "webhook", headerSnapshot(r.Header))
	final := gateway.System.Processor().Process(r.Context(), evt)
	if final.Error != "" {
		return &apiError{Status: http.StatusInternalServerError, Message: final.Error}
	}

	writeJSON(w, http.StatusOK, triggerFireResponse{
		Message:     "webhook processed",
		EventID:     final.ID,
		ExecutionID: final.WorkflowExecutionID,
	})
	return nil
}

// handleAPITrigger serves POST /api/trigger/{trigger_id}: the webhook
// flow without signature or condition checks — every payload passes.
func (gateway *Gateway) handleAPITrigger(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodPost {
		return methodNotAllowed(w, "POST")
	}
	id := pathSuffix(r.URL.Path, "/api/trigger/")
	if id == "" {
		return &apiError{Status: http.StatusNotFound, Message: "trigger not found"}
	}

	definition, err := gateway.System.Registry().Get(id)
	if err != nil {
		return &apiError{Status: http.StatusNotFound, Message: "trigger not found"}
	}
	if !definition.Enabled {
		return &apiError{Status: http.StatusForbidden, Message: "trigger disabled"}
	}
	if apiErr := gateway.allowTrigger(definition); apiErr != nil {
		return apiErr
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return &apiError{Status: http.StatusBadRequest, Message: "failed to read body"}
	}
	payload, apiErr := parsePayload(body)
	if apiErr != nil {
		return apiErr
	}

	evt := eventlog.New(id, eventlog.TypeAPI, payload, "api", headerSnapshot(r.Header))
	final := gateway.System.Processor().Process(r.Context(), evt)
	if final.Error != "" {
		return &apiError{Status: http.StatusInternalServerError, Message: final.Error}
	}

	writeJSON(w, http.StatusOK, triggerFireResponse{
		Message:     "trigger processed",
		EventID:     final.ID,
		ExecutionID: final.WorkflowExecutionID,
	})
	return nil
}

// handleManualTrigger serves POST /api/workflows/{workflow_id}/trigger:
// a synthetic manual event that always attempts dispatch.
func (gateway *Gateway) handleManualTrigger(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodPost {
		return methodNotAllowed(w, "POST")
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/workflows/")
	workflowID, ok := strings.CutSuffix(rest, "/trigger")
	if !ok || workflowID == "" || strings.Contains(workflowID, "/") {
		return &apiError{Status: http.StatusNotFound, Message: "not found"}
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return &apiError{Status: http.StatusBadRequest, Message: "failed to read body"}
	}
	payload, apiErr := parsePayload(body)
	if apiErr != nil {
		return apiErr
	}

	final, err := gateway.System.Processor().ManualTrigger(r.Context(), workflowID, payload)
	if errors.Is(err, processor.ErrNoDispatcher) {
		return &apiError{Status: http.StatusServiceUnavailable, Message: processor.ErrNoDispatcher.Error()}
	}
	if final.Error != "" {
		return &apiError{Status: http.StatusInternalServerError, Message: final.Error}
	}

	writeJSON(w, http.StatusOK, triggerFireResponse{
		Message:     "workflow triggered",
		EventID:     final.ID,
		ExecutionID: final.WorkflowExecutionID,
	})
	return nil
}

// allowTrigger applies the trigger's own admission budget on top of the
// per-caller middleware limit.
func (gateway *Gateway) allowTrigger(definition trigger.Definition) *apiError {
	budget := definition.RateLimit
	if budget.MaxRequests <= 0 {
		return nil
	}
	window := time.Duration(budget.WindowSeconds) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	if !gateway.System.Limiter().Allow("trigger:"+definition.ID, budget.MaxRequests, window) {
		return &apiError{Status: http.StatusTooManyRequests, Message: "trigger rate limit exceeded"}
	}
	return nil
}

func parsePayload(body []byte) (map[string]any, *apiError) {
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &apiError{Status: http.StatusBadRequest, Message: "invalid json payload"}
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, nil
}

// headerSnapshot copies first header values for the audit record,
// dropping credentials.
func headerSnapshot(headers http.Header) map[string]string {
	snapshot := make(map[string]string, len(headers))
	for key, values := range headers {
		switch http.CanonicalHeaderKey(key) {
		case "Authorization", "Cookie", "X-Api-Key":
			continue
		}
		if len(values) > 0 {
			snapshot[key] = values[0]
		}
	}
	return snapshot
}

func pathSuffix(path, prefix string) string {
	suffix := strings.TrimPrefix(path, prefix)
	if suffix == path || suffix == "" || strings.Contains(suffix, "/") {
		return ""
	}
	return suffix
}
