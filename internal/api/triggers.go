package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"sluice/internal/trigger"
)

type triggerListResponse struct {
	Triggers []trigger.Definition `json:"triggers"`
	Total    int                  `json:"total"`
}

// handleTriggers serves GET/POST /api/triggers. Secrets never leave the
// process in plaintext.
func (gateway *Gateway) handleTriggers(w http.ResponseWriter, r *http.Request) *apiError {
	switch r.Method {
	case http.MethodGet:
		return gateway.listTriggers(w)
	case http.MethodPost:
		return gateway.createTrigger(w, r)
	default:
		return methodNotAllowed(w, "GET, POST")
	}
}

// handleTrigger serves GET/PUT/DELETE /api/triggers/{id}.
func (gateway *Gateway) handleTrigger(w http.ResponseWriter, r *http.Request) *apiError {
	id := pathSuffix(r.URL.Path, "/api/triggers/")
	if id == "" {
		return &apiError{Status: http.StatusNotFound, Message: "trigger not found"}
	}

	switch r.Method {
	case http.MethodGet:
		return gateway.getTrigger(w, id)
	case http.MethodPut:
		return gateway.updateTrigger(w, r, id)
	case http.MethodDelete:
		return gateway.deleteTrigger(w, id)
	default:
		return methodNotAllowed(w, "GET, PUT, DELETE")
	}
}

func (gateway *Gateway) listTriggers(w http.ResponseWriter) *apiError {
	definitions := gateway.System.Registry().List()
	redacted := make([]trigger.Definition, 0, len(definitions))
	for _, definition := range definitions {
		redacted = append(redacted, definition.Redacted())
	}
	writeJSON(w, http.StatusOK, triggerListResponse{
		Triggers: redacted,
		Total:    len(redacted),
	})
	return nil
}

func (gateway *Gateway) createTrigger(w http.ResponseWriter, r *http.Request) *apiError {
	var definition trigger.Definition
	if err := json.NewDecoder(r.Body).Decode(&definition); err != nil {
		return &apiError{Status: http.StatusBadRequest, Message: "invalid trigger definition"}
	}

	created, err := gateway.System.CreateTrigger(definition)
	if err != nil {
		return triggerAPIError(err)
	}
	writeJSON(w, http.StatusCreated, created.Redacted())
	return nil
}

func (gateway *Gateway) getTrigger(w http.ResponseWriter, id string) *apiError {
	definition, err := gateway.System.Registry().Get(id)
	if err != nil {
		return triggerAPIError(err)
	}
	writeJSON(w, http.StatusOK, definition.Redacted())
	return nil
}

func (gateway *Gateway) updateTrigger(w http.ResponseWriter, r *http.Request, id string) *apiError {
	var patch trigger.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		return &apiError{Status: http.StatusBadRequest, Message: "invalid trigger patch"}
	}

	updated, err := gateway.System.UpdateTrigger(id, patch)
	if err != nil {
		return triggerAPIError(err)
	}
	writeJSON(w, http.StatusOK, updated.Redacted())
	return nil
}

func (gateway *Gateway) deleteTrigger(w http.ResponseWriter, id string) *apiError {
	if err := gateway.System.DeleteTrigger(id); err != nil {
		return triggerAPIError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func triggerAPIError(err error) *apiError {
	switch {
	case errors.Is(err, trigger.ErrNotFound):
		return &apiError{Status: http.StatusNotFound, Message: err.Error()}
	case errors.Is(err, trigger.ErrValidation):
		return &apiError{Status: http.StatusBadRequest, Message: err.Error()}
	default:
		return &apiError{Status: http.StatusInternalServerError, Message: err.Error()}
	}
}
