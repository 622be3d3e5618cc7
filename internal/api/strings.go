package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/projectcraftbeer/PendoSmart/internal/storage"
)

type createStringRequest struct {
	ProjectID   string `json:"project_id"`
	Locale      string `json:"locale"`
	Source      string `json:"source"`
	Translation string `json:"translation"`
}

func handleCreateString(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req createStringRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Source == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "source is required")
			return
		}

		rec := storage.StringRecord{
			ID:          uuid.New().String(),
			ProjectID:   req.ProjectID,
			Locale:      req.Locale,
			Source:      req.Source,
			Translation: req.Translation,
			CreatedAt:   time.Now().UTC(),
		}
		if err := deps.Store.SaveString(rec); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save string: %v", err)
			return
		}

		writeJSON(w, rec)
	}
}

func handleListStrings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := deps.Store.ListStrings()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list strings: %v", err)
			return
		}
		if recs == nil {
			recs = []storage.StringRecord{}
		}
		writeJSON(w, recs)
	}
}

type evaluateStringRequest struct {
	ID string `json:"id"`
}

// handleEvaluateString scores a stored string record and persists the
// verdict onto it.
func handleEvaluateString(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req evaluateStringRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.ID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "id is required")
			return
		}

		rec, err := deps.Store.GetString(req.ID)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "string not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get string: %v", err)
			return
		}

		res := deps.Evaluator.Evaluate(r.Context(), rec.Source, rec.Translation, rec.Locale)

		score := res.Score
		reason := res.Reason
		var suggestion *string
		if res.Suggestion != "" {
			suggestion = &res.Suggestion
		}
		if err := deps.Store.UpdateStringEvaluation(rec.ID, &score, &reason, suggestion); err != nil {
			deps.Log.Warn("persisting string evaluation failed", "id", rec.ID, "error", err)
		}

		resp := map[string]any{
			"id":     rec.ID,
			"score":  res.Score,
			"reason": res.Reason,
		}
		if res.Suggestion != "" {
			resp["suggestion"] = res.Suggestion
		}
		writeJSON(w, resp)
	}
}

type evaluateTranslationRequest struct {
	ProjectID   string `json:"project_id"`
	Locale      string `json:"locale"`
	Hashcode    string `json:"hashcode"`
	Source      string `json:"source"`
	Translation string `json:"translation"`
}

// handleEvaluateTranslation scores an arbitrary pair and best-effort writes
// the verdict back to a matching translation row. The hashcode is the
// canonical key; exact text equality is kept as a fallback for callers that
// only have the texts.
func handleEvaluateTranslation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req evaluateTranslationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Source == "" || req.Translation == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "source and translation are required")
			return
		}
		req.ProjectID, req.Locale = deps.resolveScope(req.ProjectID, req.Locale)

		res := deps.Evaluator.Evaluate(r.Context(), req.Source, req.Translation, req.Locale)
		deps.persistTranslationScore(req, res.Score, res.Reason)

		writeJSON(w, map[string]any{
			"score":  res.Score,
			"reason": res.Reason,
		})
	}
}

func (deps Deps) persistTranslationScore(req evaluateTranslationRequest, score float64, reason string) {
	var row storage.Translation
	var err error
	if req.Hashcode != "" {
		row, err = deps.Store.GetTranslationByHashcode(req.ProjectID, req.Locale, req.Hashcode)
	} else {
		row, err = deps.Store.FindTranslationByTexts(req.ProjectID, req.Locale, req.Source, req.Translation)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		deps.Log.Warn("looking up translation for write-back failed", "error", err)
		return
	}

	if err := deps.Store.UpdateTranslationEvaluation(row.ID, &score, &reason); err != nil {
		deps.Log.Warn("persisting translation evaluation failed", "id", row.ID, "error", err)
	}
}

// resolveScope fills missing project/locale from the stored credential.
func (deps Deps) resolveScope(projectID, locale string) (string, string) {
	if projectID != "" && locale != "" {
		return projectID, locale
	}
	cred, err := deps.Store.Current()
	if err != nil {
		return projectID, locale
	}
	if projectID == "" {
		projectID = cred.ProjectID
	}
	if locale == "" {
		locale = cred.Locale
	}
	return projectID, locale
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
