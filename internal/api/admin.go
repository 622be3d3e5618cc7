package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/projectcraftbeer/PendoSmart/internal/smartling"
	"github.com/projectcraftbeer/PendoSmart/internal/storage"
)

// SettingModelDownload controls whether the local inference model loads at
// process start.
const SettingModelDownload = "download_model"

func mountAdmin(r chi.Router, deps Deps) {
	r.Get("/smartling-keys", handleGetKeys(deps))
	r.Post("/smartling-keys", handleSaveKeys(deps))
	r.Post("/smartling-auth", handleAuth(deps))
	r.Get("/smartling-projects", handleListProjects(deps))
	r.Get("/smartling-jobs", handleListJobs(deps))
	r.Post("/smartling-job-files", handleDiscoverJobFiles(deps))
	r.Get("/smartling-job-files", handleListJobFiles(deps))
	r.Get("/smartling-strings", handleSyncStrings(deps))
	r.Post("/smartling-fetch-translations", handleFetchTranslations(deps))
	r.Get("/smartling-translations-table", handleTranslationsTable(deps))
	r.Post("/smartling-update-reason", handleUpdateReason(deps))
	r.Post("/smartling-toggle-flag", handleToggleFlag(deps))
	r.Post("/smartling-toggle-status", handleToggleStatus(deps))
	r.Post("/smartling-bulk-complete", handleBulkComplete(deps))
	r.Post("/flag-matching-strings", handleFlagMatching(deps))
	r.Get("/get-model-download-flag", handleGetModelDownloadFlag(deps))
	r.Post("/set-model-download-flag", handleSetModelDownloadFlag(deps))
}

// keysResponse masks the secret: the admin UI only needs to know one is set.
type keysResponse struct {
	UserID    string `json:"user_id"`
	HasSecret bool   `json:"has_secret"`
	AccountID string `json:"account_id"`
	ProjectID string `json:"project_id"`
	Locale    string `json:"locale"`
}

func handleGetKeys(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cred, err := deps.Store.Current()
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, keysResponse{})
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load keys: %v", err)
			return
		}
		writeJSON(w, keysResponse{
			UserID:    cred.UserID,
			HasSecret: cred.Secret != "",
			AccountID: cred.AccountID,
			ProjectID: cred.ProjectID,
			Locale:    cred.Locale,
		})
	}
}

type saveKeysRequest struct {
	UserID    string `json:"user_id"`
	Secret    string `json:"secret"`
	AccountID string `json:"account_id"`
	ProjectID string `json:"project_id"`
	Locale    string `json:"locale"`
}

func handleSaveKeys(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req saveKeysRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" || req.Secret == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id and secret are required")
			return
		}

		err := deps.Store.PutCurrent(storage.Credential{
			UserID:    req.UserID,
			Secret:    req.Secret,
			AccountID: req.AccountID,
			ProjectID: req.ProjectID,
			Locale:    req.Locale,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save keys: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "saved"})
	}
}

// handleAuth exchanges the stored keys for a token pair, proving they work.
func handleAuth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := deps.Store.Current(); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusBadRequest, "invalid_request_error",
				"no keys configured: save keys before authenticating")
			return
		}
		if err := deps.Session.Verify(r.Context()); err != nil {
			upstreamError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "authenticated"})
	}
}

func handleListProjects(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cred, ok := requireCredential(w, deps)
		if !ok {
			return
		}
		if cred.AccountID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no account id configured")
			return
		}

		var projects []smartling.Project
		err := deps.Session.Do(r.Context(), func(token string) error {
			var err error
			projects, err = deps.Client.Projects(r.Context(), token, cred.AccountID)
			return err
		})
		if err != nil {
			upstreamError(w, err)
			return
		}
		if projects == nil {
			projects = []smartling.Project{}
		}
		writeJSON(w, projects)
	}
}

func handleListJobs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, _, ok := requireScope(w, deps, r.URL.Query().Get("project_id"), "-")
		if !ok {
			return
		}

		var jobs []smartling.Job
		err := deps.Session.Do(r.Context(), func(token string) error {
			var err error
			jobs, err = deps.Client.Jobs(r.Context(), token, projectID)
			return err
		})
		if err != nil {
			upstreamError(w, err)
			return
		}

		out := make([]map[string]string, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, map[string]string{
				"job_id": j.UID,
				"name":   j.Name,
				"status": j.Status,
			})
		}
		writeJSON(w, out)
	}
}

type projectScopeRequest struct {
	ProjectID string `json:"project_id"`
	Locale    string `json:"locale"`
}

func handleDiscoverJobFiles(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req projectScopeRequest
		decodeOptionalBody(w, r, &req)
		projectID, _, ok := requireScope(w, deps, req.ProjectID, "-")
		if !ok {
			return
		}

		n, err := deps.Sync.DiscoverJobFiles(r.Context(), projectID)
		if err != nil {
			upstreamError(w, err)
			return
		}
		writeJSON(w, map[string]any{"status": "ok", "files": n})
	}
}

func handleListJobFiles(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, _, ok := requireScope(w, deps, r.URL.Query().Get("project_id"), "-")
		if !ok {
			return
		}

		files, err := deps.Store.ListJobFiles(projectID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list job files: %v", err)
			return
		}
		if files == nil {
			files = []storage.JobFile{}
		}
		writeJSON(w, files)
	}
}

// handleSyncStrings performs a full source-string resync, then returns one
// page of the refreshed cache. The resync is a replace-all: the cache holds
// no human-entered fields, so merging buys nothing.
func handleSyncStrings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		projectID, locale, ok := requireScope(w, deps, q.Get("project_id"), q.Get("locale"))
		if !ok {
			return
		}

		if _, err := deps.Sync.SyncSourceStrings(r.Context(), projectID, locale); err != nil {
			upstreamError(w, err)
			return
		}

		page := parseIntParam(r, "page", 1, 0)
		perPage := parseIntParam(r, "per_page", 50, 500)
		if page < 1 {
			page = 1
		}
		recs, total, err := deps.Store.ListStringsPage(projectID, locale, perPage, (page-1)*perPage)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list strings: %v", err)
			return
		}
		if recs == nil {
			recs = []storage.StringRecord{}
		}
		writeJSON(w, map[string]any{
			"items":    recs,
			"total":    total,
			"page":     page,
			"per_page": perPage,
		})
	}
}

func handleFetchTranslations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req projectScopeRequest
		decodeOptionalBody(w, r, &req)
		projectID, locale, ok := requireScope(w, deps, req.ProjectID, req.Locale)
		if !ok {
			return
		}

		n, err := deps.Sync.FetchTranslations(r.Context(), projectID, locale)
		if err != nil {
			upstreamError(w, err)
			return
		}
		writeJSON(w, map[string]any{"status": "ok", "merged": n})
	}
}

func handleTranslationsTable(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		projectID, locale, ok := requireScope(w, deps, q.Get("project_id"), q.Get("locale"))
		if !ok {
			return
		}

		filter := storage.TranslationFilter{
			ProjectID:  projectID,
			Locale:     locale,
			Status:     q.Get("status"),
			SearchType: q.Get("search_type"),
			SearchText: q.Get("search"),
		}
		if v := q.Get("flag"); v != "" {
			flag, err := strconv.Atoi(v)
			if err != nil || (flag != 0 && flag != 1) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "flag must be 0 or 1")
				return
			}
			filter.Flag = &flag
		}

		page := parseIntParam(r, "page", 1, 0)
		perPage := parseIntParam(r, "per_page", 50, 500)
		if page < 1 {
			page = 1
		}

		total, err := deps.Store.CountTranslations(filter)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count translations: %v", err)
			return
		}
		rows, err := deps.Store.ListTranslations(filter, perPage, (page-1)*perPage)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list translations: %v", err)
			return
		}
		if rows == nil {
			rows = []storage.Translation{}
		}
		writeJSON(w, map[string]any{
			"items":    rows,
			"total":    total,
			"page":     page,
			"per_page": perPage,
		})
	}
}

type updateReasonRequest struct {
	IDs    []int64 `json:"ids"`
	Reason *string `json:"reason"`
}

func handleUpdateReason(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req updateReasonRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.IDs) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "ids is required")
			return
		}

		mutateRows(w, req.IDs, func(id int64) error {
			return deps.Store.SetTranslationReason(id, req.Reason)
		})
	}
}

type toggleFlagRequest struct {
	IDs  []int64 `json:"ids"`
	Flag int     `json:"flag"`
}

func handleToggleFlag(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req toggleFlagRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.IDs) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "ids is required")
			return
		}
		if req.Flag != 0 && req.Flag != 1 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "flag must be 0 or 1")
			return
		}

		mutateRows(w, req.IDs, func(id int64) error {
			return deps.Store.SetTranslationFlag(id, req.Flag)
		})
	}
}

type toggleStatusRequest struct {
	IDs    []int64 `json:"ids"`
	Status string  `json:"status"`
}

func handleToggleStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req toggleStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.IDs) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "ids is required")
			return
		}
		if req.Status != storage.StatusPending && req.Status != storage.StatusCompleted {
			httpError(w, http.StatusBadRequest, "invalid_request_error",
				"status must be %q or %q", storage.StatusPending, storage.StatusCompleted)
			return
		}

		mutateRows(w, req.IDs, func(id int64) error {
			return deps.Store.SetTranslationStatus(id, req.Status)
		})
	}
}

// mutateRows applies op to each id, counting rows that exist. Missing ids
// are skipped so the mutation stays idempotent under repeated payloads.
func mutateRows(w http.ResponseWriter, ids []int64, op func(id int64) error) {
	updated := 0
	for _, id := range ids {
		err := op(id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update row %d: %v", id, err)
			return
		}
		updated++
	}
	writeJSON(w, map[string]any{"status": "ok", "updated": updated})
}

type bulkCompleteRequest struct {
	IDs []int64 `json:"ids"`
}

func handleBulkComplete(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req bulkCompleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.IDs) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "ids is required")
			return
		}

		// Unconditional by id, so repeating the request reports the same
		// count every time.
		mutateRows(w, req.IDs, func(id int64) error {
			return deps.Store.SetTranslationStatus(id, storage.StatusCompleted)
		})
	}
}

func handleFlagMatching(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		projectID, locale, ok := requireScope(w, deps, q.Get("project_id"), q.Get("locale"))
		if !ok {
			return
		}

		n, err := deps.Sync.FlagMatching(r.Context(), projectID, locale)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to flag matching strings: %v", err)
			return
		}
		writeJSON(w, map[string]any{"status": "ok", "flagged": n})
	}
}

func handleGetModelDownloadFlag(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		val, err := deps.Store.GetSetting(SettingModelDownload)
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, map[string]bool{"enabled": false})
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read setting: %v", err)
			return
		}
		writeJSON(w, map[string]bool{"enabled": val == "true"})
	}
}

func handleSetModelDownloadFlag(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if err := deps.Store.SetSetting(SettingModelDownload, strconv.FormatBool(req.Enabled)); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save setting: %v", err)
			return
		}
		writeJSON(w, map[string]any{"status": "ok", "enabled": req.Enabled})
	}
}

// requireScope resolves project and locale, falling back to the stored
// credential. Pass "-" for a dimension the endpoint does not use. Missing
// scope is a configuration error, not an auth error.
func requireScope(w http.ResponseWriter, deps Deps, projectID, locale string) (string, string, bool) {
	if projectID == "" || locale == "" {
		cred, err := deps.Store.Current()
		if err == nil {
			if projectID == "" {
				projectID = cred.ProjectID
			}
			if locale == "" {
				locale = cred.Locale
			}
		}
	}
	if projectID == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error",
			"no project id: pass project_id or configure keys with a default project")
		return "", "", false
	}
	if locale == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error",
			"no locale: pass locale or configure keys with a default locale")
		return "", "", false
	}
	return projectID, locale, true
}

func requireCredential(w http.ResponseWriter, deps Deps) (storage.Credential, bool) {
	cred, err := deps.Store.Current()
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusBadRequest, "invalid_request_error",
			"no keys configured: save keys before calling the platform")
		return storage.Credential{}, false
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to load keys: %v", err)
		return storage.Credential{}, false
	}
	return cred, true
}

// decodeOptionalBody tolerates an empty body; scope then comes from the
// stored credential.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	_ = json.NewDecoder(r.Body).Decode(v)
}
