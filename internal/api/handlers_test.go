package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/projectcraftbeer/PendoSmart/internal/evaluate"
	"github.com/projectcraftbeer/PendoSmart/internal/smartling"
	"github.com/projectcraftbeer/PendoSmart/internal/storage"
)

type fakeSyncer struct {
	discovered int
	synced     int
	fetched    int
	flagged    int64
	err        error
}

func (f *fakeSyncer) DiscoverJobFiles(ctx context.Context, projectID string) (int, error) {
	return f.discovered, f.err
}

func (f *fakeSyncer) SyncSourceStrings(ctx context.Context, projectID, locale string) (int, error) {
	return f.synced, f.err
}

func (f *fakeSyncer) FetchTranslations(ctx context.Context, projectID, locale string) (int, error) {
	return f.fetched, f.err
}

func (f *fakeSyncer) FlagMatching(ctx context.Context, projectID, locale string) (int64, error) {
	return f.flagged, f.err
}

func newTestDeps(t *testing.T) (Deps, *fakeSyncer) {
	t.Helper()

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:): %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := smartling.NewWithBaseURL("http://127.0.0.1:0")
	syncer := &fakeSyncer{}
	return Deps{
		Store:     store,
		Client:    client,
		Session:   smartling.NewSession(client, store, log),
		Sync:      syncer,
		Evaluator: evaluate.New(evaluate.Stub{}, log),
		Log:       log,
	}, syncer
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestCreateAndListStrings(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodPost, "/strings", map[string]string{
		"project_id":  "p1",
		"locale":      "ja-JP",
		"source":      "Hello",
		"translation": "こんにちは",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[storage.StringRecord](t, rec)
	if created.ID == "" {
		t.Error("created ID empty")
	}

	rec = doJSON(t, h, http.MethodGet, "/strings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	list := decodeBody[[]storage.StringRecord](t, rec)
	if len(list) != 1 || list[0].Source != "Hello" {
		t.Errorf("list = %+v", list)
	}
}

func TestCreateString_MissingSource(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodPost, "/strings", map[string]string{"translation": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestEvaluateString_PersistsVerdict(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodPost, "/strings", map[string]string{
		"source": "Hello", "translation": "こんにちは", "locale": "ja-JP",
	})
	created := decodeBody[storage.StringRecord](t, rec)

	rec = doJSON(t, h, http.MethodPost, "/evaluate", map[string]string{"id": created.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[map[string]any](t, rec)
	if body["score"].(float64) != 50 {
		t.Errorf("score = %v, want stub 50", body["score"])
	}
	if body["reason"].(string) == "" {
		t.Error("reason empty")
	}

	got, err := deps.Store.GetString(created.ID)
	if err != nil {
		t.Fatalf("GetString: %v", err)
	}
	if got.Confidence == nil || *got.Confidence != 50 {
		t.Errorf("persisted confidence = %v, want 50", got.Confidence)
	}
	if got.Suggestion == nil || *got.Suggestion == "" {
		t.Error("persisted suggestion empty, want stub suggestion")
	}
}

func TestEvaluateString_NotFound(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodPost, "/evaluate", map[string]string{"id": "nope"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestEvaluateTranslation_WriteBackByHashcode verifies the canonical
// hashcode write-back path.
func TestEvaluateTranslation_WriteBackByHashcode(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	err := deps.Store.UpsertTranslation(storage.Translation{
		ProjectID: "p1", Locale: "ja-JP", SourceText: "Hello",
		Translation: "こんにちは", Hashcode: "h1",
	})
	if err != nil {
		t.Fatalf("UpsertTranslation: %v", err)
	}

	rec := doJSON(t, h, http.MethodPost, "/evaluate-translation", map[string]string{
		"project_id": "p1", "locale": "ja-JP", "hashcode": "h1",
		"source": "Hello", "translation": "こんにちは",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	row, err := deps.Store.GetTranslationByHashcode("p1", "ja-JP", "h1")
	if err != nil {
		t.Fatalf("GetTranslationByHashcode: %v", err)
	}
	if row.Confidence == nil || *row.Confidence != 50 {
		t.Errorf("confidence = %v, want written-back 50", row.Confidence)
	}
	if row.Reason == nil || *row.Reason == "" {
		t.Error("reason not written back")
	}
}

// TestEvaluateTranslation_TextMatchFallback exercises the weaker text-match
// write-back used when no hashcode is supplied.
func TestEvaluateTranslation_TextMatchFallback(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	err := deps.Store.UpsertTranslation(storage.Translation{
		ProjectID: "p1", Locale: "ja-JP", SourceText: "Bye",
		Translation: "さようなら", Hashcode: "h2",
	})
	if err != nil {
		t.Fatalf("UpsertTranslation: %v", err)
	}

	rec := doJSON(t, h, http.MethodPost, "/evaluate-translation", map[string]string{
		"project_id": "p1", "locale": "ja-JP",
		"source": "Bye", "translation": "さようなら",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	row, _ := deps.Store.GetTranslationByHashcode("p1", "ja-JP", "h2")
	if row.Confidence == nil {
		t.Error("text-match write-back did not persist")
	}
}

// TestEvaluateTranslation_NoMatchStillSucceeds verifies write-back is
// best-effort: no matching row, still a well-formed verdict.
func TestEvaluateTranslation_NoMatchStillSucceeds(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodPost, "/evaluate-translation", map[string]string{
		"project_id": "p1", "locale": "ja-JP",
		"source": "Unknown", "translation": "未知",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if _, ok := body["score"]; !ok {
		t.Errorf("body = %v, want score", body)
	}
}

func TestAdminBearerAuth(t *testing.T) {
	deps, _ := newTestDeps(t)
	deps.Token = "sekrit"
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodGet, "/admin/smartling-keys", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/smartling-keys", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", rr.Code)
	}

	// Public surface stays open.
	rec = doJSON(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}

// TestKeysRoundTrip_SecretMasked saves keys and verifies the read-back masks
// the secret as a boolean.
func TestKeysRoundTrip_SecretMasked(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodPost, "/admin/smartling-keys", map[string]string{
		"user_id": "uid", "secret": "s3cr3t-value", "account_id": "acct", "project_id": "p1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/admin/smartling-keys", nil)
	body := decodeBody[keysResponse](t, rec)
	if body.UserID != "uid" || !body.HasSecret {
		t.Errorf("body = %+v", body)
	}
	if body.Locale != "ja-JP" {
		t.Errorf("Locale = %q, want default ja-JP", body.Locale)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("s3cr3t-value")) {
		t.Errorf("secret leaked in response: %s", rec.Body.String())
	}
}

func TestSaveKeys_Validation(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodPost, "/admin/smartling-keys", map[string]string{"user_id": "uid"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAuth_NoKeysConfigured(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodPost, "/admin/smartling-auth", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 (configuration error)", rec.Code)
	}
}

// TestScopeFallsBackToCredential verifies admin endpoints default project and
// locale from the stored keys.
func TestScopeFallsBackToCredential(t *testing.T) {
	deps, syncer := newTestDeps(t)
	syncer.fetched = 7
	h := NewHandler(deps)

	// No keys, no scope: configuration error.
	rec := doJSON(t, h, http.MethodPost, "/admin/smartling-fetch-translations", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status without keys = %d, want 400", rec.Code)
	}

	if err := deps.Store.PutCurrent(storage.Credential{UserID: "u", Secret: "s", ProjectID: "p1"}); err != nil {
		t.Fatalf("PutCurrent: %v", err)
	}

	rec = doJSON(t, h, http.MethodPost, "/admin/smartling-fetch-translations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with keys = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[map[string]any](t, rec)
	if body["merged"].(float64) != 7 {
		t.Errorf("merged = %v, want 7", body["merged"])
	}
}

func TestDiscoverAndListJobFiles(t *testing.T) {
	deps, syncer := newTestDeps(t)
	syncer.discovered = 3
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodPost, "/admin/smartling-job-files", map[string]string{"project_id": "p1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("discover status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[map[string]any](t, rec)
	if body["files"].(float64) != 3 {
		t.Errorf("files = %v, want 3", body["files"])
	}

	if err := deps.Store.SaveJobFile(storage.JobFile{ProjectID: "p1", JobID: "j1", JobName: "A", FileURI: "a.json"}); err != nil {
		t.Fatalf("SaveJobFile: %v", err)
	}
	rec = doJSON(t, h, http.MethodGet, "/admin/smartling-job-files?project_id=p1", nil)
	files := decodeBody[[]storage.JobFile](t, rec)
	if len(files) != 1 || files[0].FileURI != "a.json" {
		t.Errorf("files = %+v", files)
	}
}

func TestTranslationsTable_FiltersAndPaging(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	for i := 0; i < 5; i++ {
		err := deps.Store.UpsertTranslation(storage.Translation{
			ProjectID: "p1", Locale: "ja-JP",
			SourceText:  fmt.Sprintf("source %d", i),
			Translation: fmt.Sprintf("訳 %d", i),
			Hashcode:    fmt.Sprintf("h%d", i),
		})
		if err != nil {
			t.Fatalf("UpsertTranslation: %v", err)
		}
	}
	row, _ := deps.Store.GetTranslationByHashcode("p1", "ja-JP", "h0")
	if err := deps.Store.SetTranslationFlag(row.ID, 1); err != nil {
		t.Fatalf("SetTranslationFlag: %v", err)
	}

	rec := doJSON(t, h, http.MethodGet,
		"/admin/smartling-translations-table?project_id=p1&locale=ja-JP&page=1&per_page=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[struct {
		Items []storage.Translation `json:"items"`
		Total int                   `json:"total"`
	}](t, rec)
	if body.Total != 5 || len(body.Items) != 2 {
		t.Errorf("total = %d items = %d, want 5 and 2", body.Total, len(body.Items))
	}

	rec = doJSON(t, h, http.MethodGet,
		"/admin/smartling-translations-table?project_id=p1&locale=ja-JP&flag=1", nil)
	flagged := decodeBody[struct {
		Items []storage.Translation `json:"items"`
	}](t, rec)
	if len(flagged.Items) != 1 || flagged.Items[0].Hashcode != "h0" {
		t.Errorf("flagged = %+v", flagged.Items)
	}

	rec = doJSON(t, h, http.MethodGet,
		"/admin/smartling-translations-table?project_id=p1&locale=ja-JP&search=source+3", nil)
	searched := decodeBody[struct {
		Items []storage.Translation `json:"items"`
	}](t, rec)
	if len(searched.Items) != 1 || searched.Items[0].Hashcode != "h3" {
		t.Errorf("searched = %+v", searched.Items)
	}
}

// TestToggleStatus_Idempotent applies the same payload twice and expects the
// same count and final state both times.
func TestToggleStatus_Idempotent(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	var ids []int64
	for i := 0; i < 3; i++ {
		err := deps.Store.UpsertTranslation(storage.Translation{
			ProjectID: "p1", Locale: "ja-JP",
			SourceText: fmt.Sprintf("s%d", i), Translation: fmt.Sprintf("t%d", i),
			Hashcode: fmt.Sprintf("h%d", i),
		})
		if err != nil {
			t.Fatalf("UpsertTranslation: %v", err)
		}
		row, _ := deps.Store.GetTranslationByHashcode("p1", "ja-JP", fmt.Sprintf("h%d", i))
		ids = append(ids, row.ID)
	}

	payload := map[string]any{"ids": ids, "status": "completed"}
	for pass := 0; pass < 2; pass++ {
		rec := doJSON(t, h, http.MethodPost, "/admin/smartling-toggle-status", payload)
		if rec.Code != http.StatusOK {
			t.Fatalf("pass %d status = %d: %s", pass, rec.Code, rec.Body.String())
		}
		body := decodeBody[map[string]any](t, rec)
		if body["updated"].(float64) != 3 {
			t.Errorf("pass %d updated = %v, want 3", pass, body["updated"])
		}
	}

	remaining, _ := deps.Store.CountTranslations(storage.TranslationFilter{
		ProjectID: "p1", Locale: "ja-JP", Status: storage.StatusPending,
	})
	if remaining != 0 {
		t.Errorf("pending = %d, want 0", remaining)
	}
}

func TestToggleStatus_Validation(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodPost, "/admin/smartling-toggle-status",
		map[string]any{"ids": []int64{1}, "status": "bogus"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/admin/smartling-toggle-flag",
		map[string]any{"ids": []int64{1}, "flag": 2})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("flag status = %d, want 400", rec.Code)
	}
}

func TestUpdateReason(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	if err := deps.Store.UpsertTranslation(storage.Translation{
		ProjectID: "p1", Locale: "ja-JP", SourceText: "s", Translation: "t", Hashcode: "h1",
	}); err != nil {
		t.Fatalf("UpsertTranslation: %v", err)
	}
	row, _ := deps.Store.GetTranslationByHashcode("p1", "ja-JP", "h1")

	rec := doJSON(t, h, http.MethodPost, "/admin/smartling-update-reason",
		map[string]any{"ids": []int64{row.ID, 9999}, "reason": "needs context"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[map[string]any](t, rec)
	if body["updated"].(float64) != 1 {
		t.Errorf("updated = %v, want 1 (missing id skipped)", body["updated"])
	}

	got, _ := deps.Store.GetTranslation(row.ID)
	if got.Reason == nil || *got.Reason != "needs context" {
		t.Errorf("reason = %v", got.Reason)
	}
}

func TestModelDownloadFlag(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodGet, "/admin/get-model-download-flag", nil)
	body := decodeBody[map[string]bool](t, rec)
	if body["enabled"] {
		t.Error("default enabled = true, want false")
	}

	rec = doJSON(t, h, http.MethodPost, "/admin/set-model-download-flag", map[string]bool{"enabled": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/admin/get-model-download-flag", nil)
	body = decodeBody[map[string]bool](t, rec)
	if !body["enabled"] {
		t.Error("enabled = false after set, want true")
	}
}

// TestBulkComplete_RepeatableCount applies the same ids payload twice and
// expects the same reported count both times, rows already completed
// included.
func TestBulkComplete_RepeatableCount(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewHandler(deps)

	var ids []int64
	for i := 0; i < 2; i++ {
		if err := deps.Store.UpsertTranslation(storage.Translation{
			ProjectID: "p1", Locale: "ja-JP",
			SourceText: fmt.Sprintf("s%d", i), Translation: fmt.Sprintf("t%d", i),
			Hashcode: fmt.Sprintf("h%d", i),
		}); err != nil {
			t.Fatalf("UpsertTranslation: %v", err)
		}
		row, _ := deps.Store.GetTranslationByHashcode("p1", "ja-JP", fmt.Sprintf("h%d", i))
		ids = append(ids, row.ID)
	}

	payload := map[string]any{"ids": ids}
	for pass := 0; pass < 2; pass++ {
		rec := doJSON(t, h, http.MethodPost, "/admin/smartling-bulk-complete", payload)
		if rec.Code != http.StatusOK {
			t.Fatalf("pass %d status = %d: %s", pass, rec.Code, rec.Body.String())
		}
		body := decodeBody[map[string]any](t, rec)
		if body["updated"].(float64) != 2 {
			t.Errorf("pass %d updated = %v, want 2", pass, body["updated"])
		}
	}

	remaining, _ := deps.Store.CountTranslations(storage.TranslationFilter{
		ProjectID: "p1", Locale: "ja-JP", Status: storage.StatusPending,
	})
	if remaining != 0 {
		t.Errorf("pending = %d, want 0", remaining)
	}

	rec := doJSON(t, h, http.MethodPost, "/admin/smartling-bulk-complete", map[string]any{"ids": []int64{}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty ids status = %d, want 400", rec.Code)
	}
}

func TestFlagMatchingEndpoint(t *testing.T) {
	deps, syncer := newTestDeps(t)
	syncer.flagged = 4
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodPost, "/admin/flag-matching-strings?project_id=p1&locale=ja-JP", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[map[string]any](t, rec)
	if body["flagged"].(float64) != 4 {
		t.Errorf("flagged = %v, want 4", body["flagged"])
	}
}
