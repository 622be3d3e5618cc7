package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/projectcraftbeer/PendoSmart/internal/smartling"
	"github.com/projectcraftbeer/PendoSmart/internal/storage"
)

// fetchConcurrency bounds parallel per-file API calls. SQLite writes stay on
// the calling goroutine; only fetches fan out.
const fetchConcurrency = 4

// jobStatusCancelled marks jobs whose files must not be synced.
const jobStatusCancelled = "CANCELLED"

// Service orchestrates pulls from the translation platform into local
// storage.
type Service struct {
	store   *storage.Store
	client  *smartling.Client
	session *smartling.Session
	log     *slog.Logger
}

func New(store *storage.Store, client *smartling.Client, session *smartling.Session, log *slog.Logger) *Service {
	return &Service{store: store, client: client, session: session, log: log}
}

// DiscoverJobFiles records the job/file associations for a project. Known
// associations accumulate; rediscovery never prunes. Jobs in CANCELLED state
// are skipped entirely.
func (s *Service) DiscoverJobFiles(ctx context.Context, projectID string) (int, error) {
	var jobs []smartling.Job
	err := s.session.Do(ctx, func(token string) error {
		var err error
		jobs, err = s.client.Jobs(ctx, token, projectID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("listing jobs: %w", err)
	}

	saved := 0
	for _, job := range jobs {
		if job.Status == jobStatusCancelled {
			s.log.Debug("skipping cancelled job", "job", job.UID)
			continue
		}

		var files []smartling.JobFile
		err := s.session.Do(ctx, func(token string) error {
			var err error
			files, err = s.client.JobFiles(ctx, token, projectID, job.UID)
			return err
		})
		if err != nil {
			return saved, fmt.Errorf("listing files for job %s: %w", job.UID, err)
		}

		for _, f := range files {
			if f.URI == "" {
				continue
			}
			if err := s.store.SaveJobFile(storage.JobFile{
				ProjectID: projectID,
				JobID:     job.UID,
				JobName:   job.Name,
				FileURI:   f.URI,
			}); err != nil {
				return saved, fmt.Errorf("saving job file %s: %w", f.URI, err)
			}
			saved++
		}
	}

	s.log.Info("job file discovery complete", "project", projectID, "jobs", len(jobs), "files", saved)
	return saved, nil
}

// fileStrings is the fetched content of one file: source strings joined with
// their translations by hashcode.
type fileStrings struct {
	uri     string
	sources []smartling.SourceString
	byHash  map[string]string
}

// SyncSourceStrings refreshes the source-string cache for a project+locale.
// Per-file fetches run concurrently; the cache is then replaced in one
// transaction.
func (s *Service) SyncSourceStrings(ctx context.Context, projectID, locale string) (int, error) {
	uris, err := s.store.DistinctFileURIs(projectID)
	if err != nil {
		return 0, fmt.Errorf("listing file URIs: %w", err)
	}
	if len(uris) == 0 {
		return 0, nil
	}

	results := make([]fileStrings, len(uris))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, uri := range uris {
		g.Go(func() error {
			fs := fileStrings{uri: uri, byHash: make(map[string]string)}

			err := s.session.Do(gctx, func(token string) error {
				var err error
				fs.sources, err = s.client.SourceStrings(gctx, token, projectID, uri)
				return err
			})
			if err != nil {
				return fmt.Errorf("fetching source strings for %s: %w", uri, err)
			}

			var items []smartling.TranslationItem
			err = s.session.Do(gctx, func(token string) error {
				var err error
				items, err = s.client.Translations(gctx, token, projectID, uri, locale)
				return err
			})
			if err != nil {
				return fmt.Errorf("fetching translations for %s: %w", uri, err)
			}
			for _, it := range items {
				fs.byHash[it.Hashcode] = it.Translation
			}

			results[i] = fs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	var recs []storage.StringRecord
	seen := make(map[string]bool)
	for _, fs := range results {
		for _, src := range fs.sources {
			if src.Hashcode == "" || seen[src.Hashcode] {
				continue
			}
			seen[src.Hashcode] = true
			recs = append(recs, storage.StringRecord{
				ID:          src.Hashcode,
				Source:      src.Text,
				Translation: fs.byHash[src.Hashcode],
				CreatedAt:   now,
			})
		}
	}

	if err := s.store.ReplaceSourceStrings(projectID, locale, recs); err != nil {
		return 0, fmt.Errorf("replacing source strings: %w", err)
	}

	s.log.Info("source string sync complete", "project", projectID, "locale", locale, "strings", len(recs))
	return len(recs), nil
}

// FetchTranslations pulls published translations for every known file and
// merges them into the review table by hashcode.
func (s *Service) FetchTranslations(ctx context.Context, projectID, locale string) (int, error) {
	uris, err := s.store.DistinctFileURIs(projectID)
	if err != nil {
		return 0, fmt.Errorf("listing file URIs: %w", err)
	}

	var mu sync.Mutex
	fetched := make(map[string][]smartling.TranslationItem, len(uris))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, uri := range uris {
		g.Go(func() error {
			var items []smartling.TranslationItem
			err := s.session.Do(gctx, func(token string) error {
				var err error
				items, err = s.client.Translations(gctx, token, projectID, uri, locale)
				return err
			})
			if err != nil {
				return fmt.Errorf("fetching translations for %s: %w", uri, err)
			}
			mu.Lock()
			fetched[uri] = items
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	merged := 0
	for _, uri := range uris {
		for _, it := range fetched[uri] {
			if it.Hashcode == "" {
				continue
			}
			err := s.store.UpsertTranslation(storage.Translation{
				ProjectID:   projectID,
				FileURI:     uri,
				Locale:      locale,
				SourceText:  it.SourceText,
				Translation: it.Translation,
				Hashcode:    it.Hashcode,
			})
			if err != nil {
				return merged, fmt.Errorf("upserting %s: %w", it.Hashcode, err)
			}
			merged++
		}
	}

	s.log.Info("translation fetch complete", "project", projectID, "locale", locale, "merged", merged)
	return merged, nil
}

// FlagMatching marks translations whose text equals the source after
// trimming and case folding, the usual sign of an untranslated string.
func (s *Service) FlagMatching(ctx context.Context, projectID, locale string) (int64, error) {
	n, err := s.store.FlagMatchingTranslations(projectID, locale)
	if err != nil {
		return 0, fmt.Errorf("flagging matching translations: %w", err)
	}
	s.log.Info("matching-string flagging complete", "project", projectID, "locale", locale, "flagged", n)
	return n, nil
}
