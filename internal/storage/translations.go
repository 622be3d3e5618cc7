package storage

import (
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// UpsertTranslation merges one fetched translation into the local table,
// keyed by (project_id, locale, hashcode). New rows start pending. On an
// existing row only the source text and translation are refreshed; review
// fields survive, and status drops back to pending only when the translated
// text actually changed.
func (s *Store) UpsertTranslation(t Translation) error {
	existing, err := s.GetTranslationByHashcode(t.ProjectID, t.Locale, t.Hashcode)
	if err == ErrNotFound {
		_, err := s.db.Exec(`
			INSERT INTO translations (project_id, file_uri, locale, source_text, translation, status, hashcode)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ProjectID, t.FileURI, t.Locale, t.SourceText, t.Translation, StatusPending, t.Hashcode)
		return err
	}
	if err != nil {
		return err
	}

	status := existing.Status
	if existing.Translation != t.Translation {
		status = StatusPending
	}
	_, err = s.db.Exec(`
		UPDATE translations SET file_uri = ?, source_text = ?, translation = ?, status = ?
		WHERE id = ?`,
		t.FileURI, t.SourceText, t.Translation, status, existing.ID)
	return err
}

func (s *Store) GetTranslation(id int64) (Translation, error) {
	return s.getTranslation(`id = ?`, id)
}

func (s *Store) GetTranslationByHashcode(projectID, locale, hashcode string) (Translation, error) {
	return s.getTranslation(`project_id = ? AND locale = ? AND hashcode = ?`, projectID, locale, hashcode)
}

func (s *Store) getTranslation(where string, args ...any) (Translation, error) {
	row := s.db.QueryRow(`
		SELECT id, project_id, file_uri, locale, source_text, translation, status, confidence, reason, flag, hashcode
		FROM translations WHERE `+where, args...)

	var t Translation
	err := row.Scan(&t.ID, &t.ProjectID, &t.FileURI, &t.Locale, &t.SourceText, &t.Translation,
		&t.Status, &t.Confidence, &t.Reason, &t.Flag, &t.Hashcode)
	if err == sql.ErrNoRows {
		return Translation{}, ErrNotFound
	}
	if err != nil {
		return Translation{}, err
	}
	return t, nil
}

func translationFilterClauses(b sq.SelectBuilder, f TranslationFilter) sq.SelectBuilder {
	b = b.Where(sq.Eq{"project_id": f.ProjectID, "locale": f.Locale})
	if f.Flag != nil {
		b = b.Where(sq.Eq{"flag": *f.Flag})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": f.Status})
	}
	if f.SearchText != "" {
		pattern := "%" + f.SearchText + "%"
		switch f.SearchType {
		case "source":
			b = b.Where(sq.Like{"source_text": pattern})
		case "translation":
			b = b.Where(sq.Like{"translation": pattern})
		default:
			b = b.Where(sq.Or{
				sq.Like{"source_text": pattern},
				sq.Like{"translation": pattern},
			})
		}
	}
	return b
}

// ListTranslations returns one page of translations matching the filter.
func (s *Store) ListTranslations(f TranslationFilter, limit, offset int) ([]Translation, error) {
	q := translationFilterClauses(
		sq.Select("id", "project_id", "file_uri", "locale", "source_text", "translation",
			"status", "confidence", "reason", "flag", "hashcode").
			From("translations"), f).
		OrderBy("id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building translations query: %w", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Translation
	for rows.Next() {
		var t Translation
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.FileURI, &t.Locale, &t.SourceText, &t.Translation,
			&t.Status, &t.Confidence, &t.Reason, &t.Flag, &t.Hashcode); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (s *Store) CountTranslations(f TranslationFilter) (int, error) {
	q := translationFilterClauses(sq.Select("COUNT(*)").From("translations"), f)
	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building translations count: %w", err)
	}
	var total int
	if err := s.db.QueryRow(query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// FindTranslationByTexts locates a row by exact source and translation text.
// It is a weaker match key than the hashcode, kept for callers that only
// have the texts.
func (s *Store) FindTranslationByTexts(projectID, locale, sourceText, translation string) (Translation, error) {
	return s.getTranslation(
		`project_id = ? AND locale = ? AND source_text = ? AND translation = ?`,
		projectID, locale, sourceText, translation)
}

// UpdateTranslationEvaluation writes a score and reason to one row.
func (s *Store) UpdateTranslationEvaluation(id int64, confidence *float64, reason *string) error {
	return s.updateTranslation(id, `SET confidence = ?, reason = ?`, confidence, reason)
}

// SetTranslationReason overwrites the review reason on one row.
func (s *Store) SetTranslationReason(id int64, reason *string) error {
	return s.updateTranslation(id, `SET reason = ?`, reason)
}

func (s *Store) SetTranslationStatus(id int64, status string) error {
	return s.updateTranslation(id, `SET status = ?`, status)
}

func (s *Store) SetTranslationFlag(id int64, flag int) error {
	return s.updateTranslation(id, `SET flag = ?`, flag)
}

func (s *Store) updateTranslation(id int64, set string, args ...any) error {
	args = append(args, id)
	res, err := s.db.Exec(`UPDATE translations `+set+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FlagMatchingTranslations sets flag=1 on rows whose source and translation
// are equal after trimming whitespace and lowercasing, and returns the match
// count. Flags set by hand on other rows are left alone. The comparison runs
// in Go so it follows Unicode case folding rather than SQLite's ASCII-only
// LOWER.
func (s *Store) FlagMatchingTranslations(projectID, locale string) (int64, error) {
	rows, err := s.db.Query(`
		SELECT id, source_text, translation FROM translations
		WHERE project_id = ? AND locale = ?`, projectID, locale)
	if err != nil {
		return 0, err
	}

	var matched []int64
	for rows.Next() {
		var id int64
		var source, translation string
		if err := rows.Scan(&id, &source, &translation); err != nil {
			rows.Close()
			return 0, err
		}
		if source == "" || translation == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(source), strings.TrimSpace(translation)) {
			matched = append(matched, id)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range matched {
		if _, err := s.db.Exec(`UPDATE translations SET flag = 1 WHERE id = ?`, id); err != nil {
			return 0, err
		}
	}
	return int64(len(matched)), nil
}
