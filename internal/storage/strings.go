package storage

import (
	"database/sql"
	"fmt"
	"time"
)

func (s *Store) SaveString(rec StringRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO strings (id, project_id, locale, source, translation, confidence, reason, suggestion, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ProjectID, rec.Locale, rec.Source, rec.Translation,
		rec.Confidence, rec.Reason, rec.Suggestion, rec.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetString(id string) (StringRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, project_id, locale, source, translation, confidence, reason, suggestion, created_at
		FROM strings WHERE id = ?`, id)
	rec, err := scanStringRecord(row)
	if err == sql.ErrNoRows {
		return StringRecord{}, ErrNotFound
	}
	return rec, err
}

// ListStrings returns every string record, oldest first.
func (s *Store) ListStrings() ([]StringRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, project_id, locale, source, translation, confidence, reason, suggestion, created_at
		FROM strings ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStringRecords(rows)
}

// ListStringsPage returns one page of strings for a project+locale plus the total count.
func (s *Store) ListStringsPage(projectID, locale string, limit, offset int) ([]StringRecord, int, error) {
	var total int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM strings WHERE project_id = ? AND locale = ?`,
		projectID, locale,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(`
		SELECT id, project_id, locale, source, translation, confidence, reason, suggestion, created_at
		FROM strings WHERE project_id = ? AND locale = ?
		ORDER BY id ASC LIMIT ? OFFSET ?`,
		projectID, locale, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	recs, err := collectStringRecords(rows)
	return recs, total, err
}

// ReplaceSourceStrings deletes all strings cached for a project+locale and
// inserts the freshly fetched set in a single transaction. Source-string
// resyncs are full replaces: the cache carries no human-entered fields.
func (s *Store) ReplaceSourceStrings(projectID, locale string, recs []StringRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning replace transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM strings WHERE project_id = ? AND locale = ?`, projectID, locale); err != nil {
		return fmt.Errorf("clearing strings for %s/%s: %w", projectID, locale, err)
	}

	for _, rec := range recs {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO strings (id, project_id, locale, source, translation, confidence, reason, suggestion, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, projectID, locale, rec.Source, rec.Translation,
			rec.Confidence, rec.Reason, rec.Suggestion, rec.CreatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("inserting string %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// UpdateStringEvaluation persists evaluation results onto a string record.
func (s *Store) UpdateStringEvaluation(id string, confidence *float64, reason, suggestion *string) error {
	res, err := s.db.Exec(`
		UPDATE strings SET confidence = ?, reason = ?, suggestion = ? WHERE id = ?`,
		confidence, reason, suggestion, id)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStringRecord(row rowScanner) (StringRecord, error) {
	var rec StringRecord
	var createdAt string
	if err := row.Scan(&rec.ID, &rec.ProjectID, &rec.Locale, &rec.Source, &rec.Translation,
		&rec.Confidence, &rec.Reason, &rec.Suggestion, &createdAt); err != nil {
		return StringRecord{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return StringRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	rec.CreatedAt = t
	return rec, nil
}

func collectStringRecords(rows *sql.Rows) ([]StringRecord, error) {
	var recs []StringRecord
	for rows.Next() {
		rec, err := scanStringRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
