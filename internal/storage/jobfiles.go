package storage

// SaveJobFile records a job/file association discovered during sync.
// Re-discovering the same file is a no-op.
func (s *Store) SaveJobFile(f JobFile) error {
	_, err := s.db.Exec(`
		INSERT INTO job_files (project_id, job_id, job_name, file_uri)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id, job_id, file_uri) DO UPDATE SET job_name = excluded.job_name`,
		f.ProjectID, f.JobID, f.JobName, f.FileURI)
	return err
}

func (s *Store) ListJobFiles(projectID string) ([]JobFile, error) {
	rows, err := s.db.Query(`
		SELECT id, project_id, job_id, job_name, file_uri
		FROM job_files WHERE project_id = ? ORDER BY id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []JobFile
	for rows.Next() {
		var f JobFile
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.JobID, &f.JobName, &f.FileURI); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DistinctFileURIs lists each file URI once, regardless of how many jobs
// reference it. Translation fetches are per file, not per job.
func (s *Store) DistinctFileURIs(projectID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT file_uri FROM job_files WHERE project_id = ? ORDER BY file_uri ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, err
		}
		uris = append(uris, uri)
	}
	return uris, rows.Err()
}
