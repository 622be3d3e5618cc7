package storage

import "database/sql"

// Current returns the single active credential row, or ErrNotFound when no
// keys have been configured yet.
func (s *Store) Current() (Credential, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, secret, account_id, project_id, locale, access_token, refresh_token, token_expires
		FROM credentials ORDER BY id DESC LIMIT 1`)

	var c Credential
	err := row.Scan(&c.ID, &c.UserID, &c.Secret, &c.AccountID, &c.ProjectID, &c.Locale,
		&c.AccessToken, &c.RefreshToken, &c.TokenExpires)
	if err == sql.ErrNoRows {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		return Credential{}, err
	}
	return c, nil
}

// PutCurrent stores the credential identity fields. Tokens from a previous
// session are discarded: a key change always forces re-authentication.
func (s *Store) PutCurrent(c Credential) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM credentials`); err != nil {
		return err
	}
	if c.Locale == "" {
		c.Locale = "ja-JP"
	}
	if _, err := tx.Exec(`
		INSERT INTO credentials (user_id, secret, account_id, project_id, locale, access_token, refresh_token, token_expires)
		VALUES (?, ?, ?, ?, ?, '', '', 0)`,
		c.UserID, c.Secret, c.AccountID, c.ProjectID, c.Locale,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveTokens persists a fresh token pair on the active credential row.
func (s *Store) SaveTokens(id int64, accessToken, refreshToken string, expires int64) error {
	res, err := s.db.Exec(`
		UPDATE credentials SET access_token = ?, refresh_token = ?, token_expires = ? WHERE id = ?`,
		accessToken, refreshToken, expires, id)
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

// ClearTokens drops stored tokens so the next request re-authenticates.
func (s *Store) ClearTokens(id int64) error {
	return s.SaveTokens(id, "", "", 0)
}
