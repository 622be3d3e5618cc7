package smartling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/projectcraftbeer/PendoSmart/internal/storage"
)

// ErrAuthRequired is returned when no credential has been configured, or the
// stored keys no longer authenticate.
var ErrAuthRequired = errors.New("smartling: authentication required")

// CredentialStore is the persistence the session needs: one active
// credential row plus token write-back.
type CredentialStore interface {
	Current() (storage.Credential, error)
	SaveTokens(id int64, accessToken, refreshToken string, expires int64) error
	ClearTokens(id int64) error
}

// Session wraps a Client with token lifecycle handling. Callers hand it an
// operation taking an access token; the session supplies a valid one,
// refreshing when needed, and retries the operation once after a refresh
// when the API reports the token expired mid-flight. At most one refresh
// happens per invocation, and full authentication never happens here: that
// is the explicit auth endpoint's job, via Verify.
type Session struct {
	client *Client
	creds  CredentialStore
	log    *slog.Logger

	now func() time.Time
}

func NewSession(client *Client, creds CredentialStore, log *slog.Logger) *Session {
	return &Session{
		client: client,
		creds:  creds,
		log:    log,
		now:    time.Now,
	}
}

// expirySkew keeps a safety margin so a token about to expire is refreshed
// before use instead of failing upstream.
const expirySkew = 60 * time.Second

// Do runs op with a valid access token. When op returns ErrUnauthorized and
// no refresh has happened yet in this invocation, the session refreshes the
// token pair and retries exactly once; any ErrUnauthorized after a refresh
// surfaces as ErrAuthRequired.
func (s *Session) Do(ctx context.Context, op func(token string) error) error {
	cred, err := s.creds.Current()
	if err == storage.ErrNotFound {
		return ErrAuthRequired
	}
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	token, cred, refreshed, err := s.ensureToken(ctx, cred)
	if err != nil {
		return err
	}

	opErr := op(token)
	if !errors.Is(opErr, ErrUnauthorized) {
		return opErr
	}
	if refreshed {
		// A token minted moments ago was rejected; another refresh would
		// not help.
		return ErrAuthRequired
	}

	s.log.Info("access token rejected, refreshing")
	token, _, err = s.renew(ctx, cred)
	if err != nil {
		return err
	}

	opErr = op(token)
	if errors.Is(opErr, ErrUnauthorized) {
		return ErrAuthRequired
	}
	return opErr
}

// ensureToken returns a usable access token, renewing when the stored one is
// missing or within the expiry skew. The boolean reports whether a refresh
// happened, so Do does not refresh a second time.
func (s *Session) ensureToken(ctx context.Context, cred storage.Credential) (string, storage.Credential, bool, error) {
	if cred.AccessToken != "" && cred.TokenExpires > s.now().Add(expirySkew).Unix() {
		return cred.AccessToken, cred, false, nil
	}
	token, cred, err := s.renew(ctx, cred)
	return token, cred, err == nil, err
}

// renew exchanges the refresh token for a new pair. With no refresh token
// stored there is nothing to exchange and no upstream call is made; the
// caller gets ErrAuthRequired and must authenticate through the explicit
// auth endpoint.
func (s *Session) renew(ctx context.Context, cred storage.Credential) (string, storage.Credential, error) {
	if cred.RefreshToken == "" {
		return "", cred, ErrAuthRequired
	}

	auth, err := s.client.Refresh(ctx, cred.RefreshToken)
	if errors.Is(err, ErrUnauthorized) {
		// The refresh token is dead. Drop the stale pair so the next
		// attempt does not replay it.
		if clearErr := s.creds.ClearTokens(cred.ID); clearErr != nil {
			s.log.Warn("failed to clear stale tokens", "error", clearErr)
		}
		return "", cred, ErrAuthRequired
	}
	if err != nil {
		return "", cred, fmt.Errorf("refreshing token: %w", err)
	}
	return s.store(cred, auth)
}

func (s *Session) store(cred storage.Credential, auth AuthData) (string, storage.Credential, error) {
	expires := s.now().Unix() + auth.ExpiresIn
	if err := s.creds.SaveTokens(cred.ID, auth.AccessToken, auth.RefreshToken, expires); err != nil {
		return "", cred, fmt.Errorf("saving tokens: %w", err)
	}
	cred.AccessToken = auth.AccessToken
	cred.RefreshToken = auth.RefreshToken
	cred.TokenExpires = expires
	return auth.AccessToken, cred, nil
}

// Verify checks the stored keys by authenticating once and persisting the
// resulting tokens. It is used by the admin key-save endpoint.
func (s *Session) Verify(ctx context.Context) error {
	cred, err := s.creds.Current()
	if err == storage.ErrNotFound {
		return ErrAuthRequired
	}
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	auth, err := s.client.Authenticate(ctx, cred.UserID, cred.Secret)
	if errors.Is(err, ErrUnauthorized) {
		return ErrAuthRequired
	}
	if err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}
	_, _, err = s.store(cred, auth)
	return err
}
