package smartling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://api.smartling.com"

// ErrUnauthorized is returned when the API rejects the access token.
var ErrUnauthorized = errors.New("smartling: unauthorized")

const pageSize = 500

// Client talks to the Smartling REST API. It is stateless: tokens are
// passed per call so the session layer decides when to refresh.
type Client struct {
	baseURL string
	http    *resty.Client
}

// New creates a Client for the production API.
func New() *Client {
	return NewWithBaseURL(DefaultBaseURL)
}

// NewWithBaseURL creates a Client targeting a custom host, used by tests to
// point at a local server.
func NewWithBaseURL(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    resty.New().SetTimeout(30 * time.Second),
	}
}

// Authenticate exchanges the user identifier and secret for a token pair.
func (c *Client) Authenticate(ctx context.Context, userID, secret string) (AuthData, error) {
	return c.postAuth(ctx, "/auth-api/v2/authenticate", map[string]string{
		"userIdentifier": userID,
		"userSecret":     secret,
	})
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (AuthData, error) {
	return c.postAuth(ctx, "/auth-api/v2/authenticate/refresh", map[string]string{
		"refreshToken": refreshToken,
	})
}

func (c *Client) postAuth(ctx context.Context, path string, body map[string]string) (AuthData, error) {
	resp, err := c.http.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.baseURL + path)
	if err != nil {
		return AuthData{}, fmt.Errorf("posting %s: %w", path, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return AuthData{}, ErrUnauthorized
	}
	if resp.IsError() {
		return AuthData{}, fmt.Errorf("%s: %s; body: %s", path, resp.Status(), resp.String())
	}

	// Decode the body directly instead of relying on resty's content-type
	// driven unmarshalling; the API is not trusted to label its responses.
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return AuthData{}, fmt.Errorf("decoding %s response: %w", path, err)
	}

	var auth AuthData
	if err := json.Unmarshal(env.Response.Data, &auth); err != nil {
		return AuthData{}, fmt.Errorf("decoding auth data: %w", err)
	}
	if auth.AccessToken == "" {
		return AuthData{}, fmt.Errorf("%s: empty access token in response", path)
	}
	return auth, nil
}

// Projects lists the projects visible under an account.
func (c *Client) Projects(ctx context.Context, token, accountID string) ([]Project, error) {
	var projects []Project
	err := c.getItems(ctx, token,
		fmt.Sprintf("/accounts-api/v2/accounts/%s/projects", accountID), nil, &projects)
	return projects, err
}

// Jobs lists the translation jobs in a project.
func (c *Client) Jobs(ctx context.Context, token, projectID string) ([]Job, error) {
	var jobs []Job
	err := c.getItems(ctx, token,
		fmt.Sprintf("/jobs-api/v3/projects/%s/jobs", projectID), nil, &jobs)
	return jobs, err
}

// JobFiles lists the files attached to a job.
func (c *Client) JobFiles(ctx context.Context, token, projectID, jobUID string) ([]JobFile, error) {
	var files []JobFile
	err := c.getItems(ctx, token,
		fmt.Sprintf("/jobs-api/v3/projects/%s/jobs/%s/files", projectID, jobUID), nil, &files)
	return files, err
}

// SourceStrings pages through all source strings of one file.
func (c *Client) SourceStrings(ctx context.Context, token, projectID, fileURI string) ([]SourceString, error) {
	var all []SourceString
	for offset := 0; ; {
		var page []SourceString
		err := c.getItems(ctx, token,
			fmt.Sprintf("/strings-api/v2/projects/%s/source-strings", projectID),
			map[string]string{
				"fileUri": fileURI,
				"offset":  fmt.Sprintf("%d", offset),
				"limit":   fmt.Sprintf("%d", pageSize),
			}, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
		offset += len(page)
	}
}

// Translations pages through all published translations of one file for a
// target locale.
func (c *Client) Translations(ctx context.Context, token, projectID, fileURI, locale string) ([]TranslationItem, error) {
	var all []TranslationItem
	for offset := 0; ; {
		var page []TranslationItem
		err := c.getItems(ctx, token,
			fmt.Sprintf("/strings-api/v2/projects/%s/translations", projectID),
			map[string]string{
				"fileUri":        fileURI,
				"targetLocaleId": locale,
				"offset":         fmt.Sprintf("%d", offset),
				"limit":          fmt.Sprintf("%d", pageSize),
			}, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
		offset += len(page)
	}
}

// getItems performs an authenticated GET and decodes response.data.items
// into out, which must be a pointer to a slice.
func (c *Client) getItems(ctx context.Context, token, path string, query map[string]string, out any) error {
	req := c.http.R().SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token)
	if query != nil {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.IsError() {
		return fmt.Errorf("%s: %s; body: %s", path, resp.Status(), resp.String())
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}

	var data struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(env.Response.Data, &data); err != nil {
		return fmt.Errorf("decoding %s data: %w", path, err)
	}
	if len(data.Items) == 0 {
		return nil
	}
	if err := json.Unmarshal(data.Items, out); err != nil {
		return fmt.Errorf("decoding %s items: %w", path, err)
	}
	return nil
}
