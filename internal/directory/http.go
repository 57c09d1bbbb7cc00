package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"sobre/internal/domain"
)

// Client talks to the backend directory/storage service.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// New returns a Client for the backend at base. httpClient may be nil.
func New(base, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: base, token: token, http: httpClient}
}

// Wire shapes. The backend wraps every response in a success flag.

type registerKeyRequest struct {
	Identity  domain.Identity `json:"identity"`
	PublicKey string          `json:"publicKey"`
}

type lookupKeyResponse struct {
	Success   bool   `json:"success"`
	PublicKey string `json:"publicKey,omitempty"`
}

type contactsResponse struct {
	Success  bool              `json:"success"`
	Contacts []domain.Identity `json:"contacts"`
}

type messagesResponse struct {
	Success  bool             `json:"success"`
	Messages []domain.Message `json:"messages"`
}

func (c *Client) RegisterPublicKey(ctx context.Context, identity domain.Identity, exported string) error {
	return c.post(ctx, "/api/chat/keys", registerKeyRequest{Identity: identity, PublicKey: exported}, nil)
}

func (c *Client) FetchPublicKey(ctx context.Context, identity domain.Identity) (string, error) {
	var out lookupKeyResponse
	err := c.getJSON(ctx, "/api/chat/keys/"+url.PathEscape(string(identity)), &out)
	if err != nil {
		return "", err
	}
	if !out.Success || out.PublicKey == "" {
		return "", domain.ErrKeyNotFound
	}
	return out.PublicKey, nil
}

func (c *Client) Contacts(ctx context.Context, identity domain.Identity) ([]domain.Identity, error) {
	var out contactsResponse
	path := "/api/chat/contacts?userId=" + url.QueryEscape(string(identity))
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Contacts, nil
}

func (c *Client) Messages(ctx context.Context, identity, other domain.Identity) ([]domain.Message, error) {
	var out messagesResponse
	path := "/api/chat/messages/" + url.PathEscape(string(identity)) + "/" + url.PathEscape(string(other))
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %v: %w", req.Method, req.URL.Path, err, domain.ErrDirectoryUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.ErrAuthExpired
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrKeyNotFound
	case resp.StatusCode/100 != 2:
		return fmt.Errorf("%s %s: %s: %w", req.Method, req.URL.Path, resp.Status, domain.ErrDirectoryUnavailable)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: decode: %v: %w", req.Method, req.URL.Path, err, domain.ErrDirectoryUnavailable)
		}
	}
	return nil
}

var (
	_ domain.KeyDirectory  = (*Client)(nil)
	_ domain.HistoryClient = (*Client)(nil)
)
