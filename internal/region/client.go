package region

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"detour/pkg/platform/sentinel"
)

// RemoteClient is the per-client payload the panel stores inside an
// inbound's settings blob. Field names and defaults follow the panel API.
type RemoteClient struct {
	ID         string `json:"id"`
	AlterID    int    `json:"alterId"`
	Email      string `json:"email"`
	LimitIP    int    `json:"limitIp"`
	TotalGB    int64  `json:"totalGB"`
	ExpiryTime int64  `json:"expiryTime"`
	Enable     bool   `json:"enable"`
	TgID       string `json:"tgId"`
	SubID      string `json:"subId"`
	Reset      int    `json:"reset"`
	Flow       string `json:"flow"`
}

// Client speaks the control-plane HTTP API of a single region. It is
// stateless with respect to sessions; the Manager owns those.
type Client struct {
	desc Descriptor
	http *http.Client
}

// NewClient builds a control-plane client for the given descriptor.
func NewClient(desc Descriptor) *Client {
	transport := &http.Transport{}
	if desc.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		desc: desc,
		http: &http.Client{
			Timeout:   desc.timeout(),
			Transport: transport,
		},
	}
}

// Descriptor returns the immutable region descriptor this client serves.
func (c *Client) Descriptor() Descriptor { return c.desc }

type apiResponse struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Obj     json.RawMessage `json:"obj"`
}

type inboundSettings struct {
	Clients []RemoteClient `json:"clients"`
}

// Login authenticates and returns the session cookie header value to carry
// on subsequent calls.
func (c *Client) Login(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"username": c.desc.Username,
		"password": c.desc.Password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.desc.BaseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if !parsed.Success {
		return "", fmt.Errorf("login rejected: %s", parsed.Msg)
	}

	cookie := sessionCookie(resp)
	if cookie == "" {
		return "", fmt.Errorf("login succeeded but no session cookie was set")
	}
	return cookie, nil
}

// sessionCookie flattens the response Set-Cookie pairs into a Cookie header
// value.
func sessionCookie(resp *http.Response) string {
	pairs := make([]string, 0, 1)
	for _, c := range resp.Cookies() {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

// AddClient attaches a client entry to the configured inbound. The panel
// expects the clients array JSON-encoded inside a string field.
func (c *Client) AddClient(ctx context.Context, cookie string, rc RemoteClient) error {
	settings, _ := json.Marshal(inboundSettings{Clients: []RemoteClient{rc}})
	payload, _ := json.Marshal(map[string]any{
		"id":       c.desc.InboundID,
		"settings": string(settings),
	})

	parsed, err := c.do(ctx, cookie, http.MethodPost, "/panel/api/inbounds/addClient", payload)
	if err != nil {
		return err
	}
	if !parsed.Success {
		return &CreateError{RegionID: c.desc.ID, Msg: parsed.Msg}
	}
	return nil
}

// RemoveClient deletes a client entry by uuid. Used for compensation and
// explicit client deletion only.
func (c *Client) RemoveClient(ctx context.Context, cookie string, uuid string) error {
	path := fmt.Sprintf("/panel/api/inbounds/%d/delClient/%s", c.desc.InboundID, uuid)
	parsed, err := c.do(ctx, cookie, http.MethodPost, path, []byte("{}"))
	if err != nil {
		return err
	}
	if !parsed.Success {
		return fmt.Errorf("region %s: delete client rejected: %s", c.desc.ID, parsed.Msg)
	}
	return nil
}

// ListClients fetches every inbound and flattens all client arrays across
// their settings blobs. Read-only and idempotent.
func (c *Client) ListClients(ctx context.Context, cookie string) ([]RemoteClient, error) {
	parsed, err := c.do(ctx, cookie, http.MethodGet, "/panel/api/inbounds/list", nil)
	if err != nil {
		return nil, err
	}
	if !parsed.Success {
		return nil, fmt.Errorf("region %s: list inbounds rejected: %s", c.desc.ID, parsed.Msg)
	}

	var inbounds []struct {
		Settings string `json:"settings"`
	}
	if len(parsed.Obj) > 0 {
		if err := json.Unmarshal(parsed.Obj, &inbounds); err != nil {
			return nil, fmt.Errorf("decode inbound list: %w", err)
		}
	}

	var clients []RemoteClient
	for _, inbound := range inbounds {
		if inbound.Settings == "" {
			continue
		}
		var settings inboundSettings
		if err := json.Unmarshal([]byte(inbound.Settings), &settings); err != nil {
			continue // malformed settings on an unrelated inbound
		}
		clients = append(clients, settings.Clients...)
	}
	return clients, nil
}

// do performs one authenticated call. A 401/403 or a non-JSON body is
// reported as sentinel.ErrSessionRejected so the manager can re-authenticate
// once and retry.
func (c *Client) do(ctx context.Context, cookie, method, path string, body []byte) (*apiResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.desc.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Cookie", cookie)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, sentinel.ErrSessionRejected
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		// Panels answer expired sessions with an HTML login redirect.
		return nil, sentinel.ErrSessionRejected
	}
	return &parsed, nil
}
