package region

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"detour/pkg/platform/sentinel"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Descriptor{
		ID:        "primary",
		Role:      RolePrimary,
		BaseURL:   srv.URL,
		Username:  "admin",
		Password:  "secret",
		InboundID: 3,
	})
}

func TestLogin(t *testing.T) {
	t.Run("returns flattened session cookie", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/login", r.URL.Path)

			var creds map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, "admin", creds["username"])
			assert.Equal(t, "secret", creds["password"])

			http.SetCookie(w, &http.Cookie{Name: "3x-ui", Value: "abc123"})
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
		}))

		cookie, err := client.Login(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "3x-ui=abc123", cookie)
	})

	t.Run("rejected credentials fail", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "msg": "wrong password"})
		}))

		_, err := client.Login(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wrong password")
	})

	t.Run("success without cookie fails", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
		}))

		_, err := client.Login(context.Background())
		require.Error(t, err)
	})
}

func TestAddClient(t *testing.T) {
	t.Run("sends string-encoded settings payload", func(t *testing.T) {
		var got struct {
			ID       int    `json:"id"`
			Settings string `json:"settings"`
		}
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/panel/api/inbounds/addClient", r.URL.Path)
			require.Equal(t, "cookie=1", r.Header.Get("Cookie"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
		}))

		rc := RemoteClient{
			ID:      "uuid-1",
			Email:   "alice@vpn.local",
			LimitIP: 2,
			Enable:  true,
			SubID:   "a1b2c3d4e5f60718",
			Flow:    FlowVision,
		}
		require.NoError(t, client.AddClient(context.Background(), "cookie=1", rc))

		assert.Equal(t, 3, got.ID)

		// The clients array travels JSON-encoded inside a string field.
		var settings inboundSettings
		require.NoError(t, json.Unmarshal([]byte(got.Settings), &settings))
		require.Len(t, settings.Clients, 1)
		assert.Equal(t, rc, settings.Clients[0])
	})

	t.Run("panel refusal becomes CreateError", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "msg": "duplicate email"})
		}))

		err := client.AddClient(context.Background(), "cookie=1", RemoteClient{ID: "uuid-1"})
		var createErr *CreateError
		require.ErrorAs(t, err, &createErr)
		assert.Equal(t, "primary", createErr.RegionID)
		assert.Contains(t, createErr.Msg, "duplicate email")
	})

	t.Run("401 maps to session rejection", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))

		err := client.AddClient(context.Background(), "stale", RemoteClient{ID: "uuid-1"})
		assert.ErrorIs(t, err, sentinel.ErrSessionRejected)
	})

	t.Run("html login page maps to session rejection", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>login</html>"))
		}))

		err := client.AddClient(context.Background(), "stale", RemoteClient{ID: "uuid-1"})
		assert.ErrorIs(t, err, sentinel.ErrSessionRejected)
	})
}

func TestRemoveClient(t *testing.T) {
	var path string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))

	require.NoError(t, client.RemoveClient(context.Background(), "cookie=1", "uuid-9"))
	assert.Equal(t, "/panel/api/inbounds/3/delClient/uuid-9", path)
}

func TestListClients(t *testing.T) {
	t.Run("flattens clients across inbounds", func(t *testing.T) {
		settingsA, _ := json.Marshal(inboundSettings{Clients: []RemoteClient{{ID: "uuid-1"}, {ID: "uuid-2"}}})
		settingsB, _ := json.Marshal(inboundSettings{Clients: []RemoteClient{{ID: "uuid-3"}}})
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/panel/api/inbounds/list", r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"obj": []map[string]any{
					{"settings": string(settingsA)},
					{"settings": string(settingsB)},
					{"settings": ""},
					{"settings": "not-json"},
				},
			})
		}))

		clients, err := client.ListClients(context.Background(), "cookie=1")
		require.NoError(t, err)
		require.Len(t, clients, 3)
		assert.Equal(t, "uuid-1", clients[0].ID)
		assert.Equal(t, "uuid-3", clients[2].ID)
	})

	t.Run("empty panel yields no clients", func(t *testing.T) {
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "obj": []any{}})
		}))

		clients, err := client.ListClients(context.Background(), "cookie=1")
		require.NoError(t, err)
		assert.Empty(t, clients)
	})
}
