package chain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, retries int) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		Label:   "primary",
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
		Retries: retries,
		Backoff: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func TestGetResourcesNotFoundIsTyped(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error_code":"account_not_found"}`, http.StatusNotFound)
	}), 2)

	_, err := client.GetResources(context.Background(), "0xdead")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"type":"0x1::object::ObjectCore","data":{"owner":"0xaaa"}}]`))
	}), 2)

	resources, err := client.GetResources(context.Background(), "0xaaa")
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "0x1::object::ObjectCore", resources[0].Type)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "missing", http.StatusNotFound)
	}), 3)

	_, err := client.GetResources(context.Background(), "0xdead")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetModuleCaching(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"bytecode":"0xa11ce0","abi":{"address":"0xaaa","name":"token","exposed_functions":[]}}`))
	}), 0)

	first, err := client.GetModule(context.Background(), "0xAAA", "token")
	require.NoError(t, err)
	second, err := client.GetModule(context.Background(), "0xaaa", "token")
	require.NoError(t, err)

	// Case-normalized key, one upstream fetch.
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestValidateProxyURL(t *testing.T) {
	assert.NoError(t, ValidateProxyURL(""))
	assert.NoError(t, ValidateProxyURL("http://127.0.0.1:7897"))
	assert.NoError(t, ValidateProxyURL("socks5://127.0.0.1:1080"))
	assert.Error(t, ValidateProxyURL("ftp://127.0.0.1:21"))
	assert.Error(t, ValidateProxyURL("http://"))
}

func TestNewClientRejectsEmptyURL(t *testing.T) {
	_, err := NewClient(ClientConfig{BaseURL: "   "})
	assert.Error(t, err)
}
