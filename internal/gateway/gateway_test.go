package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/hotel-call-scheduler/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(url string) config.Gateway {
	return config.Gateway{
		BaseURL: url, APIKey: "secret", PhoneNumberID: "pn-1",
		Model: "gpt-4o-mini", Voice: "jennifer-playht", Transcriber: "deepgram",
		Timeout: 2 * time.Second,
	}
}

func TestPlace_Success(t *testing.T) {
	var got callRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/call", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"call-123"}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), zap.NewNop())
	res := c.Place(context.Background(), Call{
		Phone:        "+12024561111",
		FirstMessage: "Hello Ana",
		Metadata:     map[string]string{"call_type": "pre_arrival"},
	})

	assert.Equal(t, Result{OK: true, CallID: "call-123"}, res)
	assert.Equal(t, "pn-1", got.PhoneNumberID)
	assert.Equal(t, "+12024561111", got.Customer.Number)
	require.NotNil(t, got.Assistant)
	assert.Equal(t, "Hello Ana", got.Assistant.FirstMessage)
	assert.Equal(t, "jennifer", got.Assistant.Voice.VoiceID)
	assert.Equal(t, "playht", got.Assistant.Voice.Provider)
	assert.Equal(t, "pre_arrival", got.Metadata["call_type"])
}

func TestPlace_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":["customer.number must be a valid phone number"]}`))
	}))
	defer srv.Close()

	res := New(testConfig(srv.URL), zap.NewNop()).Place(context.Background(), Call{Phone: "+1"})
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "400")
	assert.Contains(t, res.Error, "valid phone number")
}

func TestPlace_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := New(testConfig(url), zap.NewNop()).Place(context.Background(), Call{Phone: "+12024561111"})
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Error)
}

func TestPlace_NotConfigured(t *testing.T) {
	c := New(config.Gateway{}, zap.NewNop())
	assert.False(t, c.Enabled())
	res := c.Place(context.Background(), Call{Phone: "+12024561111"})
	assert.Equal(t, ErrNotConfigured.Error(), res.Error)
}

func TestPlace_UndecodableSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`<html>accepted</html>`))
	}))
	defer srv.Close()

	res := New(testConfig(srv.URL), zap.NewNop()).Place(context.Background(), Call{Phone: "+12024561111"})
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "decode gateway response")
}
