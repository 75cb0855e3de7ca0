// Package gateway places outbound voice-AI calls through the provider's
// HTTP API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/example/hotel-call-scheduler/internal/config"
	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("call gateway not configured")

// Call is one outbound call request.
type Call struct {
	Phone        string // E.164
	FirstMessage string
	Metadata     map[string]string
}

// Result reports the outcome of a placement. A failure is a value, not an
// error: the dispatch loop decides what to do with it.
type Result struct {
	OK     bool
	CallID string
	Error  string
}

type Client struct {
	hc  *http.Client
	cfg config.Gateway
	log *zap.Logger
}

func New(cfg config.Gateway, log *zap.Logger) *Client {
	return &Client{
		hc:  &http.Client{Timeout: cfg.Timeout},
		cfg: cfg,
		log: log.Named("gateway"),
	}
}

func (c *Client) Enabled() bool { return c != nil && c.cfg.Enabled() }

type assistant struct {
	FirstMessage string `json:"firstMessage"`
	Model        struct {
		Provider string `json:"provider"`
		Model    string `json:"model"`
	} `json:"model"`
	Voice struct {
		Provider string `json:"provider"`
		VoiceID  string `json:"voiceId"`
	} `json:"voice"`
	Transcriber struct {
		Provider string `json:"provider"`
	} `json:"transcriber"`
}

type callRequest struct {
	PhoneNumberID string            `json:"phoneNumberId"`
	AssistantID   string            `json:"assistantId,omitempty"`
	Assistant     *assistant        `json:"assistant,omitempty"`
	Customer      customer          `json:"customer"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type customer struct {
	Number string `json:"number"`
}

type callResponse struct {
	ID      string `json:"id"`
	Message any    `json:"message"`
	Error   string `json:"error"`
}

// Place submits the call. Transport errors and non-2xx responses come back
// as a failed Result.
func (c *Client) Place(ctx context.Context, call Call) Result {
	if !c.Enabled() {
		return Result{Error: ErrNotConfigured.Error()}
	}

	req := callRequest{
		PhoneNumberID: c.cfg.PhoneNumberID,
		Customer:      customer{Number: call.Phone},
		Metadata:      call.Metadata,
	}
	if c.cfg.AssistantID != "" {
		req.AssistantID = c.cfg.AssistantID
	}
	// the inline assistant overrides the opening line even when a saved
	// assistant id is configured
	a := &assistant{FirstMessage: call.FirstMessage}
	a.Model.Provider, a.Model.Model = "openai", c.cfg.Model
	a.Voice.VoiceID, a.Voice.Provider = splitVoice(c.cfg.Voice)
	a.Transcriber.Provider = c.cfg.Transcriber
	req.Assistant = a

	body, err := json.Marshal(req)
	if err != nil {
		return Result{Error: err.Error()}
	}

	status, resp, err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/call", body)
	if err != nil {
		c.log.Warn("call placement failed", zap.Error(err))
		return Result{Error: err.Error()}
	}

	var out callResponse
	decodeErr := json.Unmarshal(resp, &out)
	if status >= 300 {
		msg := out.Error
		if msg == "" {
			msg = messageText(out.Message)
		}
		if msg == "" {
			msg = strings.TrimSpace(string(resp))
		}
		return Result{Error: fmt.Sprintf("gateway status %d: %s", status, msg)}
	}
	if decodeErr != nil {
		c.log.Warn("undecodable gateway response", zap.Int("status", status), zap.Error(decodeErr))
		return Result{Error: fmt.Sprintf("decode gateway response: %v", decodeErr)}
	}
	if out.ID == "" {
		return Result{Error: "gateway returned no call id"}
	}
	return Result{OK: true, CallID: out.ID}
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}

// splitVoice reads "<voice>-<provider>", e.g. "jennifer-playht".
func splitVoice(v string) (voice, provider string) {
	if i := strings.LastIndex(v, "-"); i > 0 {
		return v[:i], v[i+1:]
	}
	return v, "11labs"
}

// messageText flattens the provider's message field, which is either a
// string or a list of validation strings.
func messageText(v any) string {
	switch m := v.(type) {
	case string:
		return m
	case []any:
		parts := make([]string, 0, len(m))
		for _, p := range m {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}
