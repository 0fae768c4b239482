package bot

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLLMClient(t *testing.T, handler http.HandlerFunc) *LLMClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.API.APIKey = "test-key"
	cfg.Model = "test-model"
	return NewLLMClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func completionResponse(content string) string {
	return `{"choices":[{"message":{"content":` + strconvQuote(content) + `},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`
}

func strconvQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestCompleteSendsHistoryAndAuth(t *testing.T) {
	var gotReq chatRequest
	var gotAuth string

	c := testLLMClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		io.WriteString(w, completionResponse("  the answer  "))
	})

	history := []Turn{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	got, err := c.Complete(t.Context(), "be brief", history, "new question")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "the answer" {
		t.Fatalf("reply = %q, want trimmed answer", got)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("model = %q", gotReq.Model)
	}
	// system + 2 history + user message
	if len(gotReq.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" {
		t.Errorf("first role = %q, want system", gotReq.Messages[0].Role)
	}
	if gotReq.Messages[3].Content != "new question" {
		t.Errorf("last message = %v", gotReq.Messages[3].Content)
	}
}

func TestCompleteErrors(t *testing.T) {
	t.Run("http error status", func(t *testing.T) {
		c := testLLMClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"error":{"message":"rate limited"}}`)
		})
		if _, err := c.Complete(t.Context(), "", nil, "hi"); err == nil {
			t.Fatal("expected error on 429")
		}
	})

	t.Run("error payload with 200", func(t *testing.T) {
		c := testLLMClient(t, func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, `{"error":{"message":"model overloaded","type":"server_error"}}`)
		})
		_, err := c.Complete(t.Context(), "", nil, "hi")
		if err == nil || !strings.Contains(err.Error(), "model overloaded") {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("no choices", func(t *testing.T) {
		c := testLLMClient(t, func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, `{"choices":[]}`)
		})
		if _, err := c.Complete(t.Context(), "", nil, "hi"); err == nil {
			t.Fatal("expected error on empty choices")
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.API.APIKey = ""
		c := NewLLMClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
		if _, err := c.Complete(t.Context(), "", nil, "hi"); err == nil {
			t.Fatal("expected error without an API key")
		}
	})
}

func TestCompleteWithVisionImagePayload(t *testing.T) {
	var rawBody []byte
	c := testLLMClient(t, func(w http.ResponseWriter, r *http.Request) {
		rawBody, _ = io.ReadAll(r.Body)
		io.WriteString(w, completionResponse("a red bicycle"))
	})

	got, err := c.CompleteWithVision(t.Context(), "QUJD", "image/png", "describe this")
	if err != nil {
		t.Fatalf("CompleteWithVision: %v", err)
	}
	if got != "a red bicycle" {
		t.Fatalf("reply = %q", got)
	}

	var req struct {
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type     string `json:"type"`
				Text     string `json:"text"`
				ImageURL *struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(rawBody, &req); err != nil {
		t.Fatalf("bad request body: %v", err)
	}
	if len(req.Messages) != 1 || len(req.Messages[0].Content) != 2 {
		t.Fatalf("unexpected shape: %s", rawBody)
	}
	if req.Messages[0].Content[0].Text != "describe this" {
		t.Errorf("prompt part = %q", req.Messages[0].Content[0].Text)
	}
	img := req.Messages[0].Content[1]
	if img.Type != "image_url" || img.ImageURL == nil {
		t.Fatalf("media part = %+v", img)
	}
	if img.ImageURL.URL != "data:image/png;base64,QUJD" {
		t.Errorf("data URL = %q", img.ImageURL.URL)
	}
}

func TestCompleteWithVisionAudioPayload(t *testing.T) {
	var rawBody []byte
	c := testLLMClient(t, func(w http.ResponseWriter, r *http.Request) {
		rawBody, _ = io.ReadAll(r.Body)
		io.WriteString(w, completionResponse("they said hello"))
	})

	if _, err := c.CompleteWithVision(t.Context(), "QUJD", "audio/ogg; codecs=opus", "transcribe"); err != nil {
		t.Fatalf("CompleteWithVision: %v", err)
	}

	body := string(rawBody)
	if !strings.Contains(body, `"input_audio"`) {
		t.Errorf("audio request missing input_audio part: %s", body)
	}
	if !strings.Contains(body, `"format":"ogg"`) {
		t.Errorf("audio request missing format: %s", body)
	}
}

func TestAudioFormat(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"audio/ogg", "ogg"},
		{"audio/ogg; codecs=opus", "ogg"},
		{"audio/mpeg", "mp3"},
		{"audio/mp4", "mp4"},
		{"audio/", "ogg"},
	}
	for _, tt := range tests {
		if got := audioFormat(tt.mime); got != tt.want {
			t.Errorf("audioFormat(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("hello world", 5); got != "hello..." {
		t.Errorf("truncate long = %q", got)
	}
}
