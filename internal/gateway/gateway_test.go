package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestGenerateNoCredentialKeywordFallback(t *testing.T) {
	calls := int32(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})

	got, err := c.Generate(context.Background(), "How much of my deposit can the landlord keep?", GenerateOpts{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != fallbackDeposit {
		t.Fatalf("expected the deposit fallback sentence, got %q", got)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("missing credential must never reach the wire")
	}
}

func TestFallbackAnswerCategories(t *testing.T) {
	cases := []struct {
		prompt string
		want   string
	}{
		{"is this scratch chargeable?", fallbackDamage},
		{"the deductible seems high", fallbackDeposit},
		{"when do I have to give notice?", fallbackNotice},
		{"who pays for maintenance of the boiler?", fallbackRepair},
		{"what should I do next?", fallbackDefault},
	}
	for _, tc := range cases {
		if got := FallbackAnswer(tc.prompt); got != tc.want {
			t.Fatalf("%q: wrong fallback category", tc.prompt)
		}
	}
}

func TestGenerateWireShape(t *testing.T) {
	var captured ChatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ChatResponse{
			Choices: []Choice{{Message: ResponseMessage{Content: "answer"}}},
			Usage:   &Usage{TotalTokens: 42},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Model: "test-model"})
	got, err := c.Generate(context.Background(), "question", GenerateOpts{System: "be brief", Temperature: 0.1, MaxTokens: 100})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "answer" {
		t.Fatalf("got %q", got)
	}
	if auth != "Bearer k" {
		t.Fatalf("bad auth header %q", auth)
	}
	if captured.Model != "test-model" || captured.MaxTokens != 100 || captured.Temperature != 0.1 {
		t.Fatalf("request fields: %+v", captured)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Role != "user" {
		t.Fatalf("messages: %+v", captured.Messages)
	}
}

func TestGenerateVisionContentBlocks(t *testing.T) {
	var raw struct {
		Model    string `json:"model"`
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
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ChatResponse{Choices: []Choice{{Message: ResponseMessage{Content: "ok"}}}})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Model: "chat", VisionModel: "vision"})
	_, err := c.Generate(context.Background(), "compare", GenerateOpts{ImageRefs: []string{"u1", "u2"}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if raw.Model != "vision" {
		t.Fatalf("image calls must use the vision model, got %q", raw.Model)
	}
	blocks := raw.Messages[len(raw.Messages)-1].Content
	if len(blocks) != 3 || blocks[0].Type != "text" || blocks[1].Type != "image_url" || blocks[2].ImageURL.URL != "u2" {
		t.Fatalf("content blocks: %+v", blocks)
	}
}

func TestGenerateServerErrorFallsBackWithoutRetry(t *testing.T) {
	calls := int32(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	got, err := c.Generate(context.Background(), "is this damage my fault?", GenerateOpts{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != fallbackDamage {
		t.Fatalf("expected damage fallback, got %q", got)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls)
	}
}

func TestGenerateCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Generate(ctx, "q", GenerateOpts{}); err == nil {
		t.Fatal("cancellation must propagate, not fall back")
	}
}

func TestGenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		lines := []string{
			`data: {"choices":[{"delta":{"content":"Hello"}}]}`,
			``,
			`data: {not json at all`,
			`data: {"choices":[{"delta":{"content":" world"}}]}`,
			`data: [DONE]`,
			`data: {"choices":[{"delta":{"content":"ignored after sentinel"}}]}`,
		}
		for _, l := range lines {
			w.Write([]byte(l + "\n"))
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	var chunks []string
	got, err := c.GenerateStream(context.Background(), "hi", GenerateOpts{}, func(s string) {
		chunks = append(chunks, s)
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if got != "Hello world" {
		t.Fatalf("got %q", got)
	}
	if len(chunks) != 2 || chunks[0] != "Hello" || chunks[1] != " world" {
		t.Fatalf("chunks: %v", chunks)
	}
}

func TestGenerateStreamNoCredential(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:0"})
	var chunks []string
	got, err := c.GenerateStream(context.Background(), "repair question", GenerateOpts{}, func(s string) {
		chunks = append(chunks, s)
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if got != fallbackRepair || len(chunks) != 1 {
		t.Fatalf("expected single fallback chunk, got %q (%d chunks)", got, len(chunks))
	}
	if !strings.Contains(got, "Landlords are responsible") {
		t.Fatalf("unexpected fallback text %q", got)
	}
}
