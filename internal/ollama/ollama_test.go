// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"github.com/jeranaias/inkwell/internal/prompt"
)

// =============================================================================
// DECODE TESTS
// =============================================================================

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"fragments in order", "{\"response\":\"Hel\"}\n{\"response\":\"lo\"}\n{\"response\":\"\",\"done\":true}\n", "Hello"},
		{"empty body", "", ""},
		{"only blank lines", "\n \n\t\n", ""},
		{"trims result", "{\"response\":\"  \\n Hi\"}\n{\"response\":\" there \\n\"}", "Hi there"},
		{"missing response field", "{\"done\":false}\n{\"response\":\"x\"}", "x"},
		{"crlf line endings", "{\"response\":\"a\"}\r\n{\"response\":\"b\"}\r\n", "ab"},
		{"blank lines between", "{\"response\":\"a\"}\n\n\n{\"response\":\"b\"}", "ab"},
		{"extra fields ignored", "{\"model\":\"m\",\"response\":\"ok\",\"eval_count\":3}", "ok"},
		{"unparseable created_at", "{\"response\":\"Hi\",\"created_at\":\"yesterday\"}\n", "Hi"},
		{"fractional total_duration", "{\"response\":\"Hi\",\"total_duration\":1.5}\n", "Hi"},
		{"string eval_count", "{\"response\":\"Hi\",\"eval_count\":\"n/a\"}\n", "Hi"},
		{"numeric model", "{\"response\":\"Hi\",\"model\":7}\n", "Hi"},
		{"string done", "{\"response\":\"Hi\",\"done\":\"yes\"}\n", "Hi"},
		{"null response", "{\"response\":null}\n{\"response\":\"Hi\"}", "Hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeResponse([]byte(tt.body))
			if err != nil {
				t.Fatalf("DecodeResponse() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeResponse() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeResponse_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantLine int
	}{
		{"not json", "{\"response\":\"a\"}\nnot json\n", 2},
		{"array", "[{\"response\":\"a\"}]", 1},
		{"trailing garbage", "{\"response\":\"a\"} x", 1},
		{"null", "{\"response\":\"a\"}\n\nnull", 3},
		{"wrong type", "{\"response\":5}", 1},
		{"two objects on one line", "{\"response\":\"a\"}{\"response\":\"b\"}", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeResponse([]byte(tt.body))
			if got != "" {
				t.Errorf("DecodeResponse() = %q, want empty on failure", got)
			}
			var mse *MalformedStreamError
			if !errors.As(err, &mse) {
				t.Fatalf("error = %v, want MalformedStreamError", err)
			}
			if mse.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", mse.Line, tt.wantLine)
			}
			if !IsMalformedStream(err) {
				t.Error("IsMalformedStream() = false")
			}
		})
	}
}

func TestDecodeResponse_ConcatenationProperty(t *testing.T) {
	fragments := []string{" The", " quick", " brown", "", " fox ", "\n"}
	var body strings.Builder
	var want strings.Builder
	for _, f := range fragments {
		line, _ := json.Marshal(GenerateResponse{Response: f})
		body.Write(line)
		body.WriteByte('\n')
		want.WriteString(f)
	}

	got, err := DecodeResponse([]byte(body.String()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != strings.TrimSpace(want.String()) {
		t.Errorf("got %q, want %q", got, strings.TrimSpace(want.String()))
	}
}

// =============================================================================
// STREAM READER TESTS
// =============================================================================

func TestStreamReader_MatchesDecodeResponse(t *testing.T) {
	body := "{\"response\":\" Hel\"}\n\n{\"response\":\"lo \"}\n{\"response\":\"\",\"done\":true,\"eval_count\":2,\"eval_duration\":1000000000,\"model\":\"llama2\"}"

	reader := NewStreamReader(strings.NewReader(body))
	var seen []string
	err := reader.Process(context.Background(), func(ev GenerateResponse) {
		seen = append(seen, ev.Response)
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	want, _ := DecodeResponse([]byte(body))
	if reader.Text() != want {
		t.Errorf("Text() = %q, want %q", reader.Text(), want)
	}
	if len(seen) != 3 {
		t.Errorf("callback calls = %d, want 3", len(seen))
	}
	if reader.Fragments() != 2 {
		t.Errorf("Fragments() = %d, want 2", reader.Fragments())
	}

	stats := reader.Stats()
	if stats.Model != "llama2" || stats.CompletionTokens != 2 {
		t.Errorf("Stats() = %+v", stats)
	}
	if stats.TokensPerSecond != 2 {
		t.Errorf("TokensPerSecond = %v, want 2", stats.TokensPerSecond)
	}
}

func TestStreamReader_Malformed(t *testing.T) {
	reader := NewStreamReader(strings.NewReader("{\"response\":\"a\"}\n{oops\n"))

	ev, err := reader.Next()
	if err != nil || ev.Response != "a" {
		t.Fatalf("first Next() = %+v, %v", ev, err)
	}

	_, err = reader.Next()
	var mse *MalformedStreamError
	if !errors.As(err, &mse) || mse.Line != 2 {
		t.Fatalf("second Next() error = %v, want MalformedStreamError at line 2", err)
	}
}

func TestStreamReader_LenientStats(t *testing.T) {
	body := "{\"response\":\"Hi\",\"done\":true,\"model\":7,\"eval_count\":4,\"eval_duration\":\"slow\",\"created_at\":\"yesterday\"}\n"
	reader := NewStreamReader(strings.NewReader(body))
	if err := reader.Process(context.Background(), nil); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if reader.Text() != "Hi" {
		t.Errorf("Text() = %q", reader.Text())
	}

	stats := reader.Stats()
	if stats.CompletionTokens != 4 || stats.Model != "" || stats.TokensPerSecond != 0 {
		t.Errorf("Stats() = %+v, want eval_count kept and bad fields zeroed", stats)
	}
}

func TestStreamReader_TruncatedBody(t *testing.T) {
	body := io.MultiReader(
		strings.NewReader("{\"response\":\"Hel\"}\n{\"respo"),
		iotest.ErrReader(io.ErrUnexpectedEOF),
	)
	reader := NewStreamReader(body)

	err := reader.Process(context.Background(), nil)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Process() error = %v, want io.ErrUnexpectedEOF", err)
	}
	if IsMalformedStream(err) {
		t.Error("a cut-off body must not be reported as a malformed stream")
	}
}

func TestStreamReader_FinalLineWithoutNewline(t *testing.T) {
	reader := NewStreamReader(strings.NewReader("{\"response\":\"a\"}\n{\"response\":\"b\"}"))
	if err := reader.Process(context.Background(), nil); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if reader.Text() != "ab" {
		t.Errorf("Text() = %q, want %q", reader.Text(), "ab")
	}
}

func TestStreamReader_EOF(t *testing.T) {
	reader := NewStreamReader(strings.NewReader(""))
	if _, err := reader.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() error = %v, want io.EOF", err)
	}
}

func TestStreamReader_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := NewStreamReader(strings.NewReader("{\"response\":\"a\"}\n"))
	if err := reader.Process(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Process() error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestClient_Generate(t *testing.T) {
	var got GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		io.WriteString(w, "{\"response\":\"Hel\"}\n{\"response\":\"lo\"}\n{\"response\":\"\",\"done\":true}\n")
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	text, err := client.Generate(context.Background(), prompt.ComposedRequest{
		Prompt: "p", Model: "llama2", Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "Hello" {
		t.Errorf("Generate() = %q, want %q", text, "Hello")
	}
	if got.Prompt != "p" || got.Model != "llama2" || got.Options.Temperature != 0.2 || got.Template != "" {
		t.Errorf("request body = %+v", got)
	}
}

func TestGenerateRequest_WireFormat(t *testing.T) {
	tests := []struct {
		name string
		req  prompt.ComposedRequest
		want string
	}{
		{
			name: "template omitted when empty, zero temperature kept",
			req:  prompt.ComposedRequest{Prompt: "p", Model: "m", Temperature: 0},
			want: `{"prompt":"p","model":"m","options":{"temperature":0}}`,
		},
		{
			name: "template present",
			req:  prompt.ComposedRequest{Prompt: "p", Model: "m", Temperature: 0.7, Template: "Hi"},
			want: `{"prompt":"p","model":"m","options":{"temperature":0.7},"template":"Hi"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(NewGenerateRequest(tt.req))
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != tt.want {
				t.Errorf("got %s, want %s", b, tt.want)
			}
		})
	}
}

func TestClient_GenerateErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transport bool
		notFound  bool
		malformed bool
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, true, false, false},
		{"model not found", http.StatusNotFound, `{"error":"model 'nope' not found"}`, true, true, false},
		{"bad status no body", http.StatusBadGateway, ``, true, false, false},
		{"malformed stream", http.StatusOK, "{\"response\":\"a\"}\nxx\n", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Generate(context.Background(), prompt.ComposedRequest{Model: "nope"})
			if err == nil {
				t.Fatal("expected error")
			}
			if IsTransport(err) != tt.transport {
				t.Errorf("IsTransport() = %v, want %v (%v)", IsTransport(err), tt.transport, err)
			}
			if IsModelNotFound(err) != tt.notFound {
				t.Errorf("IsModelNotFound() = %v, want %v", IsModelNotFound(err), tt.notFound)
			}
			if IsMalformedStream(err) != tt.malformed {
				t.Errorf("IsMalformedStream() = %v, want %v", IsMalformedStream(err), tt.malformed)
			}
		})
	}
}

func TestClient_GenerateConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Generate(context.Background(), prompt.ComposedRequest{})
	if !IsTransport(err) {
		t.Errorf("error = %v, want transport error", err)
	}
	if IsConfiguration(err) {
		t.Error("generation failure must not be a configuration error")
	}
}

func TestClient_GenerateTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := client.Generate(context.Background(), prompt.ComposedRequest{})
	if !IsTimeout(err) {
		t.Errorf("error = %v, want timeout", err)
	}
	if !IsTransport(err) {
		t.Error("timeout should count as a transport error")
	}
}

func TestClient_GenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, frag := range []string{"Hel", "lo", ""} {
			line, _ := json.Marshal(GenerateResponse{Response: frag, Done: frag == ""})
			w.Write(append(line, '\n'))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	var order []string
	text, stats, err := NewClient(srv.URL).GenerateStream(context.Background(), prompt.ComposedRequest{}, func(ev GenerateResponse) {
		order = append(order, ev.Response)
	})
	if err != nil {
		t.Fatalf("GenerateStream() error = %v", err)
	}
	if text != "Hello" {
		t.Errorf("text = %q", text)
	}
	if strings.Join(order, "|") != "Hel|lo|" {
		t.Errorf("order = %v", order)
	}
	if stats.Fragments != 2 {
		t.Errorf("Fragments = %d", stats.Fragments)
	}
}

// cutOffServer sends a 200 whose body stops partway through a line and
// then drops the connection.
func cutOffServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("Hijack() error = %v", err)
			return
		}
		defer conn.Close()
		buf.WriteString("HTTP/1.1 200 OK\r\nContent-Type: application/x-ndjson\r\nContent-Length: 200\r\n\r\n")
		buf.WriteString("{\"response\":\"Hel\"}\n{\"respo")
		buf.Flush()
	}))
}

func TestClient_ConnectionDroppedMidStream(t *testing.T) {
	t.Run("buffered", func(t *testing.T) {
		srv := cutOffServer(t)
		defer srv.Close()

		text, err := NewClient(srv.URL).Generate(context.Background(), prompt.ComposedRequest{})
		if !IsTransport(err) || IsMalformedStream(err) {
			t.Errorf("error = %v, want transport error", err)
		}
		if text != "" {
			t.Errorf("text = %q, want empty", text)
		}
	})

	t.Run("streaming", func(t *testing.T) {
		srv := cutOffServer(t)
		defer srv.Close()

		text, _, err := NewClient(srv.URL).GenerateStream(context.Background(), prompt.ComposedRequest{}, nil)
		if !IsTransport(err) || IsMalformedStream(err) {
			t.Errorf("error = %v, want transport error", err)
		}
		if text != "" {
			t.Errorf("text = %q, want empty", text)
		}
	})
}

func TestClient_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, "{\"response\":\"x\"}\n")
	}))
	defer srv.Close()

	client := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, RequestsPerSecond: 0.001, Burst: 1})

	if _, err := client.Generate(context.Background(), prompt.ComposedRequest{}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := client.Generate(ctx, prompt.ComposedRequest{}); !IsTransport(err) {
		t.Errorf("second call error = %v, want limiter transport error", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server calls = %d, want 1", calls.Load())
	}
}

func TestClient_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `{"models":[{"name":"llama2:latest","size":3826793677},{"name":"mistral:7b"},{"name":"phi"}]}`)
	}))
	defer srv.Close()

	names, err := NewClient(srv.URL + "/").ModelNames(context.Background())
	if err != nil {
		t.Fatalf("ModelNames() error = %v", err)
	}
	want := []string{"llama2", "mistral:7b", "phi"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("ModelNames() = %v, want %v", names, want)
	}
}

func TestClient_ListModelsConfigurationError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	for _, base := range []string{url, "not a url", "ftp://example.invalid"} {
		_, err := NewClient(base).ListModels(context.Background())
		if !IsConfiguration(err) {
			t.Errorf("ListModels(%q) error = %v, want configuration error", base, err)
		}
		if IsTransport(err) {
			t.Errorf("ListModels(%q) reported as transport error", base)
		}
	}
}

func TestClient_CheckRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "Ollama is running")
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).CheckRunning(context.Background()); err != nil {
		t.Errorf("CheckRunning() error = %v", err)
	}
}

// =============================================================================
// HELPER TESTS
// =============================================================================

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"llama2:latest":     "llama2",
		"llama2":            "llama2",
		"mistral:7b":        "mistral:7b",
		"latest":            "latest",
		"a:latest:latest":   "a:latest",
		"codellama:latest ": "codellama:latest ",
	}
	for in, want := range tests {
		if got := DisplayName(in); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestErrorType_String(t *testing.T) {
	if ErrTypeTransport.String() != "transport" || ErrTypeConfiguration.String() != "configuration" {
		t.Error("unexpected ErrorType names")
	}
	if ErrorType(99).String() != "unknown" {
		t.Error("unknown type should stringify as unknown")
	}
}

func TestClientError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := &ClientError{Type: ErrTypeTransport, Message: "generation request failed", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
	if !errors.Is(err, ErrTransport) {
		t.Error("errors.Is should match the sentinel by type")
	}
	if errors.Is(err, ErrConfiguration) {
		t.Error("transport error matched configuration sentinel")
	}
	if err.Error() != "generation request failed: dial tcp: refused" {
		t.Errorf("Error() = %q", err.Error())
	}
}
