package grading

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSandboxClientExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/execute" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		var req executeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Language != "python" || req.Version != "*" {
			t.Errorf("language=%q version=%q", req.Language, req.Version)
		}
		if len(req.Files) != 1 || req.Files[0].Content != "print(input())" {
			t.Errorf("files = %+v", req.Files)
		}
		if req.Stdin != "42" {
			t.Errorf("stdin = %q", req.Stdin)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"run": map[string]string{"output": "42\n", "stderr": ""},
		})
	}))
	defer srv.Close()

	client := NewSandboxClient(srv.URL, 5*time.Second, zerolog.Nop())
	out, err := client.Execute(context.Background(), "python", "print(input())", "42")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Stdout != "42\n" {
		t.Errorf("Stdout = %q", out.Stdout)
	}
}

func TestSandboxClientNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limit exceeded"))
	}))
	defer srv.Close()

	client := NewSandboxClient(srv.URL, 5*time.Second, zerolog.Nop())
	_, err := client.Execute(context.Background(), "python", "src", "")
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	if !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("error %q does not carry the response body", err)
	}
}

func TestSandboxClientContextCancel(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	client := NewSandboxClient(srv.URL, 5*time.Second, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := client.Execute(ctx, "python", "src", ""); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestSandboxClientTrimsTrailingSlash(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"run": map[string]string{}})
	}))
	defer srv.Close()

	client := NewSandboxClient(srv.URL+"/", 5*time.Second, zerolog.Nop())
	if _, err := client.Execute(context.Background(), "python", "src", ""); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if gotPath != "/execute" {
		t.Errorf("path = %q, want /execute", gotPath)
	}
}

func TestMapLanguage(t *testing.T) {
	for in, want := range map[string]string{
		"JS":      "javascript",
		"py":      "python",
		"Python3": "python",
		"c++":     "cpp",
		"golang":  "go",
		"brainf":  "brainf", // unknown passes through
	} {
		if got := MapLanguage(in); got != want {
			t.Errorf("MapLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
