package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sseServer(t *testing.T, status int, lines ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization header = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Stream {
			t.Errorf("bad request body: %v stream=%v", err, req.Stream)
		}
		w.WriteHeader(status)
		for _, l := range lines {
			fmt.Fprintf(w, "%s\n\n", l)
		}
	}))
}

func deltaLine(content, reasoning string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"delta": map[string]string{"content": content, "reasoning_content": reasoning}}},
	})
	return "data: " + string(b)
}

func TestStreamConcatenatesAndWrapsReasoning(t *testing.T) {
	srv := sseServer(t, http.StatusOK,
		deltaLine("", "look at RSI"),
		deltaLine("", " and MACD"),
		deltaLine(`{"direction":`, ""),
		deltaLine(`"UP"}`, ""),
		": keep-alive",
		"data: [DONE]",
		deltaLine("ignored", ""),
	)
	defer srv.Close()

	var chunks []string
	c := NewChatClient(srv.URL+"/", "secret", 0)
	out, err := c.Stream(context.Background(), "m1", nil, func(s string) { chunks = append(chunks, s) })
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	want := `<think>look at RSI and MACD</think>{"direction":"UP"}`
	if out != want {
		t.Fatalf("got %q want %q", out, want)
	}
	if strings.Join(chunks, "") != want {
		t.Fatalf("chunks do not add up: %q", chunks)
	}
}

func TestStreamNon200(t *testing.T) {
	srv := sseServer(t, http.StatusTooManyRequests, "slow down")
	defer srv.Close()

	_, err := NewChatClient(srv.URL, "secret", 100).Stream(context.Background(), "m1", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestStreamEmpty(t *testing.T) {
	srv := sseServer(t, http.StatusOK, "data: [DONE]")
	defer srv.Close()

	if _, err := NewChatClient(srv.URL, "secret", 100).Stream(context.Background(), "m1", nil, nil); err == nil {
		t.Fatalf("expected error for empty completion")
	}
}
