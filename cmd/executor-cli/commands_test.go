package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gradebox/internal/executor/model"
)

func newFakeServer(t *testing.T, requests map[string][]byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r.Body)
		requests[r.URL.Path] = buf.Bytes()
	}
	mux.HandleFunc("/execute", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_ = json.NewEncoder(w).Encode(model.ExecuteResponse{Success: true, Output: "3\n", Status: model.StatusSuccess, ExecutionTime: 7})
	})
	mux.HandleFunc("/plagiarism-check", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_ = json.NewEncoder(w).Encode(model.PlagiarismCheckResponse{SimilarityScore: 0.9, Flagged: true})
	})
	mux.HandleFunc("/supported-languages", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.SupportedLanguagesResponse{Languages: []model.LanguageInfo{
			{ID: "python", Version: "3.11", SourceFile: "solution.py", Timeout: 10, MemoryLimitMB: 256},
			{ID: "cpp", Version: "17", SourceFile: "solution.cpp", Compiled: true, Timeout: 10, MemoryLimitMB: 256},
		}})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"error","error":"Executor is busy, please try again later","code":13100}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write file failed: %v", err)
	}
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	argv := append([]string{"executor-cli", "--config", filepath.Join(t.TempDir(), "none.yaml"), "--no-color"}, args...)
	err := newApp(&out).Run(context.Background(), argv)
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	requests := map[string][]byte{}
	srv := newFakeServer(t, requests)
	src := writeTemp(t, "solution.py", "a, b = map(int, input().split())\nprint(a + b)\n")

	out, err := runApp(t, "--base", srv.URL, "run", "--lang", "python", "--file", src, "--input", "1 2", "--timeout", "2.5")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "SUCCESS  7ms") || !strings.Contains(out, "  3") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	var req model.ExecuteRequest
	if err := json.Unmarshal(requests["/execute"], &req); err != nil {
		t.Fatalf("decode request failed: %v", err)
	}
	if req.Language != "python" || req.InputData != "1 2" || req.Timeout != 2.5 || !strings.Contains(req.Code, "print(a + b)") {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestCompareCommandJSON(t *testing.T) {
	requests := map[string][]byte{}
	srv := newFakeServer(t, requests)
	a := writeTemp(t, "a.py", "print(1)\n")
	b := writeTemp(t, "b.py", "print(2)\n")

	out, err := runApp(t, "--base", srv.URL, "--json", "compare", a, b)
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	var resp model.PlagiarismCheckResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if resp.SimilarityScore != 0.9 || !resp.Flagged {
		t.Fatalf("unexpected response: %+v", resp)
	}
	var req model.PlagiarismCheckRequest
	_ = json.Unmarshal(requests["/plagiarism-check"], &req)
	if req.Code1 != "print(1)\n" || req.Code2 != "print(2)\n" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestCompareNeedsTwoFiles(t *testing.T) {
	srv := newFakeServer(t, map[string][]byte{})
	if _, err := runApp(t, "--base", srv.URL, "compare", "only-one.py"); err == nil {
		t.Fatalf("expected argument error")
	}
}

func TestLanguagesCommand(t *testing.T) {
	srv := newFakeServer(t, map[string][]byte{})
	out, err := runApp(t, "--base", srv.URL, "languages")
	if err != nil {
		t.Fatalf("languages failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "python") || !strings.Contains(lines[1], "compiled") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestHealthCommandReportsAPIError(t *testing.T) {
	srv := newFakeServer(t, map[string][]byte{})
	_, err := runApp(t, "--base", srv.URL, "health")
	if err == nil || !strings.Contains(err.Error(), "HTTP 503") || !strings.Contains(err.Error(), "code 13100") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConfigOutputDefaults(t *testing.T) {
	srv := newFakeServer(t, map[string][]byte{})
	cfgPath := writeTemp(t, "cli.yaml", "baseURL: "+srv.URL+"/\njson: true\nprettyJSON: false\nnoColor: true\n")

	var out bytes.Buffer
	err := newApp(&out).Run(context.Background(), []string{"executor-cli", "--config", cfgPath, "languages"})
	if err != nil {
		t.Fatalf("languages failed: %v", err)
	}
	var resp model.SupportedLanguagesResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("json default from config not applied: %v\n%s", err, out.String())
	}
	if strings.Contains(out.String(), "\n  ") || len(resp.Languages) != 2 {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestInvalidBaseURL(t *testing.T) {
	for _, base := range []string{"localhost:8090", "ftp://exec", "http://"} {
		if _, err := runApp(t, "--base", base, "health"); err == nil || !strings.Contains(err.Error(), "invalid baseURL") {
			t.Fatalf("base %q: unexpected error %v", base, err)
		}
	}
}
