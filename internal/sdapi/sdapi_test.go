package sdapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/sdbot/internal/params"
)

func TestBuildDefaultFieldSet(t *testing.T) {
	set := params.New(1, params.DefaultDefaults())
	set.Prompt = "a red fox in snow"

	raw, err := json.Marshal(Build(set.View()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := map[string]any{
		"prompt":              "a red fox in snow",
		"negative_prompt":     "ugly, blurry, low quality, distorted",
		"steps":               float64(20),
		"cfg_scale":           7.0,
		"width":               float64(512),
		"height":              float64(512),
		"sampler_name":        "Euler a",
		"sampler_index":       "Euler a",
		"scheduler":           "Automatic",
		"seed":                float64(-1),
		"subseed":             float64(-1),
		"subseed_strength":    float64(0),
		"seed_resize_from_h":  float64(-1),
		"seed_resize_from_w":  float64(-1),
		"batch_size":          float64(1),
		"n_iter":              float64(1),
		"restore_faces":       false,
		"tiling":              false,
		"do_not_save_samples": true,
		"do_not_save_grid":    true,
		"save_images":         false,
	}
	if len(got) != len(want) {
		t.Fatalf("field count = %d, want %d: %v", len(got), len(want), keys(got))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %#v, want %#v", k, got[k], v)
		}
	}
}

func TestBuildCopiesSamplerIntoIndex(t *testing.T) {
	set := params.New(1, params.DefaultDefaults())
	set.Sampler = "DPM++ 2M Karras"
	set.Tiling = true
	req := Build(set.View())
	if req.SamplerName != "DPM++ 2M Karras" || req.SamplerIndex != req.SamplerName {
		t.Fatalf("sampler fields = %q/%q", req.SamplerName, req.SamplerIndex)
	}
	if !req.Tiling {
		t.Fatal("tiling not carried")
	}
}

func TestInterpret(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	enc := base64.StdEncoding.EncodeToString(png)

	tests := []struct {
		name    string
		resp    *Response
		err     error
		wantOK  bool
		wantMsg string
	}{
		{name: "first image", resp: &Response{Images: []string{enc, "ignored"}}, wantOK: true},
		{name: "data uri", resp: &Response{Images: []string{"data:image/png;base64," + enc}}, wantOK: true},
		{name: "empty list", resp: &Response{}, wantMsg: NoImagesMessage},
		{name: "nil response", wantMsg: NoImagesMessage},
		{name: "status", err: &StatusError{Code: 500, Detail: "CUDA out of memory"}, wantMsg: "API returned status 500: CUDA out of memory"},
		{name: "network", err: &NetworkError{Err: errors.New("connection refused")}, wantMsg: "Network error: connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Interpret(tt.resp, tt.err)
			if out.OK() != tt.wantOK {
				t.Fatalf("ok = %v, outcome %+v", out.OK(), out)
			}
			if tt.wantOK && string(out.Image) != string(png) {
				t.Fatalf("image = %v", out.Image)
			}
			if !tt.wantOK && out.Message != tt.wantMsg {
				t.Fatalf("message = %q, want %q", out.Message, tt.wantMsg)
			}
		})
	}
}

func TestFailureTruncates(t *testing.T) {
	long := strings.Repeat("é", 250)
	out := Failure(long)
	if !strings.HasSuffix(out.Message, "...") {
		t.Fatalf("missing ellipsis: %q", out.Message)
	}
	if n := len([]rune(strings.TrimSuffix(out.Message, "..."))); n != MaxFailureLen {
		t.Fatalf("kept %d runes, want %d", n, MaxFailureLen)
	}
	if short := Failure("boom"); short.Message != "boom" {
		t.Fatalf("short message changed: %q", short.Message)
	}
}

func TestStatusErrorDetail(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail":"Not Found"}`, "Not Found"},
		{`{"error":"x"}`, "Unknown error"},
		{`{"detail":[{"loc":["body","steps"],"msg":"bad"}]}`, `[{"loc":["body","steps"],"msg":"bad"}]`},
		{`<html>Bad Gateway</html>`, "<html>Bad Gateway</html>"},
		{strings.Repeat("x", 300), strings.Repeat("x", 200)},
	}
	for _, tt := range tests {
		if got := statusError(502, []byte(tt.body)).Detail; got != tt.want {
			t.Errorf("detail(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestClientGenerateSuccess(t *testing.T) {
	png := []byte("fake-png-bytes")
	var gotPath string
	var gotReq Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"images": []string{base64.StdEncoding.EncodeToString(png)},
			"info":   `{"seed": 42}`,
		})
	}))
	defer srv.Close()

	client, err := New(Config{URL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	set := params.New(9, params.DefaultDefaults())
	set.Prompt = "castle"
	out := client.Generate(context.Background(), set.View())
	if !out.OK() {
		t.Fatalf("unexpected failure: %q", out.Message)
	}
	if string(out.Image) != string(png) {
		t.Fatalf("image = %q", out.Image)
	}
	if gotPath != "/sdapi/v1/txt2img" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotReq.Prompt != "castle" || gotReq.NIter != 1 || !gotReq.DoNotSaveGrid {
		t.Fatalf("request = %+v", gotReq)
	}
}

func TestClientGenerateStatusFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"detail":"model not loaded"}`)
	}))
	defer srv.Close()

	client, _ := New(Config{URL: srv.URL})
	out := client.Generate(context.Background(), params.New(1, params.DefaultDefaults()).View())
	if out.OK() {
		t.Fatal("expected failure")
	}
	if out.Message != "API returned status 500: model not loaded" {
		t.Fatalf("message = %q", out.Message)
	}
}

func TestClientGenerateTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, _ := New(Config{URL: srv.URL, Timeout: 50 * time.Millisecond})
	out := client.Generate(context.Background(), params.New(1, params.DefaultDefaults()).View())
	if out.OK() {
		t.Fatal("expected failure")
	}
	if !strings.HasPrefix(out.Message, "Network error: ") {
		t.Fatalf("message = %q", out.Message)
	}
}

func TestFailureAttrsTagTimeouts(t *testing.T) {
	attrMap := func(attrs []slog.Attr) map[string]slog.Value {
		m := make(map[string]slog.Value, len(attrs))
		for _, a := range attrs {
			m[a.Key] = a.Value
		}
		return m
	}

	timeoutErr := &NetworkError{Err: fmt.Errorf("post: %w", context.DeadlineExceeded)}
	got := attrMap(failureAttrs(timeoutErr, Interpret(nil, timeoutErr), time.Second))
	if v, ok := got["timeout"]; !ok || !v.Bool() {
		t.Fatalf("timeout not tagged: %v", got)
	}
	if v, ok := got["retryable"]; !ok || !v.Bool() {
		t.Fatalf("retryable not tagged: %v", got)
	}

	statusErr := statusError(http.StatusInternalServerError, []byte("boom"))
	got = attrMap(failureAttrs(statusErr, Interpret(nil, statusErr), time.Second))
	if _, ok := got["timeout"]; ok {
		t.Fatalf("status failure tagged as timeout: %v", got)
	}
	if v, ok := got["http_code"]; !ok || v.Int64() != http.StatusInternalServerError {
		t.Fatalf("http_code = %v", got)
	}
}

func TestClientGenerateNoImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"images": []}`)
	}))
	defer srv.Close()

	client, _ := New(Config{URL: srv.URL})
	out := client.Generate(context.Background(), params.New(1, params.DefaultDefaults()).View())
	if out.Message != NoImagesMessage {
		t.Fatalf("message = %q", out.Message)
	}
}

func TestNewRequiresURL(t *testing.T) {
	if _, err := New(Config{URL: "  "}); err == nil {
		t.Fatal("expected error for empty url")
	}
	c, err := New(Config{URL: "http://colab.example//"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.URL() != "http://colab.example/sdapi/v1/txt2img" {
		t.Fatalf("url = %q", c.URL())
	}
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
