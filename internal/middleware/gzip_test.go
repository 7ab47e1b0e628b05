package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	w.Header().Set("Content-Type", contentType)

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("received: " + string(body)))
}

func TestGzipMiddleware(t *testing.T) {
	type want struct {
		statusCode      int
		contentEncoding string
		bodyContains    string
	}

	tests := []struct {
		name        string
		requestBody string
		headers     map[string]string
		want        want
	}{
		{
			name:        "plain request plain response",
			requestBody: `{"training_id":1}`,
			headers:     map[string]string{"Content-Type": "application/json"},
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "",
				bodyContains:    `received: {"training_id":1}`,
			},
		},
		{
			name:        "client accepts gzip",
			requestBody: `{"training_id":2}`,
			headers: map[string]string{
				"Content-Type":    "application/json",
				"Accept-Encoding": "gzip",
			},
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "gzip",
				bodyContains:    `received: {"training_id":2}`,
			},
		},
		{
			name:        "gzip request body",
			requestBody: `{"reps":15}`,
			headers: map[string]string{
				"Content-Type":     "application/json",
				"Content-Encoding": "gzip",
			},
			want: want{
				statusCode:   http.StatusOK,
				bodyContains: `received: {"reps":15}`,
			},
		},
	}

	handler := GzipMiddleware(http.HandlerFunc(echoHandler))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader = strings.NewReader(tt.requestBody)

			if tt.headers["Content-Encoding"] == "gzip" {
				var buf bytes.Buffer
				zw := gzip.NewWriter(&buf)
				if _, err := zw.Write([]byte(tt.requestBody)); err != nil {
					t.Fatalf("compress request body: %v", err)
				}
				if err := zw.Close(); err != nil {
					t.Fatalf("close gzip writer: %v", err)
				}
				body = &buf
			}

			r := httptest.NewRequest(http.MethodPost, "/api/v1/training_records", body)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.want.statusCode {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.want.statusCode)
			}

			if got := res.Header.Get("Content-Encoding"); got != tt.want.contentEncoding {
				t.Fatalf("content-encoding = %q, want %q", got, tt.want.contentEncoding)
			}

			var reader io.Reader = res.Body
			if res.Header.Get("Content-Encoding") == "gzip" {
				zr, err := gzip.NewReader(res.Body)
				if err != nil {
					t.Fatalf("gzip reader: %v", err)
				}
				defer zr.Close()
				reader = zr
			}

			respBody, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("read response body: %v", err)
			}

			if !strings.Contains(string(respBody), tt.want.bodyContains) {
				t.Fatalf("body = %q, want contains %q", respBody, tt.want.bodyContains)
			}
		})
	}
}
