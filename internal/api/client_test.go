package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/s3transfer/transferctl/internal/config"
)

func newTestClient(t *testing.T, handler nethttp.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.NewConfig()
	cfg.APIBaseURL = srv.URL + "/api"

	client, err := NewClient(cfg, opts...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

// TestNewClientRejectsEmptyBaseURL verifies that NewClient fails with a clear error
// when APIBaseURL is empty, instead of creating a broken client that produces
// "unsupported protocol scheme" errors on every request.
func TestNewClientRejectsEmptyBaseURL(t *testing.T) {
	cfg := config.NewConfig()
	cfg.APIBaseURL = ""

	_, err := NewClient(cfg)
	if err == nil {
		t.Fatal("NewClient() should return error for empty APIBaseURL")
	}
	if !strings.Contains(err.Error(), "API base URL is empty") {
		t.Errorf("NewClient() error = %q, want error containing 'API base URL is empty'", err.Error())
	}
}

func TestNewClientTrimsTrailingSlash(t *testing.T) {
	cfg := config.NewConfig()
	cfg.APIBaseURL = "http://localhost:8080/api/"

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.BaseURL() != "http://localhost:8080/api" {
		t.Errorf("BaseURL() = %q", client.BaseURL())
	}
}

func TestLogin(t *testing.T) {
	client := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost || r.URL.Path != "/api/auth/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.Username != "admin" || req.Password != "password" {
			w.WriteHeader(nethttp.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"Invalid credentials"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"token":"JWT_TOKEN_1"}`)
	})

	token, err := client.Login(context.Background(), "admin", "password")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if token != "JWT_TOKEN_1" {
		t.Errorf("token = %q", token)
	}

	_, err = client.Login(context.Background(), "admin", "wrong")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Login() error = %v, want ErrUnauthorized", err)
	}
	if StatusCode(err) != nethttp.StatusUnauthorized {
		t.Errorf("StatusCode() = %d", StatusCode(err))
	}
}

func TestListFilesSendsHeaders(t *testing.T) {
	client := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.EscapedPath() != "/api/s3/my%20bucket/files" {
			t.Errorf("path = %q", r.URL.EscapedPath())
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("X-Request-ID header missing")
		}
		_, _ = io.WriteString(w, `["a.txt","docs/b.pdf"]`)
	}, WithTokenSource(StaticToken("tok")))

	files, err := client.ListFiles(context.Background(), "my bucket")
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	if len(files) != 2 || files[0] != "a.txt" || files[1] != "docs/b.pdf" {
		t.Errorf("files = %v", files)
	}
}

func TestListFilesWithoutToken(t *testing.T) {
	client := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want none", got)
		}
		_, _ = io.WriteString(w, `null`)
	}, WithTokenSource(StaticToken("")))

	files, err := client.ListFiles(context.Background(), "b")
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	if files == nil || len(files) != 0 {
		t.Errorf("files = %#v, want empty non-nil slice", files)
	}
}

func TestListFilesBadRequest(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(nethttp.StatusBadRequest)
		_, _ = io.WriteString(w, "Bucket does not exist: nope")
	})

	_, err := client.ListFiles(context.Background(), "nope")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.StatusCode != nethttp.StatusBadRequest || se.Body != "Bucket does not exist: nope" {
		t.Errorf("StatusError = %+v", se)
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Error("400 should not match ErrUnauthorized")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestServerErrorNotRetriedByDefault(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(nethttp.StatusInternalServerError)
	})

	_, err := client.TransferStatus(context.Background(), "job-1")
	if StatusCode(err) != nethttp.StatusInternalServerError {
		t.Fatalf("error = %v, want status 500", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestServerErrorRetriedWhenConfigured(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(nethttp.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "RUNNING")
	}))
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.APIBaseURL = srv.URL + "/api"
	cfg.MaxRetries = 2

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	status, err := client.TransferStatus(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("TransferStatus() error = %v", err)
	}
	if status != "RUNNING" {
		t.Errorf("status = %q", status)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestUploadMultipart(t *testing.T) {
	client := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/api/s3/b/upload" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "report.pdf" || string(data) != "hello" {
			t.Errorf("file = %q %q", hdr.Filename, data)
		}
		if got := r.FormValue("key"); got != "docs/report.pdf" {
			t.Errorf("key = %q", got)
		}
		_, _ = io.WriteString(w, "File uploaded successfully: docs/report.pdf")
	})

	msg, err := client.Upload(context.Background(), "b", "report.pdf", strings.NewReader("hello"), "docs/report.pdf")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if msg != "File uploaded successfully: docs/report.pdf" {
		t.Errorf("msg = %q", msg)
	}
}

func TestUploadWithoutKeyOmitsField(t *testing.T) {
	client := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if _, ok := r.MultipartForm.Value["key"]; ok {
			t.Error("key field should be absent")
		}
		_, _ = io.WriteString(w, "ok")
	})

	if _, err := client.Upload(context.Background(), "b", "a.txt", strings.NewReader("x"), ""); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
}

func TestDownloadEscapesKey(t *testing.T) {
	client := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.EscapedPath() != "/api/s3/b/download/docs%2Freport.pdf" {
			t.Errorf("path = %q", r.URL.EscapedPath())
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.WriteString(w, "payload")
	})

	var buf bytes.Buffer
	n, err := client.Download(context.Background(), "b", "docs/report.pdf", &buf)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if n != 7 || buf.String() != "payload" {
		t.Errorf("n = %d, body = %q", n, buf.String())
	}
}

func TestDownloadFailure(t *testing.T) {
	client := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusBadRequest)
	})

	var buf bytes.Buffer
	_, err := client.Download(context.Background(), "b", "missing", &buf)
	if StatusCode(err) != nethttp.StatusBadRequest {
		t.Fatalf("error = %v, want status 400", err)
	}
	if buf.Len() != 0 {
		t.Errorf("wrote %d bytes on failure", buf.Len())
	}
}

func TestSubmitTransferAcceptsRawAndJSONIDs(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"raw uuid", "3fa85f64-5717-4562-b3fc-2c963f66afa6", "3fa85f64-5717-4562-b3fc-2c963f66afa6"},
		{"json string", `"job-1"`, "job-1"},
		{"trailing newline", "job-2\n", "job-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
				var req TransferRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode: %v", err)
				}
				if req.SourceBucket != "a" || req.DestinationBucket != "b" || req.FileKey != "x.txt" {
					t.Errorf("request = %+v", req)
				}
				if ct := r.Header.Get("Content-Type"); ct != "application/json" {
					t.Errorf("Content-Type = %q", ct)
				}
				_, _ = io.WriteString(w, tt.body)
			})

			id, err := client.SubmitTransfer(context.Background(), "a", "b", "x.txt")
			if err != nil {
				t.Fatalf("SubmitTransfer() error = %v", err)
			}
			if id != tt.want {
				t.Errorf("id = %q, want %q", id, tt.want)
			}
		})
	}
}

func TestSubmitTransferEmptyID(t *testing.T) {
	client := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {})

	if _, err := client.SubmitTransfer(context.Background(), "a", "b", "x"); err == nil {
		t.Fatal("expected error for empty job id")
	}
}

func TestTransferStatusPath(t *testing.T) {
	client := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/api/transfer/job-1/status" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = io.WriteString(w, "COMPLETED")
	})

	status, err := client.TransferStatus(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("TransferStatus() error = %v", err)
	}
	if status != "COMPLETED" {
		t.Errorf("status = %q", status)
	}
}

func TestCredentials(t *testing.T) {
	client := newTestClient(t, func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/api/admin/aws" {
			t.Errorf("path = %q", r.URL.Path)
		}
		switch r.Method {
		case nethttp.MethodPost:
			var cred AWSCredential
			if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
				t.Errorf("decode: %v", err)
			}
			if cred.AccountName != "prod" || cred.AccessKey != "AKIA" || cred.SecretKey != "secret" || cred.Region != "us-east-1" {
				t.Errorf("cred = %+v", cred)
			}
			_, _ = io.WriteString(w, "AWS credentials saved successfully")
		case nethttp.MethodGet:
			_, _ = io.WriteString(w, `[{"id":"1","accountName":"prod","region":"us-east-1","accessKeyEncrypted":"x"}]`)
		}
	})

	msg, err := client.SaveCredentials(context.Background(), AWSCredential{
		AccountName: "prod", AccessKey: "AKIA", SecretKey: "secret", Region: "us-east-1",
	})
	if err != nil {
		t.Fatalf("SaveCredentials() error = %v", err)
	}
	if msg != "AWS credentials saved successfully" {
		t.Errorf("msg = %q", msg)
	}

	creds, err := client.ListCredentials(context.Background())
	if err != nil {
		t.Fatalf("ListCredentials() error = %v", err)
	}
	if len(creds) != 1 || creds[0].ID != "1" || creds[0].AccountName != "prod" || creds[0].Region != "us-east-1" {
		t.Errorf("creds = %+v", creds)
	}
}

func TestStatusErrorIs(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{nethttp.StatusUnauthorized, true},
		{nethttp.StatusForbidden, true},
		{nethttp.StatusBadRequest, false},
		{nethttp.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		err := error(&StatusError{Op: "x", StatusCode: tt.code})
		if got := errors.Is(err, ErrUnauthorized); got != tt.want {
			t.Errorf("status %d: errors.Is = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestNewStatusErrorTruncatesBody(t *testing.T) {
	se := newStatusError("op", 400, []byte(strings.Repeat("x", 2000)))
	if len(se.Body) != maxErrorBody+3 {
		t.Errorf("len(Body) = %d", len(se.Body))
	}
}
