package crossword

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/dailydrop/crossword/internal/dropbox"
)

type fakeStore struct {
	mu    sync.Mutex
	files map[string][]byte
	auth  []string
}

func (s *fakeStore) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/files/upload" {
			http.NotFound(w, r)
			return
		}
		var arg struct {
			Path string `json:"path"`
			Mode string `json:"mode"`
		}
		if err := json.Unmarshal([]byte(r.Header.Get("Dropbox-API-Arg")), &arg); err != nil {
			t.Errorf("bad Dropbox-API-Arg: %v", err)
			http.Error(w, "bad arg", http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(r.Body)

		s.mu.Lock()
		s.files[arg.Path] = body
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		s.mu.Unlock()

		json.NewEncoder(w).Encode(dropbox.FileMetadata{
			Name:        arg.Path[strings.LastIndex(arg.Path, "/")+1:],
			PathDisplay: arg.Path,
			Size:        int64(len(body)),
			ContentHash: dropbox.ContentHash(body),
		})
	}
}

func TestEndToEnd_RealClients(t *testing.T) {
	// WHAT: Full run through the real publisher and Dropbox clients.
	// WHY: Verifies headers, URL shapes and hash verification together.
	var gotCookie, gotReferer, gotQuery string
	pub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/svc/crosswords/v6/puzzle/daily/2024-03-01.json":
			gotCookie = r.Header.Get("Cookie")
			w.Write([]byte(`{"id": 12345, "publicationDate": "2024-03-01"}`))
		case "/svc/crosswords/v2/puzzle/12345.pdf":
			gotReferer = r.Header.Get("Referer")
			gotQuery = r.URL.RawQuery
			w.Write(fakePDF)
		default:
			http.NotFound(w, r)
		}
	}))
	defer pub.Close()

	store := &fakeStore{files: map[string][]byte{}}
	box := httptest.NewServer(store.handler(t))
	defer box.Close()

	cfg := DefaultConfig()
	cfg.Publisher.BaseURL = pub.URL
	cfg.Publisher.Cookie = "NYT-S=abc"
	cfg.Dropbox.ContentURL = box.URL
	cfg.Dropbox.AccessToken = "tok"
	cfg.UploadRoot = "/Supernote/Document/Crosswords"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	var logs bytes.Buffer
	svc, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(&logs, nil)),
		WithClock(func() time.Time { return time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC) }))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	res, err := svc.RunTomorrow(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, logs.String())
	}

	if gotCookie != "NYT-S=abc" {
		t.Errorf("metadata cookie: %q", gotCookie)
	}
	if gotReferer != cfg.Publisher.Referer || gotQuery != "southpaw=true" {
		t.Errorf("download referer=%q query=%q", gotReferer, gotQuery)
	}

	want := "/Supernote/Document/Crosswords/2024-03-01 (Friday) Crossword.pdf"
	if !bytes.Equal(store.files[want], fakePDF) {
		t.Fatalf("stored files: %v", keys(store.files))
	}
	if store.auth[0] != "Bearer tok" {
		t.Errorf("authorization: %q", store.auth[0])
	}
	if res.Path != want || res.PuzzleID != "12345" || !res.Uploaded {
		t.Errorf("result: %+v", res)
	}
}

func TestEndToEnd_DryRunNeverContactsStorage(t *testing.T) {
	pub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".json") {
			w.Write([]byte(`{"id":"999"}`))
			return
		}
		w.Write(fakePDF)
	}))
	defer pub.Close()

	var hits int
	box := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer box.Close()

	cfg := DefaultConfig()
	cfg.Publisher.BaseURL = pub.URL
	cfg.Publisher.Cookie = "c"
	cfg.Dropbox.ContentURL = box.URL
	cfg.Dropbox.AccessToken = "tok"
	cfg.UploadRoot = "/x"

	svc, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := svc.Run(context.Background(), march1, true); err != nil {
		t.Fatalf("run: %v", err)
	}
	if hits != 0 {
		t.Errorf("storage contacted %d times in dry run", hits)
	}
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestEndToEnd_TruncatedDownloadNotUploaded(t *testing.T) {
	// WHAT: A download that breaks off mid-stream ends the run before upload.
	pub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".json") {
			w.Write([]byte(`{"id":"999"}`))
			return
		}
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
		w.Write(fakePDF)
		w.(http.Flusher).Flush()
		if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
			conn.Close()
		}
	}))
	defer pub.Close()

	store := &fakeStore{files: map[string][]byte{}}
	box := httptest.NewServer(store.handler(t))
	defer box.Close()

	cfg := DefaultConfig()
	cfg.Publisher.BaseURL = pub.URL
	cfg.Publisher.Cookie = "c"
	cfg.Dropbox.ContentURL = box.URL
	cfg.Dropbox.AccessToken = "tok"
	cfg.UploadRoot = "/x"

	svc, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res, err := svc.Run(context.Background(), march1, false)
	if Kind(err) != KindTransport {
		t.Fatalf("kind: got %q (%v)", Kind(err), err)
	}
	if len(store.files) != 0 || res.Uploaded || res.Bytes != 0 {
		t.Errorf("stored=%v result=%+v", keys(store.files), res)
	}
}
