package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/timmy/thumbcraft/internal/config"
	"github.com/timmy/thumbcraft/internal/logger"
	"github.com/timmy/thumbcraft/internal/repository"
	"github.com/timmy/thumbcraft/internal/service"
	"github.com/timmy/thumbcraft/internal/storage"
)

const maxBytes = 10 * 1024 * 1024

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type testServer struct {
	t              *testing.T
	handler        http.Handler
	providerStatus atomic.Int32
	lastRequest    atomic.Value // []byte
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{t: t}
	ts.providerStatus.Store(http.StatusOK)

	generated := base64.StdEncoding.EncodeToString(pngBytes(t, 32, 18))
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ts.lastRequest.Store(body)
		status := int(ts.providerStatus.Load())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded"}}`))
			return
		}
		fmt.Fprintf(w, `{"choices":[{"message":{"content":[{"type":"image","data":%q}]}}]}`, generated)
	}))
	t.Cleanup(provider.Close)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Mode:       "test",
			UserHeader: "X-User-ID",
			CORS:       config.CORSConfig{AllowAllOrigins: true},
		},
		Provider:   config.ProviderConfig{Model: "test-model", APIKey: "k", BaseURL: provider.URL, Timeout: 5 * time.Second},
		Upload:     config.UploadConfig{MaxBytes: maxBytes, MaxAttempts: 3, BaseDelay: time.Millisecond},
		Generation: config.GenerationConfig{Timeout: 10 * time.Second, FetchTimeout: 2 * time.Second},
		Library:    config.LibraryConfig{MinAvatarPhotos: 3, MaxAvatarPhotos: 10},
	}

	store := repository.NewMemoryStore()
	objects := storage.NewMemoryStorage("/api/v1/files")
	fetcher := service.NewImageFetcher(cfg.Generation.FetchTimeout, 0, maxBytes).WithStorage(objects)
	uploader := service.NewStorageUploader(objects, fetcher, service.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, maxBytes)

	svc := Services{
		Thumbnails: service.NewThumbnailService(service.ThumbnailServiceConfig{
			Resolver:   service.NewAssetResolver(store, store),
			Generator:  service.NewGenerationClient(&cfg.Provider, fetcher),
			Uploader:   uploader,
			History:    service.NewHistoryRecorder(store),
			Thumbnails: store,
			Timeout:    cfg.Generation.Timeout,
		}),
		Avatars:    service.NewAvatarService(store, uploader, 3, 10),
		References: service.NewReferenceService(store, uploader),
		Storage:    objects,
	}

	log := logger.New(&logger.Config{Level: "error", Format: "json", Output: &bytes.Buffer{}})
	ts.handler = SetupRouter(cfg, svc, log)
	return ts
}

func (ts *testServer) do(method, path, user string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) doJSON(method, path, user string, payload interface{}) *httptest.ResponseRecorder {
	b, err := json.Marshal(payload)
	if err != nil {
		ts.t.Fatal(err)
	}
	return ts.do(method, path, user, bytes.NewBuffer(b), "application/json")
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, w.Body.String())
	}
	return out
}

// createAvatar uploads n photos and returns the avatar id.
func (ts *testServer) createAvatar(user string, n int) string {
	t := ts.t
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("name", "Studio")
	for i := 0; i < n; i++ {
		fw, err := mw.CreateFormFile("photos", fmt.Sprintf("face-%d.png", i))
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(pngBytes(t, 8+i, 8))
	}
	_ = mw.Close()

	w := ts.do(http.MethodPost, "/api/v1/avatars", user, &body, mw.FormDataContentType())
	if w.Code != http.StatusCreated {
		t.Fatalf("create avatar: %d %s", w.Code, w.Body.String())
	}
	return decode(t, w)["avatar"].(map[string]interface{})["id"].(string)
}

func TestRequiresUserIdentity(t *testing.T) {
	ts := newTestServer(t)

	w := ts.doJSON(http.MethodPost, "/api/v1/thumbnails/generate", "", map[string]interface{}{"avatarId": "a", "textIdea": "x"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decode(t, w); body["success"] != false || body["error"] == "" {
		t.Errorf("body = %v", body)
	}

	for _, user := range []string{"../avatars/victim", "a/b", "..", strings.Repeat("u", 129)} {
		if w := ts.do(http.MethodGet, "/api/v1/avatars", user, nil, ""); w.Code != http.StatusUnauthorized {
			t.Errorf("user %q: status = %d, want 401", user, w.Code)
		}
	}
	if w := ts.do(http.MethodGet, "/api/v1/avatars", "ana@example.com", nil, ""); w.Code != http.StatusOK {
		t.Errorf("valid user: status = %d", w.Code)
	}

	if w := ts.do(http.MethodGet, "/health", "", nil, ""); w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
}

func TestGenerateEndToEnd(t *testing.T) {
	ts := newTestServer(t)
	avatarID := ts.createAvatar("u1", 3)

	w := ts.doJSON(http.MethodPost, "/api/v1/thumbnails/generate", "u1", map[string]interface{}{
		"avatarId":   avatarID,
		"references": []string{},
		"textIdea":   "AI SECRET REVEALED",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	url, _ := body["thumbnailUrl"].(string)
	if body["success"] != true || !strings.HasPrefix(url, "/api/v1/files/thumbnails/u1/") || body["historyRecorded"] != true {
		t.Fatalf("body = %v", body)
	}

	// The avatar photo lives behind a relative URL, so it must be read from
	// storage and sent inline.
	sent, _ := ts.lastRequest.Load().([]byte)
	var chat struct {
		Messages []struct {
			Content []struct {
				Type     string `json:"type"`
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(sent, &chat); err != nil || len(chat.Messages) != 1 {
		t.Fatalf("provider request = %s (%v)", sent, err)
	}
	content := chat.Messages[0].Content
	if len(content) != 2 || !strings.HasPrefix(content[1].ImageURL.URL, "data:image/png;base64,") {
		t.Fatalf("avatar not inlined: %s", sent)
	}

	img := ts.do(http.MethodGet, url, "", nil, "")
	if img.Code != http.StatusOK || img.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("file status = %d, type = %q", img.Code, img.Header().Get("Content-Type"))
	}

	list := decode(t, ts.do(http.MethodGet, "/api/v1/thumbnails", "u1", nil, ""))
	thumbs := list["thumbnails"].([]interface{})
	if list["total"].(float64) != 1 || len(thumbs) != 1 {
		t.Fatalf("history = %v", list)
	}
	record := thumbs[0].(map[string]interface{})
	if refs, ok := record["references"].([]interface{}); !ok || len(refs) != 0 {
		t.Errorf("references = %v", record["references"])
	}
	id := record["id"].(string)

	if w := ts.do(http.MethodGet, "/api/v1/thumbnails/"+id, "u2", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("foreign get status = %d", w.Code)
	}
	if w := ts.do(http.MethodDelete, "/api/v1/thumbnails/"+id, "u1", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := ts.do(http.MethodGet, url, "", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("file after delete status = %d", w.Code)
	}
	if w := ts.do(http.MethodGet, "/api/v1/avatars/"+avatarID, "u1", nil, ""); w.Code != http.StatusOK {
		t.Errorf("avatar after history delete status = %d", w.Code)
	}
}

func TestGenerateErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	avatarID := ts.createAvatar("u1", 3)

	tests := []struct {
		name        string
		payload     map[string]interface{}
		provider    int
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:       "text too long",
			payload:    map[string]interface{}{"avatarId": avatarID, "textIdea": strings.Repeat("a", 51)},
			wantStatus: http.StatusBadRequest,
			wantCode:   service.CodeTextTooLong,
		},
		{
			name:       "missing avatar",
			payload:    map[string]interface{}{"textIdea": "idea"},
			wantStatus: http.StatusBadRequest,
			wantCode:   service.CodeMissingAvatar,
		},
		{
			name:       "unknown avatar",
			payload:    map[string]interface{}{"avatarId": "nope", "textIdea": "idea"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:        "provider failure",
			payload:     map[string]interface{}{"avatarId": avatarID, "textIdea": "idea"},
			provider:    http.StatusInternalServerError,
			wantStatus:  http.StatusBadGateway,
			wantMessage: service.GenerationFailedMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := tt.provider
			if status == 0 {
				status = http.StatusOK
			}
			ts.providerStatus.Store(int32(status))

			w := ts.doJSON(http.MethodPost, "/api/v1/thumbnails/generate", "u1", tt.payload)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			body := decode(t, w)
			if body["success"] != false {
				t.Errorf("success = %v", body["success"])
			}
			if tt.wantCode != "" && body["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", body["code"], tt.wantCode)
			}
			if tt.wantMessage != "" && body["error"] != tt.wantMessage {
				t.Errorf("error = %v, want %s", body["error"], tt.wantMessage)
			}
		})
	}
}

func TestReferenceEndpoints(t *testing.T) {
	ts := newTestServer(t)

	upload := func(category string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		_ = mw.WriteField("category", category)
		fw, _ := mw.CreateFormFile("file", "ref.png")
		_, _ = fw.Write(pngBytes(t, 4, 4))
		_ = mw.Close()
		return ts.do(http.MethodPost, "/api/v1/references", "u1", &body, mw.FormDataContentType())
	}

	if w := upload("logo"); w.Code != http.StatusCreated {
		t.Fatalf("create logo: %d %s", w.Code, w.Body.String())
	}
	if w := upload("icon"); w.Code != http.StatusCreated {
		t.Fatalf("create icon: %d", w.Code)
	}
	if w := upload("banner"); w.Code != http.StatusBadRequest {
		t.Errorf("bad category status = %d", w.Code)
	}

	logos := decode(t, ts.do(http.MethodGet, "/api/v1/references?category=logo", "u1", nil, ""))
	if logos["total"].(float64) != 1 {
		t.Errorf("logos = %v", logos)
	}
	other := decode(t, ts.do(http.MethodGet, "/api/v1/references", "u2", nil, ""))
	if other["total"].(float64) != 0 {
		t.Errorf("other user sees %v", other["total"])
	}
}

func TestAvatarEndpoints(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("name", "Too few")
	fw, _ := mw.CreateFormFile("photos", "one.png")
	_, _ = fw.Write(pngBytes(t, 4, 4))
	_ = mw.Close()
	if w := ts.do(http.MethodPost, "/api/v1/avatars", "u1", &body, mw.FormDataContentType()); w.Code != http.StatusBadRequest {
		t.Errorf("too few photos status = %d", w.Code)
	}

	id := ts.createAvatar("u1", 3)
	if w := ts.doJSON(http.MethodPatch, "/api/v1/avatars/"+id, "u1", map[string]string{"name": "Renamed"}); w.Code != http.StatusOK {
		t.Errorf("rename status = %d", w.Code)
	}
	if w := ts.do(http.MethodGet, "/api/v1/avatars/"+id, "u2", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("foreign get status = %d", w.Code)
	}

	list := decode(t, ts.do(http.MethodGet, "/api/v1/avatars", "u1", nil, ""))
	if list["total"].(float64) != 1 {
		t.Fatalf("avatars = %v", list)
	}
	if w := ts.do(http.MethodDelete, "/api/v1/avatars/"+id, "u1", nil, ""); w.Code != http.StatusOK {
		t.Errorf("delete status = %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/thumbnails/generate", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "X-User-ID") {
		t.Errorf("allowed headers = %q", w.Header().Get("Access-Control-Allow-Headers"))
	}
}
