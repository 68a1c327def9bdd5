package ayrshare

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/autobuzz/autobuzz/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	cfg := &config.AyrshareConfig{
		APIKey:     "api-key",
		BaseURL:    ts.URL,
		Domain:     "acme",
		PrivateKey: "pem",
		Timeout:    "5s",
	}
	return NewClient(cfg, zap.NewNop()), ts
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	return body
}

func TestClient_Publish_Success(t *testing.T) {
	var gotAuth, gotProfileKey string
	var gotBody map[string]any

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotProfileKey = r.Header.Get("Profile-Key")
		gotBody = decodeBody(t, r)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","id":"post-123","postIds":[{"platform":"twitter","id":"tw-1","postUrl":"https://x.com/1"}]}`))
	})

	result, err := client.Publish(context.Background(), PublishRequest{
		Content:    "Hello",
		Platform:   "Twitter",
		ProfileKey: "pk-1",
		ImageURL:   "https://cdn.example.com/a.png",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !result.Success || result.PostID != "post-123" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if gotAuth != "Bearer api-key" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}
	if gotProfileKey != "pk-1" {
		t.Fatalf("expected profile key header, got %q", gotProfileKey)
	}
	if gotBody["post"] != "Hello" {
		t.Fatalf("unexpected post body: %v", gotBody["post"])
	}
	platforms, _ := gotBody["platforms"].([]any)
	if len(platforms) != 1 || platforms[0] != "twitter" {
		t.Fatalf("expected normalized platform, got %v", gotBody["platforms"])
	}
	media, _ := gotBody["mediaUrls"].([]any)
	if len(media) != 1 || media[0] != "https://cdn.example.com/a.png" {
		t.Fatalf("expected media url, got %v", gotBody["mediaUrls"])
	}
}

func TestClient_Publish_DropsInsecureMediaURL(t *testing.T) {
	var gotBody map[string]any

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotBody = decodeBody(t, r)
		w.Write([]byte(`{"status":"success"}`))
	})

	if _, err := client.Publish(context.Background(), PublishRequest{
		Content:    "Hello",
		Platform:   "twitter",
		ProfileKey: "pk-1",
		ImageURL:   "http://insecure.example.com/a.png",
	}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if _, present := gotBody["mediaUrls"]; present {
		t.Fatalf("insecure media url must not be sent, got %v", gotBody["mediaUrls"])
	}
}

func TestClient_Publish_200WithoutSuccessMarkerFails(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"error","errors":[{"message":"instagram requires media"},{"message":"text too long"}]}`))
	})

	result, err := client.Publish(context.Background(), PublishRequest{Content: "x", Platform: "instagram", ProfileKey: "pk"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.Success {
		t.Fatal("HTTP 200 without status=success must be a failure")
	}
	if result.Error != "instagram requires media, text too long" {
		t.Fatalf("expected joined error messages, got %q", result.Error)
	}
}

func TestClient_Publish_Non2xxUsesMessageField(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"invalid API key"}`))
	})

	result, err := client.Publish(context.Background(), PublishRequest{Content: "x", Platform: "twitter", ProfileKey: "pk"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.Success || result.Error != "invalid API key" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestClient_Publish_Non2xxMalformedBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html>upstream error</html>`))
	})

	result, err := client.Publish(context.Background(), PublishRequest{Content: "x", Platform: "twitter", ProfileKey: "pk"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.Success || result.Error != "Request failed (502)" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestClient_CreateProfile(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/profiles" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		body := decodeBody(t, r)
		if body["title"] != "AutoBuzz User 12345678" {
			t.Fatalf("unexpected title %v", body["title"])
		}
		w.Write([]byte(`{"status":"success","profileKey":"pk-new"}`))
	})

	key, err := client.CreateProfile(context.Background(), "AutoBuzz User 12345678")
	if err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if key != "pk-new" {
		t.Fatalf("expected pk-new, got %q", key)
	}
}

func TestClient_CreateProfile_ErrorMessageSurfaced(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"status":"error","message":"profile limit reached"}`))
	})

	if _, err := client.CreateProfile(context.Background(), "t"); err == nil {
		t.Fatal("expected error")
	} else if err.Error() != "failed to create profile: profile limit reached" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_GenerateProfileLink_FallsBackToToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/profiles/generateJWT" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"status":"success","token":"jwt-token"}`))
	})

	url, err := client.GenerateProfileLink(context.Background(), "pk", "https://app.example.com/settings/integrations")
	if err != nil {
		t.Fatalf("GenerateProfileLink: %v", err)
	}
	if url != "https://profile.ayrshare.com?domain=acme&jwt=jwt-token" {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestNormalizePlatform(t *testing.T) {
	cases := map[string]string{
		"Twitter":   "twitter",
		"LinkedIn":  "linkedin",
		"Instagram": "instagram",
		"Facebook":  "facebook",
		"facebook":  "facebook",
		"Threads":   "threads",
		" TikTok ":  "tiktok",
	}
	for in, want := range cases {
		if got := NormalizePlatform(in); got != want {
			t.Errorf("NormalizePlatform(%q) = %q, want %q", in, got, want)
		}
	}
}
