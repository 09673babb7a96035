package daemon

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/traineemgr/server/capture"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := Defaults()
	cfg.Token = "test-token"
	cfg.DataDir = t.TempDir()
	cfg.TraineeRoot = t.TempDir()
	cfg.ScreenshotDir = filepath.Join(t.TempDir(), "Screenshots")
	cfg.Offline = true
	cfg.Console = false
	cfg.Settle = 10 * time.Millisecond
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing token", func(c *Config) { c.Token = "" }, "token"},
		{"missing trainee root", func(c *Config) { c.TraineeRoot = "" }, "trainee root"},
		{"trainee root not a directory", func(c *Config) { c.TraineeRoot = filepath.Join(c.TraineeRoot, "missing") }, "not a directory"},
		{"missing screenshot dir", func(c *Config) { c.ScreenshotDir = "" }, "screenshot dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestHandler_Routes(t *testing.T) {
	d, err := New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
	}{
		{"health is public", "/health", "", http.StatusOK},
		{"status requires token", "/api/status", "", http.StatusUnauthorized},
		{"mcp requires token", "/mcp", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			d.Handler().ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("got status %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandler_StatusNeedsRunningLoop(t *testing.T) {
	d, err := New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	defer d.Shutdown()

	for path, want := range map[string]int{
		"/api/status": http.StatusOK,
		"/api/images": http.StatusConflict,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer test-token")
		rec := httptest.NewRecorder()
		d.Handler().ServeHTTP(rec, req)

		if rec.Code != want {
			t.Errorf("%s: got status %d, want %d", path, rec.Code, want)
		}
	}
}

// TestDaemon_CapturePipeline drops a file into the screenshot directory and
// expects it in the active session's image folder.
func TestDaemon_CapturePipeline(t *testing.T) {
	cfg := testConfig(t)
	os.MkdirAll(filepath.Join(cfg.TraineeRoot, "Alice-1001"), 0755)

	d, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	defer d.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sess, err := d.Service().StartTraining(ctx, "Alice-1001", "Approach1")
	if err != nil {
		t.Fatalf("StartTraining() error = %v", err)
	}

	if err := os.WriteFile(filepath.Join(cfg.ScreenshotDir, "Screenshot 2024-03-09 140507.png"), []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	imageDir := capture.ImageFolder(sess.Folder)
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		entries, _ := os.ReadDir(imageDir)
		if len(entries) == 1 {
			if _, ok := capture.ParseCanonicalName(entries[0].Name()); !ok {
				t.Errorf("moved file %q is not canonical", entries[0].Name())
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("capture was not moved into the session")
}

func TestDaemon_ServeStopsOnCancel(t *testing.T) {
	d, err := New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
