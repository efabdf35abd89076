package serve

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap/zaptest"

	"nsg/config"
	"nsg/state"
)

func TestRouter_ServesSite(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>home</html>"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "first-post.html"), []byte("<html>post</html>"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	srv := httptest.NewServer(newRouter(dir, zaptest.NewLogger(t)))
	t.Cleanup(srv.Close)

	testCases := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{name: "root_serves_index", path: "/", status: http.StatusOK, body: "<html>home</html>"},
		{name: "page", path: "/first-post.html", status: http.StatusOK, body: "<html>post</html>"},
		{name: "missing", path: "/nope.html", status: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := srv.Client().Get(srv.URL + tc.path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.status {
				t.Errorf("status %d, want %d", resp.StatusCode, tc.status)
			}
			if tc.body == "" {
				return
			}
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("reading body: %v", err)
			}
			if string(body) != tc.body {
				t.Errorf("body %q, want %q", body, tc.body)
			}
		})
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = zaptest.NewLogger(t)
	env.Cfg = &config.Config{}
	env.Cfg.Site.OutputDir = t.TempDir()
	env.Cfg.Serve.Address = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(ctx)

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, &cli.Command{})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
