package dashboard

import (
	"io/fs"
	"strings"
	"testing"
)

func readIndex(t *testing.T) string {
	t.Helper()
	content, err := fs.ReadFile(Assets, "assets/index.html")
	if err != nil {
		t.Fatalf("failed to read embedded index.html: %v", err)
	}
	return string(content)
}

func TestAssets_IndexEmbedded(t *testing.T) {
	page := readIndex(t)
	if !strings.Contains(page, "{{.Title}}") {
		t.Error("index.html missing the title placeholder")
	}
	if !strings.Contains(page, "/api/sse") {
		t.Error("index.html does not consume the SSE endpoint")
	}
}

// TestAssets_ViewportsUseProxy verifies the viewport iframes load streams
// through the embed-safe proxy rather than the raw stream URL. A direct
// embed would be blocked by backends that send X-Frame-Options or a
// frame-ancestors CSP.
func TestAssets_ViewportsUseProxy(t *testing.T) {
	page := readIndex(t)

	if !strings.Contains(page, "/viewer/") {
		t.Fatal("index.html never references the /viewer/ proxy path")
	}
	if !strings.Contains(page, "viewerSrc(agent, s.url)") {
		t.Error("viewport iframe src does not go through viewerSrc")
	}
	if strings.Contains(page, `iframe src="${esc(s.url)}"`) {
		t.Error("viewport iframe embeds the raw stream URL directly")
	}

	// the viewport must report back so the session state machine advances
	for _, signal := range []string{"'load'", "'error'"} {
		if !strings.Contains(page, signal) {
			t.Errorf("index.html never sends the %s viewport signal", signal)
		}
	}
}
