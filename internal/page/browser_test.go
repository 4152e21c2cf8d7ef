package page

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ziadkadry99/chartembed/internal/embed"
)

func maybeSkipBrowserTest(t *testing.T) {
	// Browser behaviour does not depend on the platform, so one is enough.
	if runtime.GOOS != "linux" || runtime.GOARCH != "amd64" {
		t.Skip("This test only works on x86-64 Linux")
	}
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}

	if _, err := exec.LookPath("google-chrome"); err == nil {
		return
	}
	if _, err := exec.LookPath("chrome"); err == nil {
		return
	}
	t.Skip("chrome not available")
}

// browserDeadline is long to reduce flakiness in CI workflows.
const browserDeadline = time.Second * 90

// buildEmbedPanel compiles the browser controller into a temporary
// directory together with the Go wasm support script.
func buildEmbedPanel(t *testing.T) string {
	t.Helper()

	goTool, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go tool not available")
	}
	dir := t.TempDir()

	cmd := exec.Command(goTool, "build", "-o", filepath.Join(dir, "embedpanel.wasm"), "../../web/embedpanel")
	cmd.Env = append(os.Environ(), "GOOS=js", "GOARCH=wasm")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("building embedpanel.wasm: %v\n%s", err, out)
	}

	out, err := exec.Command(goTool, "env", "GOROOT").Output()
	if err != nil {
		t.Fatalf("go env GOROOT: %v", err)
	}
	goroot := strings.TrimSpace(string(out))
	for _, p := range []string{"lib/wasm/wasm_exec.js", "misc/wasm/wasm_exec.js"} {
		script, err := os.ReadFile(filepath.Join(goroot, p))
		if err != nil {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, "wasm_exec.js"), script, 0o644); err != nil {
			t.Fatal(err)
		}
		return dir
	}
	t.Skip("wasm_exec.js not found under " + goroot)
	return ""
}

func TestEmbedPanelInBrowser(t *testing.T) {
	maybeSkipBrowserTest(t)

	r, _ := setupTest(t, Options{WasmDir: buildEmbedPanel(t)})
	server := httptest.NewServer(r)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), browserDeadline)
	defer cancel()
	ctx, cancel = chromedp.NewContext(ctx)
	defer cancel()

	const income = "https://bi.example.org/explore/?slice_id=1&standalone=1"

	err := chromedp.Run(ctx,
		chromedp.Navigate(server.URL+"/dataverse-superset?fileUrl="+testFileURL),
		chromedp.WaitVisible(`#embedChartButton`, chromedp.ByID),
		waitReady(),

		// Shown, then hidden again.
		chromedp.Click(`#embedChartButton`, chromedp.ByID),
		matchJS(t, `document.getElementById("embedChart").style.display`, embed.DisplayVisible),
		matchJS(t, `document.getElementById("embedChartButton").textContent`, embed.LabelHide),
		chromedp.Click(`#embedChartButton`, chromedp.ByID),
		matchJS(t, `document.getElementById("embedChart").style.display`, embed.DisplayHidden),
		matchJS(t, `document.getElementById("embedChartButton").textContent`, embed.LabelShow),

		// Picking another chart updates the frame and the snippet.
		chromedp.SetValue(`#chartSelector`, income, chromedp.ByID),
		chromedp.Evaluate(`document.getElementById("chartSelector").dispatchEvent(new Event("change"))`, nil),
		matchJS(t, `document.getElementById("chartIFrame").getAttribute("src")`, income),
		matchJS(t, `document.getElementById("embedChart").textContent`, embed.Markup(income)),
	)
	if err != nil {
		t.Fatal(err)
	}
}

// waitReady is a chromedp.Action that blocks until the wasm controller has
// registered its page functions.
func waitReady() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		for {
			var ready bool
			if err := chromedp.Evaluate(`window.embedPanelReady === true`, &ready).Do(ctx); err != nil {
				return err
			}
			if ready {
				return nil
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("waiting for embed panel: %w", ctx.Err())
			case <-time.After(100 * time.Millisecond):
			}
		}
	}
}

// matchJS is a chromedp.Action that evaluates expr and checks that it
// yields want.
func matchJS(t *testing.T, expr, want string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		var got string
		if err := chromedp.Evaluate(expr, &got).Do(ctx); err != nil {
			return fmt.Errorf("evaluating %s: %v", expr, err)
		}
		t.Logf("%s = %q", expr, got)
		if got != want {
			return fmt.Errorf("%s = %q, want %q", expr, got, want)
		}
		return nil
	}
}
