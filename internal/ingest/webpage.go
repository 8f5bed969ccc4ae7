package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// PageSnapshot is what a URL payload yields: enough page context to seed a
// conversation without keeping a browser around.
type PageSnapshot struct {
	URL   string
	Title string
	Text  string
}

// textLimit caps the captured page text; conversations need context, not
// the whole document.
const textLimit = 4000

// WebFetcher captures page snapshots through a headless browser. Lazy: no
// browser process is started until the first Snapshot call.
type WebFetcher struct {
	mu      sync.Mutex
	browser *rod.Browser
}

// NewWebFetcher creates an idle fetcher.
func NewWebFetcher() *WebFetcher {
	return &WebFetcher{}
}

// Snapshot navigates to the URL and captures title and visible text.
func (f *WebFetcher) Snapshot(ctx context.Context, url string) (*PageSnapshot, error) {
	browser, err := f.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(30 * time.Second)

	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load %s: %w", url, err)
	}

	info, err := page.Info()
	if err != nil {
		return nil, fmt.Errorf("page info: %w", err)
	}

	body, err := page.Element("body")
	if err != nil {
		return nil, fmt.Errorf("page body: %w", err)
	}
	text, err := body.Text()
	if err != nil {
		return nil, fmt.Errorf("page text: %w", err)
	}

	if len(text) > textLimit {
		text = text[:textLimit]
	}

	return &PageSnapshot{URL: url, Title: info.Title, Text: text}, nil
}

// Close shuts the browser down if one was started.
func (f *WebFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.browser = nil
	return err
}

func (f *WebFetcher) ensureBrowser() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	path, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(path)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	f.browser = browser
	return browser, nil
}
