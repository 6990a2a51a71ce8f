package protected

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"forarchives/internal/components/assert"
	"forarchives/internal/components/telemetry"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const report_chrome_bootstrap = "chrome.bootstrap"

type ChromeOptions struct {
	BaseURL   string
	UserAgent string
	Headless  bool
	// ReadySelector is the element that only shows once the verification
	// page has been passed.
	ReadySelector string
	// Wait bounds the whole browser flow.
	Wait time.Duration
	// ExecPath overrides the browser executable.
	ExecPath string
}

// ChromeBootstrapper gets cookies by loading the archive in a real browser
// and waiting for the verification page to go away. A visible browser lets a
// human solve an interactive challenge.
type ChromeBootstrapper struct {
	opts ChromeOptions
	tel  telemetry.API
}

func NewChromeBootstrapper(opts ChromeOptions, tel telemetry.API) ChromeBootstrapper {
	assert.NotEmptyStr(opts.BaseURL)
	if opts.ReadySelector == "" {
		opts.ReadySelector = "#main"
	}
	if opts.Wait <= 0 {
		opts.Wait = 120 * time.Second
	}
	return ChromeBootstrapper{opts: opts, tel: telemetry.OrDiscard(tel)}
}

func (b ChromeBootstrapper) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)
	if b.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.opts.UserAgent))
	}
	if b.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.opts.ExecPath))
	}
	return opts
}

func (b ChromeBootstrapper) Bootstrap(ctx context.Context) ([]*http.Cookie, error) {
	b.tel.ReportDebug(report_chrome_bootstrap, "launching browser", b.opts.BaseURL, b.opts.Headless)

	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, b.allocatorOptions()...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()
	wctx, cancelWait := context.WithTimeout(bctx, b.opts.Wait)
	defer cancelWait()

	var cookies []*network.Cookie
	err := chromedp.Run(wctx,
		chromedp.Navigate(b.opts.BaseURL),
		chromedp.WaitVisible(b.opts.ReadySelector, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("browser bootstrap %s: %w", b.opts.BaseURL, err)
	}
	return convertCookies(cookies), nil
}

func convertCookies(in []*network.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		if c == nil || c.Name == "" {
			continue
		}
		cookie := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if !c.Session && c.Expires > 0 {
			sec, frac := math.Modf(c.Expires)
			cookie.Expires = time.Unix(int64(sec), int64(frac*1e9)).UTC()
		}
		switch c.SameSite {
		case network.CookieSameSiteStrict:
			cookie.SameSite = http.SameSiteStrictMode
		case network.CookieSameSiteLax:
			cookie.SameSite = http.SameSiteLaxMode
		case network.CookieSameSiteNone:
			cookie.SameSite = http.SameSiteNoneMode
		}
		out = append(out, cookie)
	}
	return out
}
