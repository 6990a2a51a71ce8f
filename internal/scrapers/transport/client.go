// Package transport holds the HTTP plumbing shared by every archive adapter:
// client construction, response classification and the retry policy.
package transport

import (
	"net/url"
	"time"

	"forarchives/internal/components/assert"
	"forarchives/internal/components/telemetry"
	"forarchives/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// RequestsPerSecond caps the request rate of the client, 0 means unlimited.
	RequestsPerSecond float64
	// CloudflareBypass wraps the transport with TLS/header fingerprint spoofing.
	CloudflareBypass bool
	// Dump receives every exchange of the client, named after the host.
	Dump restyutil.Output
}

func NewClient(opts Options, tel telemetry.API) (*resty.Client, error) {
	tel = telemetry.OrDiscard(tel)
	assert.NotEmptyStr(opts.BaseURL)

	parsedBaseUrl, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(parsedBaseUrl.String())
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	if opts.UserAgent != "" {
		httpClient.SetHeader("user-agent", opts.UserAgent)
	}
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsedBaseUrl.Hostname()))
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}

	if opts.RequestsPerSecond > 0 {
		// burst >= 1 just means that no requests will be dropped
		burst := max(int(opts.RequestsPerSecond), 1)
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel)
	restyutil.DumpExchanges(httpClient, parsedBaseUrl.Hostname(), opts.Dump)

	return httpClient, nil
}
