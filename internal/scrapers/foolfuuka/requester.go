package foolfuuka

import (
	"context"
	"net/url"

	"forarchives/internal/components/chrono"
	"forarchives/internal/components/telemetry"
	"forarchives/internal/scrapers/transport"

	"github.com/go-resty/resty/v2"
)

// APIPath is the prefix of every FoolFuuka api endpoint.
const APIPath = "/_/api/chan"

// Requester issues a GET against the archive api and returns the response
// once it was classified as usable. Every error wraps one of the transport
// sentinels or is a context error.
type Requester interface {
	Get(ctx context.Context, endpoint string, params url.Values) (*resty.Response, error)
}

type directRequester struct {
	http  *resty.Client
	retry transport.RetryPolicy
}

func (r directRequester) Get(ctx context.Context, endpoint string, params url.Values) (*resty.Response, error) {
	return r.retry.Do(ctx, func(ctx context.Context) (*resty.Response, error) {
		return r.http.R().
			SetContext(ctx).
			SetHeader("accept", "application/json").
			SetQueryParamsFromValues(params).
			Get(APIPath + "/" + endpoint)
	}, nil)
}

// NewDirect builds an adapter for a json-api archive that needs no session.
func NewDirect(opts transport.Options, retry transport.RetryPolicy, tel telemetry.API) (Adapter, error) {
	tel = telemetry.NewScopedAPI("foolfuuka", tel)

	client, err := transport.NewClient(opts, tel)
	if err != nil {
		return Adapter{}, err
	}
	if retry.Classify == nil {
		retry.Classify = transport.NewClassifier(true, false)
	}
	if retry.Clock == nil {
		retry.Clock = chrono.NewStandardImpl()
	}
	return New(directRequester{http: client, retry: retry}, tel), nil
}
