package protected

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"forarchives/internal/components/assert"
	"forarchives/internal/components/chrono"
	"forarchives/internal/components/telemetry"
	"forarchives/internal/scrapers/foolfuuka"
	"forarchives/internal/scrapers/transport"

	"github.com/go-resty/resty/v2"
)

var ErrSessionUnavailable = errors.New("session unavailable")

type requester struct {
	session *SessionManager
	retry   transport.RetryPolicy
}

func (r requester) Get(ctx context.Context, endpoint string, params url.Values) (*resty.Response, error) {
	var generation uint64
	return r.retry.Do(ctx, func(ctx context.Context) (*resty.Response, error) {
		lease, err := r.session.Session(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, transport.Permanent(fmt.Errorf("%w: %w", ErrSessionUnavailable, err))
		}
		generation = lease.Generation
		return lease.Client.R().
			SetContext(ctx).
			SetHeader("accept", "application/json").
			SetCookies(lease.Cookies).
			SetQueryParamsFromValues(params).
			Get(foolfuuka.APIPath + "/" + endpoint)
	}, func(ctx context.Context) error {
		return r.session.Reinit(ctx, generation)
	})
}

// NewAdapter builds a json-api adapter whose requests carry the session
// cookies. A challenge page forces one session reinit and one more attempt.
func NewAdapter(session *SessionManager, retry transport.RetryPolicy, tel telemetry.API) foolfuuka.Adapter {
	assert.NotNil(session)
	retry.Classify = transport.NewClassifier(true, true)
	if retry.Clock == nil {
		retry.Clock = chrono.NewStandardImpl()
	}
	return foolfuuka.New(
		requester{session: session, retry: retry},
		telemetry.NewScopedAPI("protected", tel),
	)
}
