// Package restyutil dumps the http exchanges of resty clients for debugging
// scrapers against live archives.
package restyutil

import (
	"fmt"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type Output interface {
	Write(id string, contents string)
}

// DumpExchanges writes the request and response of every completed exchange
// of client to output, under ids "<prefix>-<n>.txt". A nil output is a no-op.
func DumpExchanges(client *resty.Client, prefix string, output Output) {
	if output == nil {
		return
	}

	var counter atomic.Uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := fmt.Sprintf("%s-%d.txt", prefix, counter.Add(1))
		output.Write(id, formatExchange(res))
		return nil
	})
}
