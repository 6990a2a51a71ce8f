package restyutil

import (
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/go-resty/resty/v2"
)

func writeHeaders(out *strings.Builder, marker string, headers http.Header) {
	for _, key := range slices.Sorted(maps.Keys(headers)) {
		for _, value := range headers[key] {
			fmt.Fprintf(out, "%s%s: %s\n", marker, key, value)
		}
	}
}

func requestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return "(unreadable body: " + err.Error() + ")"
	}
	defer body.Close()
	contents, err := io.ReadAll(body)
	if err != nil {
		return "(unreadable body: " + err.Error() + ")"
	}
	return string(contents)
}

// finalURL is the url of the last request after redirects.
func finalURL(res *resty.Response) string {
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		return res.RawResponse.Request.URL.String()
	}
	return res.Request.URL
}

// formatExchange renders a request and its response, curl -v style.
func formatExchange(res *resty.Response) string {
	var out strings.Builder
	req := res.Request

	fmt.Fprintf(&out, "> %s %s\n", req.Method, req.URL)
	if req.RawRequest != nil {
		writeHeaders(&out, "> ", req.RawRequest.Header)
	}
	if body := requestBody(req.RawRequest); body != "" {
		out.WriteString("\n" + body + "\n")
	}

	fmt.Fprintf(&out, "\n< %s %s (%s)\n", res.Status(), finalURL(res), res.Time())
	writeHeaders(&out, "< ", res.Header())
	out.WriteString("\n")
	out.Write(res.Body())
	return out.String()
}
