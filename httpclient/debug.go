package httpclient

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// CurlCommand renders a curl command line equivalent to a call.
//
// Resolve overrides are rendered as --resolve flags, so the command hits
// the same backend address the call was pinned to.
//
// Example output:
//
//	curl -X PUT 'https://api.example.com/users/1' \
//	  --resolve 'api.example.com:443:10.0.0.2' \
//	  -H 'Content-Type: application/json' \
//	  -d '{"name":"John"}'
func CurlCommand(url string, opts CallOptions) string {
	parts := []string{"curl"}

	// Method; -d already implies POST
	switch {
	case opts.PostStyle && len(opts.Body) > 0:
	case opts.Method != "" && opts.Method != MethodGet:
		parts = append(parts, "-X", string(opts.Method))
	}

	parts = append(parts, quoteShell(url))

	if opts.FollowRedirects {
		parts = append(parts, "-L", "--max-redirs", fmt.Sprint(opts.MaxRedirects))
	}
	if opts.ConnectTimeout > 0 {
		parts = append(parts, "--connect-timeout", formatSeconds(opts.ConnectTimeout))
	}
	if opts.Timeout > 0 {
		parts = append(parts, "--max-time", formatSeconds(opts.Timeout))
	}

	for _, r := range opts.Resolve {
		if strings.HasPrefix(r, "-") {
			continue
		}
		parts = append(parts, "--resolve", quoteShell(r))
	}

	for _, h := range opts.Headers {
		parts = append(parts, "-H", quoteShell(h))
	}

	if len(opts.Body) > 0 {
		parts = append(parts, "-d", quoteShell(string(opts.Body)))
	}

	return strings.Join(parts, " ")
}

func quoteShell(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%g", d.Seconds())
}

// logCall logs one executed call at debug level.
func logCall(
	logger zerolog.Logger,
	url string,
	opts CallOptions,
	raw *RawResponse,
	err error,
	duration time.Duration,
) {
	event := logger.Debug().
		Str("method", string(opts.Method)).
		Str("url", url).
		Dur("duration_ms", duration).
		Str("curl", CurlCommand(url, opts))

	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			event = event.Int("transport_code", int(te.Code))
		}
		event.Err(err).Msg("HTTP call failed")
		return
	}

	event.
		Int("status", raw.StatusCode).
		Int("size_download", raw.Info.SizeDownload).
		Str("primary_ip", raw.Info.PrimaryIP).
		Bool("conn_reused", raw.Info.ConnReused).
		Msg("HTTP call")
}
