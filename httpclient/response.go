package httpclient

import (
	"bytes"
	"strings"
	"time"
)

// RawResponse is what an executor returns for a completed transfer: the
// status line and headers followed by the body, exactly as received, plus
// the transfer diagnostics.
type RawResponse struct {
	StatusCode int
	Data       []byte
	Info       TransferInfo
}

// HeaderBlock returns Data up to Info.HeaderSize. The offset is clamped to
// the data length, so a misreported size yields a wrong split but never
// panics.
func (r *RawResponse) HeaderBlock() []byte {
	return r.Data[:r.headerSize()]
}

// BodyBlock returns Data after Info.HeaderSize.
func (r *RawResponse) BodyBlock() []byte {
	return r.Data[r.headerSize():]
}

func (r *RawResponse) headerSize() int {
	n := r.Info.HeaderSize
	if n < 0 {
		return 0
	}
	if n > len(r.Data) {
		return len(r.Data)
	}
	return n
}

// TransferInfo holds the diagnostics of one transfer. Durations are measured
// from the start of the call.
type TransferInfo struct {
	// URL is the effective URL after redirects.
	URL         string
	StatusCode  int
	ContentType string

	// HeaderSize is the byte offset where the body starts in RawResponse.Data.
	HeaderSize   int
	// RequestSize counts the bytes of the first request line, every header
	// field written (redirects included) and the body, in HTTP/1.1 form.
	RequestSize  int
	SizeDownload int

	RedirectCount int

	PrimaryIP   string
	PrimaryPort int
	LocalIP     string
	LocalPort   int
	ConnReused  bool

	NameLookupTime    time.Duration
	ConnectTime       time.Duration
	AppConnectTime    time.Duration
	PreTransferTime   time.Duration
	StartTransferTime time.Duration
	TotalTime         time.Duration
}

// Map renders the diagnostics with the conventional curl key names. Times
// are in seconds.
func (i TransferInfo) Map() map[string]any {
	return map[string]any{
		"url":                i.URL,
		"http_code":          i.StatusCode,
		"content_type":       i.ContentType,
		"header_size":        i.HeaderSize,
		"request_size":       i.RequestSize,
		"size_download":      i.SizeDownload,
		"redirect_count":     i.RedirectCount,
		"primary_ip":         i.PrimaryIP,
		"primary_port":       i.PrimaryPort,
		"local_ip":           i.LocalIP,
		"local_port":         i.LocalPort,
		"namelookup_time":    i.NameLookupTime.Seconds(),
		"connect_time":       i.ConnectTime.Seconds(),
		"appconnect_time":    i.AppConnectTime.Seconds(),
		"pretransfer_time":   i.PreTransferTime.Seconds(),
		"starttransfer_time": i.StartTransferTime.Seconds(),
		"total_time":         i.TotalTime.Seconds(),
	}
}

// ParsedResponse is a RawResponse split into header lines and body, with the
// body decoded by the client's codec.
type ParsedResponse struct {
	Raw        []byte
	Body       string
	ParsedBody any

	// Headers are the header block lines in wire order, status line first.
	Headers    []string
	StatusCode int
	Info       TransferInfo
}

// ParseResponse splits raw at Info.HeaderSize and decodes the body with
// codec. An empty body decodes to nil. A body the codec rejects yields a
// *DecodeError; raw is never modified.
func ParseResponse(raw *RawResponse, codec Codec) (*ParsedResponse, error) {
	body := raw.BodyBlock()

	parsed := &ParsedResponse{
		Raw:        raw.Data,
		Body:       string(body),
		Headers:    splitHeaderBlock(raw.HeaderBlock()),
		StatusCode: raw.StatusCode,
		Info:       raw.Info,
	}

	if len(body) == 0 {
		return parsed, nil
	}

	v, err := codec.Decode(body)
	if err != nil {
		return nil, &DecodeError{
			StatusCode: raw.StatusCode,
			Raw:        raw.Data,
			Body:       parsed.Body,
			Err:        err,
		}
	}
	parsed.ParsedBody = v

	return parsed, nil
}

// splitHeaderBlock trims block and splits it on CRLF.
func splitHeaderBlock(block []byte) []string {
	trimmed := bytes.TrimSpace(block)
	if len(trimmed) == 0 {
		return nil
	}
	return strings.Split(string(trimmed), "\r\n")
}
