package ohttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/quic-go/quic-go/quicvarint"
)

// Binary HTTP framing indicators for known-length messages.
const (
	framingKnownLengthRequest  = 0
	framingKnownLengthResponse = 1
)

// Hop-by-hop fields are meaningless inside an encapsulated message.
var hopByHop = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-connection":    true,
	"transfer-encoding":   true,
	"upgrade":             true,
	"te":                  true,
	"trailer":             true,
	"host":                true,
	"proxy-authorization": true,
}

func appendBytes(b []byte, v []byte) []byte {
	b = quicvarint.Append(b, uint64(len(v)))
	return append(b, v...)
}

func appendString(b []byte, s string) []byte {
	b = quicvarint.Append(b, uint64(len(s)))
	return append(b, s...)
}

func appendFields(b []byte, h http.Header) []byte {
	var section []byte
	for name, values := range h {
		lower := strings.ToLower(name)
		if hopByHop[lower] {
			continue
		}
		for _, v := range values {
			section = appendString(section, lower)
			section = appendString(section, v)
		}
	}
	return appendBytes(b, section)
}

// encodeRequest serializes req as a known-length Binary HTTP request. The
// request body is consumed.
func encodeRequest(req *http.Request) ([]byte, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("ohttp: reading request body: %w", err)
		}
	}

	scheme := req.URL.Scheme
	if scheme == "" {
		scheme = "https"
	}
	authority := req.URL.Host
	if authority == "" {
		authority = req.Host
	}

	b := quicvarint.Append(nil, framingKnownLengthRequest)
	b = appendString(b, req.Method)
	b = appendString(b, scheme)
	b = appendString(b, authority)
	b = appendString(b, req.URL.RequestURI())
	b = appendFields(b, req.Header)
	b = appendBytes(b, body)
	b = appendBytes(b, nil) // trailers
	return b, nil
}

// encodeResponse serializes a final response as known-length Binary HTTP.
func encodeResponse(status int, header http.Header, body []byte) []byte {
	b := quicvarint.Append(nil, framingKnownLengthResponse)
	b = quicvarint.Append(b, uint64(status))
	b = appendFields(b, header)
	b = appendBytes(b, body)
	b = appendBytes(b, nil)
	return b
}

type bhttpReader struct {
	r *bytes.Reader
}

// section reads a length-prefixed byte string. A message truncated at a
// section boundary yields an empty section.
func (br bhttpReader) section() ([]byte, error) {
	if br.r.Len() == 0 {
		return nil, nil
	}
	n, err := quicvarint.Read(br.r)
	if err != nil {
		return nil, fmt.Errorf("ohttp: reading length: %w", err)
	}
	if n > uint64(br.r.Len()) {
		return nil, errors.New("ohttp: length exceeds message")
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(br.r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (br bhttpReader) fields() (http.Header, error) {
	raw, err := br.section()
	if err != nil {
		return nil, err
	}
	h := make(http.Header)
	fr := bhttpReader{r: bytes.NewReader(raw)}
	for fr.r.Len() > 0 {
		name, err := fr.section()
		if err != nil {
			return nil, err
		}
		value, err := fr.section()
		if err != nil {
			return nil, err
		}
		h.Add(string(name), string(value))
	}
	return h, nil
}

// decodeRequest parses a known-length Binary HTTP request.
func decodeRequest(ctx context.Context, data []byte) (*http.Request, error) {
	br := bhttpReader{r: bytes.NewReader(data)}
	framing, err := quicvarint.Read(br.r)
	if err != nil {
		return nil, fmt.Errorf("ohttp: reading framing indicator: %w", err)
	}
	if framing != framingKnownLengthRequest {
		return nil, fmt.Errorf("ohttp: unsupported request framing %d", framing)
	}

	control := make([]string, 4)
	for i := range control {
		v, err := br.section()
		if err != nil {
			return nil, err
		}
		control[i] = string(v)
	}
	method, scheme, authority, path := control[0], control[1], control[2], control[3]
	if method == "" {
		return nil, errors.New("ohttp: request without method")
	}
	if scheme == "" {
		scheme = "https"
	}
	if path == "" {
		path = "/"
	}

	header, err := br.fields()
	if err != nil {
		return nil, err
	}
	body, err := br.section()
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(scheme + "://" + authority + path)
	if err != nil {
		return nil, fmt.Errorf("ohttp: invalid target: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = header
	req.Host = authority
	req.RequestURI = path
	return req, nil
}

// decodeResponse parses a known-length Binary HTTP response, skipping any
// informational responses.
func decodeResponse(data []byte) (*http.Response, error) {
	br := bhttpReader{r: bytes.NewReader(data)}
	framing, err := quicvarint.Read(br.r)
	if err != nil {
		return nil, fmt.Errorf("ohttp: reading framing indicator: %w", err)
	}
	if framing != framingKnownLengthResponse {
		return nil, fmt.Errorf("ohttp: unsupported response framing %d", framing)
	}

	var status uint64
	for {
		status, err = quicvarint.Read(br.r)
		if err != nil {
			return nil, fmt.Errorf("ohttp: reading status: %w", err)
		}
		if status < 100 || status > 599 {
			return nil, fmt.Errorf("ohttp: invalid status %d", status)
		}
		if status >= 200 {
			break
		}
		if _, err := br.fields(); err != nil {
			return nil, err
		}
	}

	header, err := br.fields()
	if err != nil {
		return nil, err
	}
	body, err := br.section()
	if err != nil {
		return nil, err
	}

	code := int(status)
	return &http.Response{
		Status:        strconv.Itoa(code) + " " + http.StatusText(code),
		StatusCode:    code,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}, nil
}
