// Package wire reads HTTP/1.x shaped requests off a raw connection and
// writes JSON responses back. One request and one response per connection.
package wire

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/Evgen-Mutagen/moneytransfer/internal/core"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// maxMethodLength bounds the method token; the longest standard one is 7.
const maxMethodLength = 16

type Request struct {
	Method     string
	Path       string
	Proto      string
	Header     textproto.MIMEHeader
	Body       []byte
	RemoteAddr string
}

// HasBody reports whether the request carried a non-empty body.
func (r *Request) HasBody() bool {
	return len(r.Body) > 0
}

type Handler interface {
	Serve(ctx context.Context, req *Request) *Response
}

type HandlerFunc func(ctx context.Context, req *Request) *Response

func (f HandlerFunc) Serve(ctx context.Context, req *Request) *Response {
	return f(ctx, req)
}

func parseError(format string, args ...any) error {
	return core.E(core.KindParse, "Malformed request: "+format, args...)
}

// ReadRequest decodes a single request from br. Any syntax problem is
// reported as a core.KindParse error; I/O failures are returned as is.
func ReadRequest(br *bufio.Reader, maxBody int64) (*Request, error) {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	tp := textproto.NewReader(br)

	line, err := tp.ReadLine()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, parseError("truncated request line")
		}
		return nil, err
	}

	method, target, proto, ok := splitRequestLine(line)
	if !ok {
		return nil, parseError("bad request line %q", line)
	}
	if !validMethod(method) {
		return nil, parseError("bad method %q", method)
	}
	if !strings.HasPrefix(proto, "HTTP/1.") {
		return nil, parseError("unsupported protocol %q", proto)
	}
	if !strings.HasPrefix(target, "/") {
		return nil, parseError("bad request target %q", target)
	}

	header, err := tp.ReadMIMEHeader()
	if err != nil {
		var perr textproto.ProtocolError
		if errors.As(err, &perr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, parseError("bad header block")
		}
		return nil, err
	}

	req := &Request{
		Method: method,
		Path:   stripQuery(target),
		Proto:  proto,
		Header: header,
	}

	if te := header.Get("Transfer-Encoding"); te != "" && !strings.EqualFold(te, "identity") {
		return nil, parseError("unsupported transfer encoding %q", te)
	}

	length, err := contentLength(header)
	if err != nil {
		return nil, err
	}
	if length > maxBody {
		return nil, parseError("body of %d bytes exceeds limit", length)
	}
	if length > 0 {
		req.Body = make([]byte, length)
		if _, err := io.ReadFull(br, req.Body); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, parseError("truncated body")
			}
			return nil, err
		}
	}

	return req, nil
}

func splitRequestLine(line string) (method, target, proto string, ok bool) {
	method, rest, ok1 := strings.Cut(line, " ")
	target, proto, ok2 := strings.Cut(rest, " ")
	if !ok1 || !ok2 || method == "" || target == "" || strings.Contains(proto, " ") {
		return "", "", "", false
	}
	return method, target, proto, true
}

func validMethod(method string) bool {
	if len(method) > maxMethodLength {
		return false
	}
	for _, r := range method {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return method != ""
}

func stripQuery(target string) string {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		return target[:i]
	}
	return target
}

func contentLength(header textproto.MIMEHeader) (int64, error) {
	values := header.Values("Content-Length")
	if len(values) == 0 {
		return 0, nil
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return 0, parseError("conflicting Content-Length values")
		}
	}

	n, err := strconv.ParseInt(strings.TrimSpace(values[0]), 10, 64)
	if err != nil || n < 0 {
		return 0, parseError("bad Content-Length %q", values[0])
	}
	return n, nil
}

// String is used in debug logs only.
func (r *Request) String() string {
	return fmt.Sprintf("%s %s (%d bytes)", r.Method, r.Path, len(r.Body))
}
