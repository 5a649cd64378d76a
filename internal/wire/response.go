package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

type Response struct {
	Status int
	Body   []byte
}

type messageBody struct {
	Message string `json:"message"`
}

// JSON encodes v as the body of a response with the given status.
func JSON(status int, v any) *Response {
	body, err := json.Marshal(v)
	if err != nil {
		return Message(http.StatusInternalServerError, "Internal server error")
	}
	return &Response{Status: status, Body: body}
}

// Message builds the {"message": ...} body used for every error response.
func Message(status int, text string) *Response {
	body, _ := json.Marshal(messageBody{Message: text})
	return &Response{Status: status, Body: body}
}

// WriteTo writes the status line, headers and body. The connection is
// always announced as closing.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	cw := &countingWriter{w: bw}

	reason := http.StatusText(r.Status)
	if reason == "" {
		reason = "Status " + strconv.Itoa(r.Status)
	}

	fmt.Fprintf(cw, "HTTP/1.1 %d %s\r\n", r.Status, reason)
	fmt.Fprintf(cw, "Content-Type: application/json\r\n")
	fmt.Fprintf(cw, "Content-Length: %d\r\n", len(r.Body))
	fmt.Fprintf(cw, "Connection: close\r\n\r\n")
	cw.Write(r.Body)

	if cw.err != nil {
		return cw.n, cw.err
	}
	return cw.n, bw.Flush()
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}
