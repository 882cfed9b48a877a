package testutils

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// MockDialer hands out one end of a net.Pipe per dial and runs the scripted
// server side on the other. The script receives the 1-based attempt number;
// when it returns, the server end is closed (the client observes a close).
type MockDialer struct {
	Mu        sync.Mutex
	DialCount int
	DialTimes []time.Time
	DialURLs  []string
	DialErr   error
	Script    func(attempt int, urlstr string, server net.Conn)
}

func (d *MockDialer) Dial(ctx context.Context, urlstr string) (net.Conn, error) {
	d.Mu.Lock()
	d.DialCount++
	attempt := d.DialCount
	d.DialTimes = append(d.DialTimes, time.Now())
	d.DialURLs = append(d.DialURLs, urlstr)
	script := d.Script
	err := d.DialErr
	d.Mu.Unlock()

	if err != nil {
		return nil, err
	}

	client, server := net.Pipe()
	go func() {
		if script != nil {
			script(attempt, urlstr, server)
		}
		server.Close()
	}()

	// Close the client end on cancellation so reads unblock.
	go func() {
		<-ctx.Done()
		client.Close()
	}()

	return client, nil
}

func (d *MockDialer) Dials() int {
	d.Mu.Lock()
	defer d.Mu.Unlock()
	return d.DialCount
}

func (d *MockDialer) URLs() []string {
	d.Mu.Lock()
	defer d.Mu.Unlock()
	out := make([]string, len(d.DialURLs))
	copy(out, d.DialURLs)
	return out
}

// MockHTTPClient serves canned responses keyed by URL path.
type MockHTTPClient struct {
	Mu       sync.Mutex
	Requests []*http.Request
	// Handler produces the response for a request. Nil responses with nil
	// errors yield a 500.
	Handler func(req *http.Request) (*http.Response, error)
}

func (c *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.Mu.Lock()
	c.Requests = append(c.Requests, req)
	handler := c.Handler
	c.Mu.Unlock()

	if handler == nil {
		return JSONResponse(http.StatusInternalServerError, `{}`), nil
	}
	resp, err := handler(req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return JSONResponse(http.StatusInternalServerError, `{}`), nil
	}
	return resp, nil
}

// JSONResponse builds an *http.Response with the given status and body.
func JSONResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}
