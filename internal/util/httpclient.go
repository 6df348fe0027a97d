package util

import (
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// IsSuccess reports whether the response carries a 2xx status.
func IsSuccess(r *http.Response) bool { return r.StatusCode/100 == 2 }

// BodyHead drains up to n bytes of r's body for error messages and closes it.
func BodyHead(r *http.Response, n int64) string {
	b, _ := io.ReadAll(io.LimitReader(r.Body, n))
	r.Body.Close()
	return strings.TrimSpace(string(b))
}
