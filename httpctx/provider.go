package httpctx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/zoobzio/apmz"
)

// Provider reports the metadata of one HTTP request.
type Provider struct {
	req      *http.Request
	env      map[string]string
	recorder *ResponseRecorder
}

// NewProvider creates a provider for r. env is the environment reported
// with events, typically apmz.EnvironMap(os.Environ()).
func NewProvider(r *http.Request, env map[string]string) *Provider {
	return &Provider{req: r, env: env}
}

// Request implements apmz.ContextProvider.
func (p *Provider) Request() apmz.RequestInfo {
	r := p.req
	if r == nil {
		return apmz.RequestInfo{Method: apmz.CLIMethod, Env: p.env}
	}

	protocol := "http"
	if r.TLS != nil {
		protocol = "https"
	}
	hostname, port := splitHostPort(r.Host)
	remote, _ := splitHostPort(r.RemoteAddr)

	info := apmz.RequestInfo{
		Method:        r.Method,
		HTTPVersion:   strconv.Itoa(r.ProtoMajor) + "." + strconv.Itoa(r.ProtoMinor),
		RemoteAddress: remote,
		Encrypted:     r.TLS != nil,
		UserAgent:     r.UserAgent(),
		Cookie:        r.Header.Get("Cookie"),
		Env:           p.env,
		URL: apmz.URLInfo{
			Protocol: protocol,
			Hostname: hostname,
			Port:     port,
		},
	}
	if r.URL != nil {
		info.URL.Pathname = r.URL.Path
		if r.URL.RawQuery != "" {
			info.URL.Search = "?" + r.URL.RawQuery
		}
		if r.Host != "" {
			info.URL.Full = protocol + "://" + r.Host + r.URL.RequestURI()
		}
	}

	if cookies := r.Cookies(); len(cookies) > 0 {
		info.Cookies = make(map[string]string, len(cookies))
		for _, c := range cookies {
			info.Cookies[c.Name] = c.Value
		}
	}
	return info
}

// DiagnosticHeaders implements apmz.HeaderSource. It reports the response
// headers sent through the writer returned by Wrap.
func (p *Provider) DiagnosticHeaders() map[string]string {
	if p.recorder == nil {
		return nil
	}
	return p.recorder.SentHeaders()
}

// Wrap returns a writer that records the response status and headers.
func (p *Provider) Wrap(w http.ResponseWriter) *ResponseRecorder {
	p.recorder = &ResponseRecorder{ResponseWriter: w, status: http.StatusOK}
	return p.recorder
}

func splitHostPort(hostport string) (string, string) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return strings.Trim(hostport, "[]"), ""
	}
	return host, port
}

// ResponseRecorder wraps a ResponseWriter and remembers what was sent.
type ResponseRecorder struct {
	http.ResponseWriter
	sent        map[string]string
	mu          sync.Mutex
	status      int
	wroteHeader bool
}

// WriteHeader records the status and the headers being sent.
func (r *ResponseRecorder) WriteHeader(status int) {
	r.mu.Lock()
	if !r.wroteHeader {
		r.wroteHeader = true
		r.status = status
		r.sent = flatten(r.ResponseWriter.Header())
	}
	r.mu.Unlock()
	r.ResponseWriter.WriteHeader(status)
}

// Write implies a 200 status when no header was written.
func (r *ResponseRecorder) Write(b []byte) (int, error) {
	r.mu.Lock()
	written := r.wroteHeader
	r.mu.Unlock()
	if !written {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *ResponseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Status returns the response status, 200 if none was written.
func (r *ResponseRecorder) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// HeadersSent reports whether the response header was written.
func (r *ResponseRecorder) HeadersSent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wroteHeader
}

// SentHeaders returns the headers sent with the response.
func (r *ResponseRecorder) SentHeaders() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		return nil
	}
	out := make(map[string]string, len(r.sent))
	for k, v := range r.sent {
		out[k] = v
	}
	return out
}

func flatten(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

var (
	_ apmz.ContextProvider = (*Provider)(nil)
	_ apmz.HeaderSource    = (*Provider)(nil)
)
