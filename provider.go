package apmz

import (
	"os"
	"strings"
)

// CLIMethod is reported as the request method outside of an HTTP request.
const CLIMethod = "cli"

// ContextProvider supplies metadata about the request an event was
// recorded in. It is consulted every time an event is serialized.
type ContextProvider interface {
	Request() RequestInfo
}

// HeaderSource is implemented by providers that know which response
// headers have been sent. Transactions record them when they stop.
type HeaderSource interface {
	DiagnosticHeaders() map[string]string
}

// RequestInfo is the raw request view handed out by a ContextProvider.
type RequestInfo struct {
	Cookies       map[string]string
	Env           map[string]string
	URL           URLInfo
	Method        string
	HTTPVersion   string
	RemoteAddress string
	UserAgent     string
	Cookie        string
	Encrypted     bool
}

// URLInfo holds the components of the request URL.
type URLInfo struct {
	Protocol string `json:"protocol"`
	Hostname string `json:"hostname"`
	Port     string `json:"port"`
	Pathname string `json:"pathname"`
	Search   string `json:"search"`
	Full     string `json:"full"`
}

// CLIProvider reports an empty request view for command-line execution.
type CLIProvider struct {
	env map[string]string
}

// NewCLIProvider snapshots the process environment.
func NewCLIProvider() *CLIProvider {
	return &CLIProvider{env: EnvironMap(os.Environ())}
}

// Request implements ContextProvider.
func (p *CLIProvider) Request() RequestInfo {
	return RequestInfo{
		Method: CLIMethod,
		URL:    URLInfo{Protocol: "http"},
		Env:    p.env,
	}
}

// EnvironMap converts KEY=VALUE pairs into a map.
func EnvironMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

// filterEnv keeps only the allowed keys. An empty allow-list keeps everything.
func filterEnv(env map[string]string, allow []string) map[string]string {
	out := make(map[string]string, len(env))
	if len(allow) == 0 {
		for k, v := range env {
			out[k] = v
		}
		return out
	}
	for _, k := range allow {
		if v, ok := env[k]; ok {
			out[k] = v
		}
	}
	return out
}
