// Package httpctx connects apmz to net/http: a ContextProvider reading the
// current request and a middleware that runs one agent per request.
package httpctx
