// Package transport delivers apmz batches to an Elastic APM server over
// the v1 intake API.
package transport
