// Package httputil writes the JSON envelopes returned by the optimizer API.
//
// Errors always use ErrorResponse; internal failures are logged and
// reported to the client as a generic 500.
package httputil
