// Package httputil holds the JSON response helpers shared by the API and
// tracking handlers, plus the mapping from sentinel errors to statuses.
package httputil
