// Package retry provides exponential backoff retry logic for transient failures.
//
// [WithExponentialBackoff] retries an operation until it succeeds, the
// attempt budget is spent, or the context is done. Errors wrapped with
// [Fatal] stop the loop immediately. It is used around cloud API calls
// and SSH dials, where failures are expected while a node boots.
package retry
