// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing core model objects (messages, task content)
// and asserting behaviors. These helpers are intentionally minimal and are
// not intended for production usage.
package testutil
