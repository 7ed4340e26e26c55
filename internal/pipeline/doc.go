// Package pipeline implements the ordered middleware security pipeline:
// allow-list, availability, audit-safe logging, daily quota, and token
// authentication, composed in that fixed order ahead of the terminal
// handler. Each gate either forwards the request or produces a terminal
// response in the shared error envelope; the first rejection wins.
package pipeline
