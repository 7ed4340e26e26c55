// Package application assembles the configuration stores, the security
// pipeline, and the HTTP server from a resolved configuration.
package application
