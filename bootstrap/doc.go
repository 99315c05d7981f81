// Package bootstrap wires a binary's config, logger and component registry
// around one finite task, with ordered startup and reverse-order shutdown.
package bootstrap
