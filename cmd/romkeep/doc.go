// Command romkeep is the operator CLI for the romkeep daemon: configuration
// utilities, platform listing, job history, and daemon status.
package main
