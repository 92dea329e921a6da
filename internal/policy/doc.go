// Package policy implements the batch-level admission gate consulted before
// any job is created.
package policy
