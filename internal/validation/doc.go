// Package validation implements the per-ROM checks of the validate phase:
// content hashing, duplicate detection, integrity, companion files, BIOS
// dependencies, and naming.
package validation
