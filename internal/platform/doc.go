// Package platform holds the static table of supported platforms: extension
// mappings, naming conventions, BIOS requirements, and playlist metadata.
package platform
