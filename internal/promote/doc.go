// Package promote publishes archived ROMs into the runtime library:
// placement, playlist upserts, and thumbnail sync.
package promote
