// Package rom defines the ROM file record shared by every pipeline phase.
package rom
