// Package normalize implements the normalize phase: canonical filenames,
// the CHD conversion capability gate, and metadata generation.
package normalize
