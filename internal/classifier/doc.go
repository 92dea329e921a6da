// Package classifier implements the first pipeline phase: platform
// assignment by extension and the move into the validation staging area.
package classifier
