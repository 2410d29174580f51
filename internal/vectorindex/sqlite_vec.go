//go:build sqlite_vec && cgo

package vectorindex

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// init registers the sqlite-vec extension when evocore is built with both
// the sqlite_vec and cgo build tags, mirroring the teacher project's own
// opt-in acceleration path. Registration is all this file does: no backend
// in this package issues sqlite-vec queries, and LinearIndex and SQLiteIndex
// search the same way with or without the tags. Without both tags this file
// is not compiled and no cgo toolchain is needed.
func init() {
	vec.Auto()
}
