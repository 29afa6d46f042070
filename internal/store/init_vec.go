//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register the sqlite-vec extension as auto-loadable so builds that
	// carry a cgo SQLite driver get accelerated vector distance functions.
	vec.Auto()
}
