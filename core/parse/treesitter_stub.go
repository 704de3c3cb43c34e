//go:build !cgo

package parse

import "github.com/huangsam/codepulse/internal/contract"

// registerProcedural leaves procedural languages unregistered: tree-sitter needs cgo.
// Their files still receive history metrics.
func registerProcedural(*Registry) {
	contract.LogDebug("built without cgo, procedural language parsers disabled", nil)
}
