// Package languages registers the built-in language plugins: the grammar,
// claimed extensions, and node-type buckets for each supported language.
package languages

import (
	"github.com/nameFly-top/vscode-codeBase/internal/chunker"
)

// RegisterAll registers every built-in language plugin.
func RegisterAll(r *chunker.Registry) {
	RegisterPython(r)
	RegisterJava(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	RegisterC(r)
	RegisterCpp(r)
	RegisterCSharp(r)
	RegisterGo(r)
	RegisterRust(r)
	RegisterPHP(r)
}
