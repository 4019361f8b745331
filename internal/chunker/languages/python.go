package languages

import (
	"github.com/smacker/go-tree-sitter/python"

	"github.com/nameFly-top/vscode-codeBase/internal/chunker"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

func RegisterPython(r *chunker.Registry) {
	r.Register(&chunker.Plugin{
		Name:       "python",
		ParserName: "python_parser",
		Language:   python.GetLanguage,
		Extensions: []string{"py", "pyi"},
		NodeTypes: map[types.ChunkType][]string{
			types.ChunkFunction: {"function_definition"},
			types.ChunkClass:    {"class_definition"},
			types.ChunkImport:   {"import_statement", "import_from_statement", "future_import_statement"},
			types.ChunkComment:  {"comment"},
		},
		// Decorators wrap the definition node; classify what's inside.
		Transparent: []string{"decorated_definition"},
	})
}
