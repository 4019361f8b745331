package chunker

// The languages package imports chunker, so in-package tests cannot import
// it back. These registrations mirror the python and go plugins.

import (
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

func registerPythonForTest(r *Registry) {
	r.Register(&Plugin{
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
		Transparent: []string{"decorated_definition"},
	})
}

func registerGoForTest(r *Registry) {
	r.Register(&Plugin{
		Name:       "go",
		ParserName: "go_parser",
		Language:   golang.GetLanguage,
		Extensions: []string{"go"},
		NodeTypes: map[types.ChunkType][]string{
			types.ChunkFunction: {"function_declaration"},
			types.ChunkMethod:   {"method_declaration"},
			types.ChunkTypeDecl: {"type_declaration"},
			types.ChunkConstant: {"const_declaration"},
			types.ChunkVariable: {"var_declaration"},
			types.ChunkModule:   {"package_clause"},
			types.ChunkImport:   {"import_declaration"},
			types.ChunkComment:  {"comment"},
		},
	})
}
