package languages

import (
	"github.com/smacker/go-tree-sitter/c"

	"github.com/nameFly-top/vscode-codeBase/internal/chunker"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

// cNodeTypes are shared by the C and C++ plugins; C++ extends them.
func cNodeTypes() map[types.ChunkType][]string {
	return map[types.ChunkType][]string{
		types.ChunkFunction: {"function_definition"},
		types.ChunkTypeDecl: {"struct_specifier", "union_specifier", "enum_specifier", "type_definition"},
		types.ChunkVariable: {"declaration"},
		types.ChunkInclude:  {"preproc_include"},
		types.ChunkMacro:    {"preproc_def", "preproc_function_def"},
		types.ChunkPreprocessor: {
			"preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif", "preproc_call",
		},
		types.ChunkComment: {"comment"},
	}
}

// RegisterC registers the C plugin. C support ships enabled; .c/.h files
// reach the line chunker only through the normal parse-failure ladder.
func RegisterC(r *chunker.Registry) {
	r.Register(&chunker.Plugin{
		Name:       "c",
		ParserName: "c_parser",
		Language:   c.GetLanguage,
		Extensions: []string{"c", "h"},
		NodeTypes:  cNodeTypes(),
	})
}
