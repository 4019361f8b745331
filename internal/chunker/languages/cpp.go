package languages

import (
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/nameFly-top/vscode-codeBase/internal/chunker"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

func RegisterCpp(r *chunker.Registry) {
	nodeTypes := cNodeTypes()
	nodeTypes[types.ChunkClass] = []string{"class_specifier"}
	nodeTypes[types.ChunkNamespace] = []string{"namespace_definition"}
	nodeTypes[types.ChunkUsing] = []string{"using_declaration", "alias_declaration"}

	r.Register(&chunker.Plugin{
		Name:       "cpp",
		ParserName: "cpp_parser",
		Language:   cpp.GetLanguage,
		Extensions: []string{"cpp", "cc", "cxx", "hpp", "hxx", "hh"},
		NodeTypes:  nodeTypes,
		// Templates wrap the class or function they declare.
		Transparent: []string{"template_declaration"},
	})
}
