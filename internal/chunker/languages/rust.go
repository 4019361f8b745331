package languages

import (
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/nameFly-top/vscode-codeBase/internal/chunker"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

func RegisterRust(r *chunker.Registry) {
	r.Register(&chunker.Plugin{
		Name:       "rust",
		ParserName: "rust_parser",
		Language:   rust.GetLanguage,
		Extensions: []string{"rs"},
		NodeTypes: map[types.ChunkType][]string{
			types.ChunkFunction: {"function_item"},
			types.ChunkTypeDecl: {"struct_item", "enum_item", "type_item", "union_item"},
			// Traits are the interface notion; impl blocks group methods the
			// way a class body does.
			types.ChunkInterface: {"trait_item"},
			types.ChunkClass:     {"impl_item"},
			types.ChunkModule:    {"mod_item"},
			types.ChunkImport:    {"use_declaration", "extern_crate_declaration"},
			types.ChunkConstant:  {"const_item", "static_item"},
			types.ChunkMacro:     {"macro_definition"},
			types.ChunkComment:   {"line_comment", "block_comment"},
		},
	})
}
