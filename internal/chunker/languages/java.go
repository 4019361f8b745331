package languages

import (
	"github.com/smacker/go-tree-sitter/java"

	"github.com/nameFly-top/vscode-codeBase/internal/chunker"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

func RegisterJava(r *chunker.Registry) {
	r.Register(&chunker.Plugin{
		Name:       "java",
		ParserName: "java_parser",
		Language:   java.GetLanguage,
		Extensions: []string{"java"},
		NodeTypes: map[types.ChunkType][]string{
			types.ChunkClass:     {"class_declaration", "record_declaration"},
			types.ChunkInterface: {"interface_declaration", "annotation_type_declaration"},
			types.ChunkTypeDecl:  {"enum_declaration"},
			types.ChunkMethod:    {"method_declaration", "constructor_declaration"},
			types.ChunkField:     {"field_declaration"},
			types.ChunkModule:    {"package_declaration"},
			types.ChunkImport:    {"import_declaration"},
			types.ChunkComment:   {"line_comment", "block_comment"},
		},
	})
}
