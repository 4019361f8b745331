// chunkdump runs the chunker over files and prints the resulting chunks as
// JSON. Debugging aid for grammar buckets and merge behavior.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/nameFly-top/vscode-codeBase/internal/chunker"
	"github.com/nameFly-top/vscode-codeBase/internal/chunker/languages"
	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

func main() {
	fs := pflag.NewFlagSet("chunkdump", pflag.ExitOnError)
	linesPerChunk := fs.Int("lines-per-chunk", 50, "line cap for line-based chunks")
	verbose := fs.Bool("verbose", false, "debug logging")
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: chunkdump [flags] <file>...")
		os.Exit(2)
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	registry := chunker.NewRegistry()
	languages.RegisterAll(registry)
	lineChunker := chunker.NewLineChunker(*linesPerChunk, types.MaxChunkBytes)
	astChunker := chunker.NewAstChunker(registry, lineChunker, types.MaxChunkBytes)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	exitCode := 0
	for _, path := range fs.Args() {
		src, err := os.ReadFile(path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("read failed")
			exitCode = 1
			continue
		}

		chunks, err := astChunker.Chunk(context.Background(), src, path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("chunking failed")
			exitCode = 1
			continue
		}

		if err := enc.Encode(map[string]any{
			"filePath": path,
			"language": registry.LanguageFor(path),
			"fileHash": types.HashBytes(src),
			"chunks":   chunks,
		}); err != nil {
			log.Error().Err(err).Msg("encode failed")
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}
