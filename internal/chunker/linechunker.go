package chunker

import (
	"strings"

	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

// ReadlineParserName labels chunks produced by line segmentation.
const ReadlineParserName = "readline_parser"

// LineChunker segments files by line count and byte cap. It serves
// non-code formats, unknown extensions, and the AST chunker's escape hatch.
type LineChunker struct {
	linesPerChunk int
	maxChunkBytes int
}

// NewLineChunker creates a line chunker with the given segmentation caps.
func NewLineChunker(linesPerChunk, maxChunkBytes int) *LineChunker {
	if linesPerChunk <= 0 {
		linesPerChunk = 50
	}
	if maxChunkBytes <= 0 {
		maxChunkBytes = types.MaxChunkBytes
	}
	return &LineChunker{linesPerChunk: linesPerChunk, maxChunkBytes: maxChunkBytes}
}

// Chunk segments src into line_based chunks (or the given type when invoked
// as a fallback). An empty file yields zero chunks.
func (lc *LineChunker) Chunk(src []byte, path, language string, ctype types.ChunkType) []types.Chunk {
	lines := SplitLines(src)
	return lc.chunkLineRange(lines, 1, path, language, ctype, ReadlineParserName)
}

// chunkLineRange segments lines (starting at baseLine in the file) into
// chunks. A new chunk starts whenever the line count reaches linesPerChunk or
// adding the next line would push the byte length past the cap.
func (lc *LineChunker) chunkLineRange(lines []string, baseLine int, path, language string, ctype types.ChunkType, parserName string) []types.Chunk {
	var chunks []types.Chunk

	flush := func(start, end int, content string) {
		chunks = append(chunks, types.Chunk{
			ID:        types.ComputeChunkID(path, start, end),
			FilePath:  path,
			Language:  language,
			StartLine: start,
			EndLine:   end,
			Content:   content,
			Type:      ctype,
			Parser:    parserName,
		})
	}

	var cur strings.Builder
	curStart := -1
	curCount := 0

	for i, line := range lines {
		lineNo := baseLine + i

		// A single line over the cap cannot be emitted whole: hard-split it
		// into byte windows linked by part IDs.
		if len(line) > lc.maxChunkBytes {
			if curCount > 0 {
				flush(curStart, lineNo-1, cur.String())
				cur.Reset()
				curCount = 0
			}
			chunks = append(chunks, lc.splitOverlongLine(line, lineNo, path, language, ctype, parserName)...)
			continue
		}

		if curCount > 0 && (curCount >= lc.linesPerChunk || cur.Len()+1+len(line) > lc.maxChunkBytes) {
			flush(curStart, lineNo-1, cur.String())
			cur.Reset()
			curCount = 0
		}
		if curCount == 0 {
			curStart = lineNo
		} else {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
		curCount++
	}
	if curCount > 0 {
		flush(curStart, baseLine+len(lines)-1, cur.String())
	}
	return chunks
}

// splitOverlongLine slices one line that alone exceeds the byte cap into
// windows of at most maxChunkBytes, all attributed to the same line number.
func (lc *LineChunker) splitOverlongLine(line string, lineNo int, path, language string, ctype types.ChunkType, parserName string) []types.Chunk {
	base := types.ComputeChunkID(path, lineNo, lineNo)
	var chunks []types.Chunk
	part := 1
	for start := 0; start < len(line); start += lc.maxChunkBytes {
		end := start + lc.maxChunkBytes
		if end > len(line) {
			end = len(line)
		}
		chunks = append(chunks, types.Chunk{
			ID:        types.SplitPartID(base, part),
			FilePath:  path,
			Language:  language,
			StartLine: lineNo,
			EndLine:   lineNo,
			Content:   line[start:end],
			Type:      ctype,
			Parser:    parserName,
		})
		part++
	}
	return chunks
}

// SplitLines splits src into its lines without the newline terminators. A
// trailing newline does not produce a phantom empty last line; an empty file
// yields no lines.
func SplitLines(src []byte) []string {
	if len(src) == 0 {
		return nil
	}
	lines := strings.Split(string(src), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
