package chunker

import (
	"sort"

	"github.com/nameFly-top/vscode-codeBase/pkg/types"
)

// mergeGapLines is the maximum line gap between two same-type regions that
// still merge: next.StartLine <= current.EndLine + mergeGapLines.
const mergeGapLines = 2

// candidate is a typed region collected from the syntax tree, before content
// extraction.
type candidate struct {
	ctype     types.ChunkType
	startLine int
	endLine   int
	name      string
}

// mergeCandidates coalesces adjacent same-type regions. The input is sorted
// by start line and walked pairwise once; merging is transitive along the
// sorted sequence and the list is never re-sorted afterwards. The merged
// region keeps the earlier name when present, else the later.
func mergeCandidates(cands []candidate) []candidate {
	if len(cands) <= 1 {
		return cands
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].startLine != cands[j].startLine {
			return cands[i].startLine < cands[j].startLine
		}
		return cands[i].endLine > cands[j].endLine
	})

	merged := []candidate{cands[0]}
	for _, next := range cands[1:] {
		cur := &merged[len(merged)-1]
		if next.ctype == cur.ctype && next.startLine <= cur.endLine+mergeGapLines {
			if next.endLine > cur.endLine {
				cur.endLine = next.endLine
			}
			if cur.name == "" {
				cur.name = next.name
			}
			continue
		}
		merged = append(merged, next)
	}
	return merged
}
