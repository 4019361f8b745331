// Package chunker segments source files into bounded, semantically aligned
// chunks.
//
// # AST Chunking
//
// AstChunker parses a file with its tree-sitter grammar and walks the
// concrete syntax tree. Each language registers a Plugin declaring node-type
// buckets: grammar node names grouped under chunk categories (function,
// class, import, comment, ...). A node matching a bucket is emitted whole
// and its subtree skipped; unmatched top-level nodes become "other" chunks.
// All grammar offsets are byte offsets into the UTF-8 input — extraction
// never uses character indexing, so multibyte content round-trips exactly.
//
// After collection, adjacent same-type regions merge when separated by at
// most two lines; the pass is a single forward walk over the sorted list and
// merging is transitive. Chunks over the byte cap are re-split by line, the
// parts linked to the parent chunk by ID suffix.
//
// # Failure Ladder
//
// Parsing never fails the pipeline. The ladder runs, each stage gated on the
// previous stage's failure:
//
//  1. NUL-stripped source (truncated to its first MiB when oversized)
//  2. control characters stripped, CRLF normalized to LF
//  3. first 100 lines only
//  4. line chunker over the original, untruncated content
//
// # Line Chunking
//
// LineChunker segments by line count and byte cap. It serves non-code
// formats (json, yaml, md, ...), unknown extensions, and stage 4 above.
package chunker
