// Package query runs read-only search operations against an already built
// index: full-text search narrowed by an optional filter expression, facet
// value enumeration, and nearest-neighbor similarity search. Ranking is
// word-match-count plus summed inverse proximity, not the full ranking-rule
// cascade (out of scope).
package query
