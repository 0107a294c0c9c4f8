/*
Package filter parses the filter expression grammar into an AST with
github.com/alecthomas/participle/v2 and evaluates it against a Reader
(satisfied by pkg/index.Index and pkg/query's read-transaction wrapper) into
a roaring bitmap of matching document ids.

Grammar: a disjunction of conjunctions of comparisons, with parentheses for
grouping: field = value, field != value, field > value (and >=, <, <=) for
numeric ranges, and field IN (v1, v2, ...) for membership. String values are
quoted; numbers are bare.
*/
package filter
