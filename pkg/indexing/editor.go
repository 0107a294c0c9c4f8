package indexing

import "github.com/cuemby/strata/pkg/types"

// Editor transforms a document in place for the documentEdition task kind.
// A production deployment would run a sandboxed scripting engine here;
// strata ships the interface plus the narrowest real implementations that
// satisfy it, and treats the scripting engine itself as an opaque
// collaborator.
type Editor interface {
	// Edit returns the edited document, or ok=false if the document should
	// be deleted as a result of the edit (the edit function returned null).
	Edit(doc types.Document) (edited types.Document, ok bool, err error)
}

// NoopEditor returns every document unchanged; used when a documentEdition
// task carries no function (a context-only filter-and-pass-through edit).
type NoopEditor struct{}

// Edit implements Editor.
func (NoopEditor) Edit(doc types.Document) (types.Document, bool, error) {
	return doc, true, nil
}

// FieldSetEditor applies a fixed field=value assignment to every document it
// edits; it is the narrowest useful stand-in for the scripting engine,
// enough to exercise the documentEdition task kind end to end without
// embedding a JS VM.
type FieldSetEditor struct {
	Field string
	Value interface{}
}

// Edit implements Editor.
func (e FieldSetEditor) Edit(doc types.Document) (types.Document, bool, error) {
	out := make(types.Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out[e.Field] = e.Value
	return out, true, nil
}
