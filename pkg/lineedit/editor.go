package lineedit

import "fmt"

// Storage reads and writes whole text files.
type Storage interface {
	ReadText(path string) (string, error)
	WriteText(path, content string) error
}

// Result is what an edit reports back to the caller.
type Result struct {
	Op        Op
	Diff      string
	DryRun    bool
	Committed bool
	Stats     Stats
	Change    *Change
}

// Message describes the result the way clients expect it.
func (r *Result) Message() string {
	if r.DryRun {
		return fmt.Sprintf("[DRY RUN] Would %s at line %s", r.Op, r.Change.Location())
	}
	return fmt.Sprintf("Successfully %s at line %s", r.Op.pastTense(), r.Change.Location())
}

// Editor applies line-range edits to files held by a Storage.
type Editor struct {
	store Storage
}

// NewEditor returns an editor over store.
func NewEditor(store Storage) *Editor {
	return &Editor{store: store}
}

// ReplaceLines reads path, applies req and, unless dryRun is set, writes the
// whole modified file back in one call. A failed write leaves nothing
// half-written: the storage either keeps the old file or holds the new one.
func (e *Editor) ReplaceLines(path string, req Request, dryRun bool) (*Result, error) {
	content, err := e.store.ReadText(path)
	if err != nil {
		return nil, err
	}

	change, err := Apply(path, content, req)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Op:     change.Op,
		Diff:   change.Diff,
		DryRun: dryRun,
		Stats:  change.Stats,
		Change: change,
	}
	if dryRun {
		return res, nil
	}

	if err := e.store.WriteText(path, change.Content); err != nil {
		return nil, err
	}
	res.Committed = true
	return res, nil
}
