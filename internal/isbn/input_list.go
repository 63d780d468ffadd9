package isbn

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/lepinkainen/bookshelf/internal/fileutil"
)

// InputList is the persisted set of ISBNs waiting to be resolved, stored as
// {"isbn": [...]}. The whole file is rewritten on every Save; a single
// writer is assumed.
type InputList struct {
	ISBNs []string `json:"isbn"`

	path string
}

// LoadInputList reads the list at path. A missing file yields an empty list.
func LoadInputList(path string) (*InputList, error) {
	list := &InputList{path: path, ISBNs: []string{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return list, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input list: %w", err)
	}

	if err := json.Unmarshal(data, list); err != nil {
		return nil, fmt.Errorf("failed to parse input list %s: %w", path, err)
	}
	if list.ISBNs == nil {
		list.ISBNs = []string{}
	}

	return list, nil
}

// Path returns the file backing the list.
func (l *InputList) Path() string {
	return l.path
}

// Contains reports whether isbn is already present.
func (l *InputList) Contains(isbn string) bool {
	return slices.Contains(l.ISBNs, isbn)
}

// Append adds isbn unless it is already present. It returns false when the
// list was left unchanged.
func (l *InputList) Append(isbn string) bool {
	if l.Contains(isbn) {
		return false
	}
	l.ISBNs = append(l.ISBNs, isbn)
	return true
}

// Save rewrites the whole list through a temp file and rename.
func (l *InputList) Save() error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal input list: %w", err)
	}
	if err := fileutil.WriteFileAtomic(l.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write input list: %w", err)
	}
	return nil
}

// Sanitized returns the valid ISBNs in list order with duplicates removed,
// plus the raw entries that failed sanitization.
func (l *InputList) Sanitized() (valid []string, rejected []string) {
	seen := make(map[string]bool, len(l.ISBNs))
	for _, raw := range l.ISBNs {
		clean, err := Sanitize(raw)
		if err != nil {
			rejected = append(rejected, raw)
			continue
		}
		if seen[clean] {
			continue
		}
		seen[clean] = true
		valid = append(valid, clean)
	}
	return valid, rejected
}

// AddResult describes what Add did.
type AddResult int

const (
	// Added means the ISBN was appended and the list saved.
	Added AddResult = iota
	// AlreadyPresent means the list already held the ISBN and was not rewritten.
	AlreadyPresent
)

// Add sanitizes raw and appends it to the list at path, persisting the list
// only when it changed. Invalid input returns a validation error.
func Add(path, raw string) (string, AddResult, error) {
	clean, err := Sanitize(raw)
	if err != nil {
		return "", 0, err
	}

	list, err := LoadInputList(path)
	if err != nil {
		return "", 0, err
	}

	if !list.Append(clean) {
		return clean, AlreadyPresent, nil
	}

	if err := list.Save(); err != nil {
		return "", 0, err
	}
	return clean, Added, nil
}
