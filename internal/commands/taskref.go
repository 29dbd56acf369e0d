package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"todo/internal/service"
)

// TaskRef represents a parsed task reference.
type TaskRef struct {
	Position int  // 1-based position in the synced collection, 0 if ByID
	ID       int  // server ID, 0 unless ByID
	ByID     bool // true for "#<id>" references
}

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

// ParseTaskRef parses a task reference from the first arg.
//
// Parsing rules:
// 1. All digits → position in the list as printed by "todo list"
// 2. '#' followed by digits → server task ID
// 3. Otherwise → error: invalid task reference: <ref>
func ParseTaskRef(args []string) (TaskRef, error) {
	if len(args) == 0 {
		return TaskRef{}, ErrTaskRefRequired
	}

	arg := args[0]
	if isAllDigits(arg) {
		num, err := strconv.Atoi(arg)
		if err != nil {
			return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
		}
		return TaskRef{Position: num}, nil
	}
	if id, ok := strings.CutPrefix(arg, "#"); ok && isAllDigits(id) {
		num, err := strconv.Atoi(id)
		if err != nil {
			return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
		}
		return TaskRef{ID: num, ByID: true}, nil
	}
	return TaskRef{}, fmt.Errorf("invalid task reference: %s", arg)
}

// ParseTaskRefs parses every arg as a task reference.
func ParseTaskRefs(args []string) ([]TaskRef, error) {
	if len(args) == 0 {
		return nil, ErrTaskRefRequired
	}
	refs := make([]TaskRef, 0, len(args))
	for _, arg := range args {
		ref, err := ParseTaskRef([]string{arg})
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// ResolveTaskRefs resolves refs against one snapshot of tasks, so positions
// keep their meaning while the commands mutate the collection.
func ResolveTaskRefs(refs []TaskRef, tasks []service.Task) ([]int, error) {
	ids := make([]int, 0, len(refs))
	for _, ref := range refs {
		id, err := ref.Resolve(tasks)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Resolve returns the task ID the reference names within tasks.
// ID references are returned as is, since the task may lie outside the
// synced page.
func (r TaskRef) Resolve(tasks []service.Task) (int, error) {
	if r.ByID {
		return r.ID, nil
	}
	if r.Position < 1 || r.Position > len(tasks) {
		return 0, fmt.Errorf("task number out of range: %d", r.Position)
	}
	return tasks[r.Position-1].ID, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
