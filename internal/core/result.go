package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind names a recoverable, user-visible pipeline failure.
type ErrorKind string

const (
	// KindMissingFiles: one or both uploads are absent.
	KindMissingFiles ErrorKind = "MissingFiles"
	// KindMissingKeyColumn: one or both tables lack the key column.
	KindMissingKeyColumn ErrorKind = "MissingKeyColumn"
	// KindUnreadableFile: an upload could not be parsed as a spreadsheet.
	KindUnreadableFile ErrorKind = "UnreadableFile"
)

// MissingFilesStatus is the prompt shown until both files are supplied.
const MissingFilesStatus = "Please upload both files."

// SuccessStatus is shown when the join completed.
const SuccessStatus = "Files successfully processed. Preview below."

// Role identifies which of the two uploads a file plays in the join.
type Role string

const (
	RoleKeys Role = "keys"
	RoleData Role = "data"
)

// Label is the human description of a role used in error details.
func (r Role) Label() string {
	switch r {
	case RoleKeys:
		return "ID file"
	case RoleData:
		return "data file"
	default:
		return string(r)
	}
}

// FileRef names an upload within an error.
type FileRef struct {
	Role Role   `json:"role"`
	Name string `json:"name,omitempty"`
}

func (f FileRef) String() string {
	if f.Name == "" {
		return f.Role.Label()
	}
	return fmt.Sprintf("%s (%s)", f.Role.Label(), f.Name)
}

// JoinError is the failure side of a JoinResult.
type JoinError struct {
	Kind  ErrorKind
	Key   string    // key column name, for KindMissingKeyColumn
	Files []FileRef // offending uploads
	Err   error     // underlying cause, for KindUnreadableFile
}

// Message returns the status line shown to the user.
func (e *JoinError) Message() string {
	switch e.Kind {
	case KindMissingFiles:
		return MissingFilesStatus
	case KindMissingKeyColumn:
		return fmt.Sprintf("Error: One or both files are missing an '%s' column.", e.Key)
	case KindUnreadableFile:
		name := "the uploaded file"
		if len(e.Files) > 0 {
			name = e.Files[0].String()
		}
		return fmt.Sprintf("Error: Could not read %s. Upload a valid .xlsx or .csv file.", name)
	default:
		return string(e.Kind)
	}
}

// Detail describes which file(s) caused the failure. Empty when not applicable.
func (e *JoinError) Detail() string {
	if len(e.Files) == 0 {
		return ""
	}
	parts := make([]string, len(e.Files))
	for i, f := range e.Files {
		parts[i] = f.String()
	}
	switch e.Kind {
	case KindMissingKeyColumn:
		return fmt.Sprintf("Column '%s' not found in: %s", e.Key, strings.Join(parts, ", "))
	case KindMissingFiles:
		return "Not uploaded: " + strings.Join(parts, ", ")
	default:
		return strings.Join(parts, ", ")
	}
}

func (e *JoinError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail(), e.Err)
	}
	if d := e.Detail(); d != "" {
		return fmt.Sprintf("%s: %s", e.Kind, d)
	}
	return string(e.Kind)
}

func (e *JoinError) Unwrap() error { return e.Err }

// IsKind reports whether err is a *JoinError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var je *JoinError
	return errors.As(err, &je) && je.Kind == kind
}

// JoinResult is either a joined Table or a JoinError, never both.
type JoinResult struct {
	table *Table
	err   *JoinError
}

// Joined wraps a successful join.
func Joined(t *Table) JoinResult { return JoinResult{table: t} }

// Failed wraps a pipeline failure.
func Failed(err *JoinError) JoinResult { return JoinResult{err: err} }

// OK reports whether the result holds a table.
func (r JoinResult) OK() bool { return r.err == nil && r.table != nil }

// Table returns the joined table and true on success.
func (r JoinResult) Table() (*Table, bool) {
	if !r.OK() {
		return nil, false
	}
	return r.table, true
}

// Err returns the failure, or nil on success.
func (r JoinResult) Err() *JoinError { return r.err }

// Stage is the position of a run in the per-request state machine.
type Stage string

const (
	StageAwaitingFiles Stage = "awaiting_files"
	StageValidating    Stage = "validating"
	StageFailed        Stage = "failed"
	StageJoined        Stage = "joined"
	StageRendered      Stage = "rendered"
)
