package generation

import (
	"sort"
	"time"
)

// Outcome is the result of executing one command.
type Outcome struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
	// FileErrors attributes failure text to package-relative paths.
	FileErrors map[string]string `json:"file_errors,omitempty"`
	// SucceededFiles lists paths the command handled without error.
	SucceededFiles []string `json:"succeeded_files,omitempty"`
	// Completed is set by publish when the readiness check passes.
	Completed bool `json:"completed,omitempty"`
}

// Succeeded builds a successful outcome.
func Succeeded(detail string, files ...string) Outcome {
	return Outcome{Success: true, Detail: detail, SucceededFiles: files}
}

// Failed builds a failed outcome.
func Failed(errText string, fileErrors map[string]string) Outcome {
	return Outcome{Error: errText, FileErrors: fileErrors}
}

// failedPaths returns the attributed paths in sorted order.
func (o Outcome) failedPaths() []string {
	paths := make([]string, 0, len(o.FileErrors))
	for p := range o.FileErrors {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ActionHistoryEntry records one turn.
type ActionHistoryEntry struct {
	Turn           int         `json:"turn"`
	Command        CommandKind `json:"command"`
	Summary        string      `json:"summary"`
	Outcome        Outcome     `json:"outcome"`
	MetaCorrection bool        `json:"meta_correction,omitempty"`
	At             time.Time   `json:"at"`
}
