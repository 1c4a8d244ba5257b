package generation

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// MetaCorrectionThreshold is the identical-failure count that triggers a
	// meta-correction directive.
	MetaCorrectionThreshold = 3

	// MaxPostMetaAttempts is how many further identical failures are allowed
	// after the directive; the next one terminates the build.
	MaxPostMetaAttempts = 2
)

// Verdict tells the loop what a recorded failure means.
type Verdict int

const (
	VerdictContinue Verdict = iota
	VerdictMetaCorrect
	VerdictTerminate
)

func (v Verdict) String() string {
	switch v {
	case VerdictMetaCorrect:
		return "meta-correct"
	case VerdictTerminate:
		return "terminate"
	default:
		return "continue"
	}
}

// FileFailureEntry tracks repeated failures on one file.
type FileFailureEntry struct {
	Path               string
	Count              int
	Errors             []string
	Hash               string
	MetaCorrectionSent bool
	MetaAttempts       int
	// Source is the command whose failure last touched the file.
	Source CommandKind
}

// LastError returns the most recent error text.
func (e FileFailureEntry) LastError() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[len(e.Errors)-1]
}

// FileFailureTracker holds the entries for one package build. It is owned by
// a single loop and is not safe for concurrent use.
type FileFailureTracker struct {
	entries map[string]*FileFailureEntry
}

// NewFileFailureTracker returns an empty tracker.
func NewFileFailureTracker() *FileFailureTracker {
	return &FileFailureTracker{entries: make(map[string]*FileFailureEntry)}
}

// HashError returns a stable hash of error text. Surrounding whitespace and
// line-ending differences do not change the hash.
func HashError(text string) string {
	norm := strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

// RecordFailure records errText against path and returns what the loop
// should do next.
func (t *FileFailureTracker) RecordFailure(path string, source CommandKind, errText string) Verdict {
	hash := HashError(errText)
	e, ok := t.entries[path]
	if !ok {
		t.entries[path] = &FileFailureEntry{
			Path:   path,
			Count:  1,
			Errors: []string{errText},
			Hash:   hash,
			Source: source,
		}
		return VerdictContinue
	}

	e.Errors = append(e.Errors, errText)
	e.Source = source
	if e.Hash != hash {
		e.Hash = hash
		e.Count = 1
		e.MetaCorrectionSent = false
		e.MetaAttempts = 0
		return VerdictContinue
	}

	e.Count++
	if e.MetaCorrectionSent {
		e.MetaAttempts++
		if e.MetaAttempts > MaxPostMetaAttempts {
			return VerdictTerminate
		}
		return VerdictContinue
	}
	if e.Count >= MetaCorrectionThreshold {
		e.MetaCorrectionSent = true
		return VerdictMetaCorrect
	}
	return VerdictContinue
}

// RecordSuccess deletes the entry for path if its last failure came from
// source.
func (t *FileFailureTracker) RecordSuccess(path string, source CommandKind) {
	if e, ok := t.entries[path]; ok && e.Source == source {
		delete(t.entries, path)
	}
}

// ClearSource deletes every entry last failed by source, except the paths in
// keep. Whole-package checks use it: a file they no longer report has passed.
func (t *FileFailureTracker) ClearSource(source CommandKind, keep map[string]string) {
	for path, e := range t.entries {
		if _, still := keep[path]; still {
			continue
		}
		if e.Source == source {
			delete(t.entries, path)
		}
	}
}

// Entry returns a copy of the entry for path.
func (t *FileFailureTracker) Entry(path string) (FileFailureEntry, bool) {
	e, ok := t.entries[path]
	if !ok {
		return FileFailureEntry{}, false
	}
	cp := *e
	cp.Errors = append([]string(nil), e.Errors...)
	return cp, true
}

// Len returns the number of tracked files.
func (t *FileFailureTracker) Len() int { return len(t.entries) }
