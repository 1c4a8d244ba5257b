package generation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CommandKind names a command in the agent vocabulary.
type CommandKind string

const (
	KindApplyFileChanges    CommandKind = "apply-file-changes"
	KindValidateManifest    CommandKind = "validate-manifest"
	KindCheckLicenseHeaders CommandKind = "check-license-headers"
	KindRunLint             CommandKind = "run-lint"
	KindRunTests            CommandKind = "run-tests"
	KindPublish             CommandKind = "publish"

	// KindInvalid marks a turn whose command could not be decoded.
	KindInvalid CommandKind = "invalid"
)

// Kinds lists the commands the agent may issue.
var Kinds = []CommandKind{
	KindApplyFileChanges,
	KindValidateManifest,
	KindCheckLicenseHeaders,
	KindRunLint,
	KindRunTests,
	KindPublish,
}

// Command is one decoded agent command. The concrete types below are the only
// implementations.
type Command interface {
	Kind() CommandKind
	isCommand()
}

// FileChange is a full replacement of one file's content.
type FileChange struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ApplyFileChanges writes files into the package directory.
type ApplyFileChanges struct {
	Files []FileChange `json:"files"`
}

// ValidateManifest checks the package manifest.
type ValidateManifest struct{}

// CheckLicenseHeaders checks license headers on source files.
type CheckLicenseHeaders struct{}

// RunLint runs the linter.
type RunLint struct{}

// RunTests runs the test suite.
type RunTests struct{}

// Publish signals the agent considers the package complete.
type Publish struct{}

func (ApplyFileChanges) Kind() CommandKind    { return KindApplyFileChanges }
func (ValidateManifest) Kind() CommandKind    { return KindValidateManifest }
func (CheckLicenseHeaders) Kind() CommandKind { return KindCheckLicenseHeaders }
func (RunLint) Kind() CommandKind             { return KindRunLint }
func (RunTests) Kind() CommandKind            { return KindRunTests }
func (Publish) Kind() CommandKind             { return KindPublish }

func (ApplyFileChanges) isCommand()    {}
func (ValidateManifest) isCommand()    {}
func (CheckLicenseHeaders) isCommand() {}
func (RunLint) isCommand()             {}
func (RunTests) isCommand()            {}
func (Publish) isCommand()             {}

var (
	// ErrUnknownCommand is returned for a command name outside the vocabulary.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrMalformedPayload is returned when a payload does not match its command.
	ErrMalformedPayload = errors.New("malformed command payload")
)

type envelope struct {
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

// ParseCommand decodes {"command": "...", "payload": {...}}. Unknown fields in
// the payload are rejected.
func ParseCommand(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	switch CommandKind(strings.TrimSpace(env.Command)) {
	case KindApplyFileChanges:
		var cmd ApplyFileChanges
		if err := decodeStrict(env.Payload, &cmd); err != nil {
			return nil, err
		}
		if len(cmd.Files) == 0 {
			return nil, fmt.Errorf("%w: apply-file-changes needs at least one file", ErrMalformedPayload)
		}
		for i, f := range cmd.Files {
			if strings.TrimSpace(f.Path) == "" {
				return nil, fmt.Errorf("%w: files[%d].path is empty", ErrMalformedPayload, i)
			}
		}
		return cmd, nil
	case KindValidateManifest:
		return withoutPayload(ValidateManifest{}, env.Payload)
	case KindCheckLicenseHeaders:
		return withoutPayload(CheckLicenseHeaders{}, env.Payload)
	case KindRunLint:
		return withoutPayload(RunLint{}, env.Payload)
	case KindRunTests:
		return withoutPayload(RunTests{}, env.Payload)
	case KindPublish:
		return withoutPayload(Publish{}, env.Payload)
	case "":
		return nil, fmt.Errorf("%w: missing command name", ErrMalformedPayload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Command)
	}
}

func decodeStrict(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: payload is required", ErrMalformedPayload)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// withoutPayload accepts a missing, null or {} payload.
func withoutPayload(cmd Command, raw json.RawMessage) (Command, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return cmd, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &m); err != nil || len(m) > 0 {
		return nil, fmt.Errorf("%w: %s takes no payload", ErrMalformedPayload, cmd.Kind())
	}
	return cmd, nil
}

// Describe renders a command for the action history.
func Describe(cmd Command) string {
	switch c := cmd.(type) {
	case ApplyFileChanges:
		paths := make([]string, 0, len(c.Files))
		for _, f := range c.Files {
			paths = append(paths, f.Path)
		}
		return fmt.Sprintf("%s %s", c.Kind(), strings.Join(paths, ", "))
	case nil:
		return string(KindInvalid)
	default:
		return string(cmd.Kind())
	}
}
