package timeline

import "fmt"

// InvalidProjectError reports a project-level field that cannot be exported.
type InvalidProjectError struct {
	Field  string
	Reason string
}

func (e *InvalidProjectError) Error() string {
	return fmt.Sprintf("invalid project: %s %s", e.Field, e.Reason)
}

// InvalidClipError reports a clip that cannot be exported. Index is the clip's
// position in Project.Clips, or -1 when the clip was validated on its own.
type InvalidClipError struct {
	Index  int
	Name   string
	Field  string
	Reason string
}

func (e *InvalidClipError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid clip %q: %s %s", e.Name, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid clip %d (%q): %s %s", e.Index, e.Name, e.Field, e.Reason)
}
