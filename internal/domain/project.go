package domain

import (
	"fmt"
	"strings"
)

// PathSeparator joins project path segments.
const PathSeparator = "_"

// ProjectRow is one persisted hierarchy row. A nil ParentID marks a top-level project.
type ProjectRow struct {
	ID       int64
	Name     string
	ParentID *int64
}

// SplitPath splits a project path into its segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, PathSeparator)
}

// JoinPath joins segments into a project path.
func JoinPath(segments ...string) string {
	return strings.Join(segments, PathSeparator)
}

// TopSegment returns the top-level parent of a project path.
func TopSegment(path string) string {
	top, _, _ := strings.Cut(path, PathSeparator)
	return top
}

// ChildSegment returns the second segment of a project path, if any.
func ChildSegment(path string) string {
	segments := SplitPath(path)
	if len(segments) < 2 {
		return ""
	}
	return segments[1]
}

// ValidatePath checks the project path invariant. A nil token set skips the token check.
func ValidatePath(path string, tokens map[string]struct{}) error {
	if path == "" {
		return fmt.Errorf("%w: empty", ErrInvalidProjectPath)
	}
	if strings.HasPrefix(path, PathSeparator) || strings.HasSuffix(path, PathSeparator) {
		return fmt.Errorf("%w: %q has a leading or trailing separator", ErrInvalidProjectPath, path)
	}
	for _, segment := range SplitPath(path) {
		if segment == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidProjectPath, path)
		}
		if tokens == nil {
			continue
		}
		if _, ok := tokens[segment]; !ok {
			return fmt.Errorf("%w: %q segment %q is not a known category", ErrInvalidProjectPath, path, segment)
		}
	}
	return nil
}
