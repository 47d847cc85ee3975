package changeset

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Header is the marker every changeset file must start with
const Header = "--migration"

var (
	changesetExpression = regexp.MustCompile(`(?m)^--changeset(?:[ \t]+([^\r\n]*))?\r?$`)
	typeExpression      = regexp.MustCompile(`(?:^|\s)type:(\S+)`)
	contextExpression   = regexp.MustCompile(`(?:^|\s)context:(\S+)`)
)

// ParseFile reads a changeset file and parses its content. The changeset
// file identifier is the path relative to basePath using forward slashes.
// When basePath is empty the absolute path is used, always with a leading
// separator.
func ParseFile(filename, basePath string) ([]*Changeset, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read changeset file: %w", err)
	}

	identifier, err := fileIdentifier(filename, basePath)
	if err != nil {
		return nil, err
	}

	return Parse(identifier, string(content))
}

func fileIdentifier(filename, basePath string) (string, error) {
	absPath, err := filepath.Abs(filename)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", filename, err)
	}

	var identifier string
	if basePath == "" {
		identifier = filepath.ToSlash(absPath)
		if !strings.HasPrefix(identifier, "/") {
			identifier = "/" + identifier
		}
	} else {
		absBase, err := filepath.Abs(basePath)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", basePath, err)
		}
		rel, err := filepath.Rel(absBase, absPath)
		if err != nil {
			return "", fmt.Errorf("failed to make %s relative to %s: %w", filename, basePath, err)
		}
		identifier = filepath.ToSlash(rel)
	}

	// macOS hands out decomposed file names
	return norm.NFC.String(identifier), nil
}

// Parse splits changeset file content into changesets in source order.
// identifier names the file in errors and becomes each changeset's File.
func Parse(identifier, content string) ([]*Changeset, error) {
	if !strings.HasPrefix(content, Header) {
		return nil, &ParseError{File: identifier, Err: ErrMissingHeader}
	}

	headers := changesetExpression.FindAllStringSubmatchIndex(content, -1)
	changesets := make([]*Changeset, 0, len(headers))
	seen := make(map[string]bool, len(headers))

	for i, loc := range headers {
		descriptor := ""
		if loc[2] >= 0 {
			descriptor = content[loc[2]:loc[3]]
		}

		bodyEnd := len(content)
		if i+1 < len(headers) {
			bodyEnd = headers[i+1][0]
		}
		script := strings.TrimSpace(content[loc[1]:bodyEnd])

		name, executionType, context := parseDescriptor(descriptor)

		if script == "" {
			return nil, &ParseError{File: identifier, Name: name, Err: ErrEmptyChangeset}
		}
		if seen[name] {
			return nil, &ParseError{File: identifier, Name: name, Err: ErrDuplicateChangeset}
		}
		if executionType != "" && !executionType.Valid() {
			return nil, &ParseError{
				File: identifier,
				Name: name,
				Err:  fmt.Errorf("%w %q (expected once, always or change)", ErrInvalidExecutionType, executionType),
			}
		}
		seen[name] = true

		changesets = append(changesets, New(identifier, name, executionType, context, script))
	}

	return changesets, nil
}

// parseDescriptor extracts the name and the optional type: and context:
// tokens from a header descriptor. The name is everything before the first
// token.
func parseDescriptor(descriptor string) (name string, executionType ExecutionType, context string) {
	nameEnd := len(descriptor)

	if m := typeExpression.FindStringSubmatchIndex(descriptor); m != nil {
		executionType = ExecutionType(descriptor[m[2]:m[3]])
		nameEnd = min(nameEnd, m[2]-len("type:"))
	}
	if m := contextExpression.FindStringSubmatchIndex(descriptor); m != nil {
		context = descriptor[m[2]:m[3]]
		nameEnd = min(nameEnd, m[2]-len("context:"))
	}

	name = strings.TrimSpace(descriptor[:nameEnd])
	return name, executionType, context
}
