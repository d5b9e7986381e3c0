// Package pyreq reads pip requirements files. The build pipeline treats
// the requirements file as the single input of the dependency layer, so
// parsing is strict: a line that pip would reject fails the whole load.
package pyreq

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Requirement is one (package, version constraint) pair from the manifest.
type Requirement struct {
	Name      string // distribution name, e.g. "fastapi"
	Extras    string // optional extras, e.g. "standard" from "uvicorn[standard]"
	Specifier string // version constraint, e.g. "==0.110.0" or ">=1,<2"
	Marker    string // optional environment marker after ";"
}

// String renders the requirement back in pip syntax.
func (r Requirement) String() string {
	s := r.Name
	if r.Extras != "" {
		s += "[" + r.Extras + "]"
	}
	s += r.Specifier
	if r.Marker != "" {
		s += " ; " + r.Marker
	}
	return s
}

// File is a parsed requirements manifest. Digest covers the raw file
// bytes, matching how a byte-for-byte identical manifest keeps the
// dependency layer cache warm.
type File struct {
	Path         string
	Requirements []Requirement
	Digest       digest.Digest
}

// Load reads and parses the requirements file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	reqs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	return &File{
		Path:         path,
		Requirements: reqs,
		Digest:       digest.FromBytes(data),
	}, nil
}

// Parse parses requirements file content, preserving declaration order.
// Comments and blank lines are skipped. Include directives and pip
// options are rejected: the dependency layer must be fully described by
// this one file.
func Parse(data []byte) ([]Requirement, error) {
	var reqs []Requirement

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "-") {
			return nil, fmt.Errorf("line %d: pip options and includes are not supported: %q", lineNo, line)
		}

		req, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		reqs = append(reqs, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return reqs, nil
}

func stripComment(line string) string {
	if i := strings.Index(line, "#"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

func parseLine(line string) (Requirement, error) {
	var req Requirement

	if i := strings.Index(line, ";"); i >= 0 {
		req.Marker = strings.TrimSpace(line[i+1:])
		line = strings.TrimSpace(line[:i])
	}

	rest := line
	if i := strings.IndexAny(rest, "<>=!~"); i >= 0 {
		req.Specifier = strings.ReplaceAll(rest[i:], " ", "")
		rest = strings.TrimSpace(rest[:i])
	}

	if i := strings.Index(rest, "["); i >= 0 {
		end := strings.Index(rest, "]")
		if end < i {
			return req, fmt.Errorf("unclosed extras bracket in %q", line)
		}
		req.Extras = rest[i+1 : end]
		rest = rest[:i] + rest[end+1:]
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return req, fmt.Errorf("missing package name in %q", line)
	}
	if !validName(rest) {
		return req, fmt.Errorf("invalid package name %q", rest)
	}
	req.Name = rest

	return req, nil
}

// validName checks PEP 508 name syntax: letters, digits, dot, dash,
// underscore, starting and ending alphanumeric.
func validName(name string) bool {
	for i, r := range name {
		alnum := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
		if alnum {
			continue
		}
		if (r == '.' || r == '-' || r == '_') && i > 0 && i < len(name)-1 {
			continue
		}
		return false
	}
	return len(name) > 0
}
