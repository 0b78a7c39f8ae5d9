// Package permissions stores which roles may run admin-only commands.
package permissions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
)

var (
	// ErrMalformed is returned when the file is not a map of command names to role ID lists.
	ErrMalformed = errors.New("permission file is not in the correct format")
	// ErrRoleAlreadyPresent is returned when granting a role that is already allowed.
	ErrRoleAlreadyPresent = errors.New("role already has permission for the command")
	// ErrRoleNotPresent is returned when revoking a role that was never allowed.
	ErrRoleNotPresent = errors.New("role does not have permission for the command")
)

var codec = sonic.Config{
	SortMapKeys: true,
	UseNumber:   true,
}.Froze()

// File is a JSON document mapping command names to role IDs. Every call reads
// the file again so edits made by hand are picked up.
type File struct {
	path string
	mu   sync.Mutex
}

// New returns a permission file at path. The file is created on first write.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the location of the file.
func (f *File) Path() string {
	return f.path
}

// Roles returns the roles allowed to run cmd.
func (f *File) Roles(cmd string) ([]snowflake.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	return doc[cmd], nil
}

// Allowed reports whether any of roles is listed for cmd.
func (f *File) Allowed(cmd string, roles []snowflake.ID) (bool, error) {
	listed, err := f.Roles(cmd)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if slices.Contains(listed, r) {
			return true, nil
		}
	}
	return false, nil
}

// AddRole grants role permission to run cmd.
func (f *File) AddRole(cmd string, role snowflake.ID) error {
	return f.update(func(doc map[string][]snowflake.ID) error {
		if slices.Contains(doc[cmd], role) {
			return ErrRoleAlreadyPresent
		}
		doc[cmd] = append(doc[cmd], role)
		return nil
	})
}

// RemoveRole revokes the permission of role to run cmd. A command left
// without roles is dropped from the file.
func (f *File) RemoveRole(cmd string, role snowflake.ID) error {
	return f.update(func(doc map[string][]snowflake.ID) error {
		i := slices.Index(doc[cmd], role)
		if i < 0 {
			return ErrRoleNotPresent
		}
		doc[cmd] = slices.Delete(doc[cmd], i, i+1)
		if len(doc[cmd]) == 0 {
			delete(doc, cmd)
		}
		return nil
	})
}

func (f *File) update(fn func(map[string][]snowflake.ID) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return f.write(doc)
}

// read loads the document. A missing or blank file is an empty document.
func (f *File) read() (map[string][]snowflake.ID, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]snowflake.ID{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read permission file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string][]snowflake.ID{}, nil
	}

	var raw map[string][]any
	if err := codec.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	doc := make(map[string][]snowflake.ID, len(raw))
	for cmd, values := range raw {
		ids := make([]snowflake.ID, 0, len(values))
		for _, v := range values {
			id, err := parseID(v)
			if err != nil {
				return nil, fmt.Errorf("%w: command %q: %w", ErrMalformed, cmd, err)
			}
			ids = append(ids, id)
		}
		doc[cmd] = ids
	}
	return doc, nil
}

func (f *File) write(doc map[string][]snowflake.ID) error {
	out := make(map[string][]uint64, len(doc))
	for cmd, ids := range doc {
		values := make([]uint64, len(ids))
		for i, id := range ids {
			values[i] = uint64(id)
		}
		out[cmd] = values
	}

	data, err := codec.MarshalIndent(out, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode permission file: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create permission directory: %w", err)
		}
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write permission file: %w", err)
	}
	return nil
}

func parseID(v any) (snowflake.ID, error) {
	switch id := v.(type) {
	case json.Number:
		return snowflake.Parse(id.String())
	case string:
		return snowflake.Parse(id)
	default:
		return 0, fmt.Errorf("unexpected role id %v", v)
	}
}
