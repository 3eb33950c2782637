package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/geomind/agentcore/pkg/models"
)

const (
	maxReadChars   = 50_000
	maxListEntries = 100
)

// ── Inputs ──────────────────────────────────────────────────

type ReadFileInput struct {
	Path string `json:"path" jsonschema_description:"File path, absolute or relative to the sandbox root."`
}

type WriteFileInput struct {
	Path    string `json:"path" jsonschema_description:"File path, absolute or relative to the sandbox root. Parent directories are created."`
	Content string `json:"content" jsonschema_description:"Full content to write. Replaces any existing file."`
}

type ListDirectoryInput struct {
	Path string `json:"path,omitempty" jsonschema_description:"Directory to list. Defaults to the sandbox root."`
}

type CreateDirectoryInput struct {
	Path string `json:"path" jsonschema_description:"Directory to create, with any missing parents."`
}

type DeleteFileInput struct {
	Path string `json:"path" jsonschema_description:"File or empty directory to delete."`
}

// ── Outputs ─────────────────────────────────────────────────

type ReadFileOutput struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Size      int64  `json:"size"`
	Truncated bool   `json:"truncated,omitempty"`
}

type DirEntry struct {
	Name string `json:"name"`
	Type string `json:"type"` // file, directory
	Size int64  `json:"size,omitempty"`
}

type ListDirectoryOutput struct {
	Path      string     `json:"path"`
	Entries   []DirEntry `json:"entries"`
	Total     int        `json:"total"`
	Truncated bool       `json:"truncated,omitempty"`
}

// fileTools builds the filesystem tools rooted at sandboxRoot. Relative
// paths resolve against the root for both the policy check and the
// handler, so the two always see the same path.
func fileTools(sandboxRoot string) []Tool {
	resolve := func(p string) string {
		if p == "" {
			return filepath.Clean(sandboxRoot)
		}
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(sandboxRoot, p)
	}

	pathOp := func(kind models.OperationKind, required bool) func(json.RawMessage) (models.OperationRequest, error) {
		return func(input json.RawMessage) (models.OperationRequest, error) {
			in, err := decode[ReadFileInput](input)
			if err != nil {
				return models.OperationRequest{}, err
			}
			if required && in.Path == "" {
				return models.OperationRequest{}, errors.New("path is required")
			}
			return models.OperationRequest{Kind: kind, Path: resolve(in.Path)}, nil
		}
	}

	return []Tool{
		{
			Definition: models.ToolDefinition{
				Name:        "read_file",
				Description: fmt.Sprintf("Read a text file. Content beyond %d characters is cut off.", maxReadChars),
				InputSchema: GenerateSchema[ReadFileInput](),
			},
			Operation: pathOp(models.OpReadFile, true),
			Handler: func(_ context.Context, input json.RawMessage) (any, error) {
				in, err := decode[ReadFileInput](input)
				if err != nil {
					return nil, err
				}
				return readFile(resolve(in.Path))
			},
		},
		{
			Definition: models.ToolDefinition{
				Name:        "write_file",
				Description: "Write a text file, creating parent directories as needed.",
				InputSchema: GenerateSchema[WriteFileInput](),
			},
			Operation: pathOp(models.OpWriteFile, true),
			Handler: func(_ context.Context, input json.RawMessage) (any, error) {
				in, err := decode[WriteFileInput](input)
				if err != nil {
					return nil, err
				}
				p := resolve(in.Path)
				if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
					return nil, fmt.Errorf("create parent of %s: %w", p, err)
				}
				if err := os.WriteFile(p, []byte(in.Content), 0o644); err != nil {
					return nil, fmt.Errorf("write %s: %w", p, err)
				}
				return map[string]any{"path": p, "bytesWritten": len(in.Content)}, nil
			},
		},
		{
			Definition: models.ToolDefinition{
				Name:        "list_directory",
				Description: fmt.Sprintf("List a directory. At most %d entries are returned.", maxListEntries),
				InputSchema: GenerateSchema[ListDirectoryInput](),
			},
			Operation: pathOp(models.OpReadFile, false),
			Handler: func(_ context.Context, input json.RawMessage) (any, error) {
				in, err := decode[ListDirectoryInput](input)
				if err != nil {
					return nil, err
				}
				return listDirectory(resolve(in.Path))
			},
		},
		{
			Definition: models.ToolDefinition{
				Name:        "create_directory",
				Description: "Create a directory and any missing parents.",
				InputSchema: GenerateSchema[CreateDirectoryInput](),
			},
			Operation: pathOp(models.OpWriteFile, true),
			Handler: func(_ context.Context, input json.RawMessage) (any, error) {
				in, err := decode[CreateDirectoryInput](input)
				if err != nil {
					return nil, err
				}
				p := resolve(in.Path)
				if err := os.MkdirAll(p, 0o755); err != nil {
					return nil, fmt.Errorf("create %s: %w", p, err)
				}
				return map[string]any{"path": p, "created": true}, nil
			},
		},
		{
			Definition: models.ToolDefinition{
				Name:        "delete_file",
				Description: "Delete a file or an empty directory.",
				InputSchema: GenerateSchema[DeleteFileInput](),
			},
			Operation: pathOp(models.OpDeleteFile, true),
			Handler: func(_ context.Context, input json.RawMessage) (any, error) {
				in, err := decode[DeleteFileInput](input)
				if err != nil {
					return nil, err
				}
				p := resolve(in.Path)
				if err := os.Remove(p); err != nil {
					return nil, fmt.Errorf("delete %s: %w", p, err)
				}
				return map[string]any{"path": p, "deleted": true}, nil
			},
		},
	}
}

func readFile(p string) (*ReadFileOutput, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory; use list_directory", p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	content, truncated := clampRunes(string(data), maxReadChars)
	return &ReadFileOutput{Path: p, Content: content, Size: info.Size(), Truncated: truncated}, nil
}

func listDirectory(p string) (*ListDirectoryOutput, error) {
	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	out := &ListDirectoryOutput{Path: p, Total: len(entries), Entries: []DirEntry{}}
	for i, e := range entries {
		if i == maxListEntries {
			out.Truncated = true
			break
		}
		de := DirEntry{Name: e.Name(), Type: "file"}
		if e.IsDir() {
			de.Type = "directory"
		} else if info, err := e.Info(); err == nil {
			de.Size = info.Size()
		}
		out.Entries = append(out.Entries, de)
	}
	return out, nil
}

// clampRunes cuts s to at most n runes.
func clampRunes(s string, n int) (string, bool) {
	if len(s) <= n {
		return s, false
	}
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]), true
}
