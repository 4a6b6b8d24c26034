// Package toolkit ships the built-in tool providers: filesystem, shell,
// git, interactive prompt, and MCP bridge. Each provider contributes
// catalog.Tool values; none of them is mandatory — the executor works
// with whatever providers the caller hands it.
package toolkit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ormasoftchile/grimoire/pkg/catalog"
	"github.com/ormasoftchile/grimoire/pkg/dynamic"
)

// FS provides file tools rooted at Base. An empty Base resolves paths
// relative to the process working directory.
type FS struct {
	Base string
}

func (f *FS) resolve(path string) string {
	if f.Base == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(f.Base, path)
}

func (f *FS) Tools() []catalog.Tool {
	return []catalog.Tool{
		{
			Name:        "readFile",
			Description: "Read a file and return its contents as a string",
			Params:      []catalog.Param{{Name: "path", Type: dynamic.TypeString}},
			Handler: func(ctx context.Context, args []any) (any, error) {
				path, _ := args[0].(string)
				data, err := os.ReadFile(f.resolve(path))
				if err != nil {
					return nil, fmt.Errorf("readFile: %w", err)
				}
				return string(data), nil
			},
		},
		{
			Name:        "writeFile",
			Description: "Write a string to a file, creating parent directories",
			Params: []catalog.Param{
				{Name: "path", Type: dynamic.TypeString},
				{Name: "content", Type: dynamic.TypeString},
			},
			Handler: func(ctx context.Context, args []any) (any, error) {
				path, _ := args[0].(string)
				content, _ := args[1].(string)
				dst := f.resolve(path)
				if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
					return nil, fmt.Errorf("writeFile: %w", err)
				}
				if err := os.WriteFile(dst, []byte(content), 0o644); err != nil {
					return nil, fmt.Errorf("writeFile: %w", err)
				}
				return dst, nil
			},
		},
		{
			Name:        "appendFile",
			Description: "Append a string to a file, creating it if absent",
			Params: []catalog.Param{
				{Name: "path", Type: dynamic.TypeString},
				{Name: "content", Type: dynamic.TypeString},
			},
			Handler: func(ctx context.Context, args []any) (any, error) {
				path, _ := args[0].(string)
				content, _ := args[1].(string)
				fh, err := os.OpenFile(f.resolve(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
				if err != nil {
					return nil, fmt.Errorf("appendFile: %w", err)
				}
				defer fh.Close()
				if _, err := fh.WriteString(content); err != nil {
					return nil, fmt.Errorf("appendFile: %w", err)
				}
				return f.resolve(path), nil
			},
		},
		{
			Name:        "listDir",
			Description: "List directory entries, one name per line, directories suffixed with /",
			Params:      []catalog.Param{{Name: "path", Type: dynamic.TypeString}},
			Handler: func(ctx context.Context, args []any) (any, error) {
				path, _ := args[0].(string)
				if path == "" {
					path = "."
				}
				entries, err := os.ReadDir(f.resolve(path))
				if err != nil {
					return nil, fmt.Errorf("listDir: %w", err)
				}
				names := make([]string, 0, len(entries))
				for _, e := range entries {
					name := e.Name()
					if e.IsDir() {
						name += "/"
					}
					names = append(names, name)
				}
				sort.Strings(names)
				return strings.Join(names, "\n"), nil
			},
		},
		{
			Name:        "fileExists",
			Description: "Report whether a path exists",
			Params:      []catalog.Param{{Name: "path", Type: dynamic.TypeString}},
			Handler: func(ctx context.Context, args []any) (any, error) {
				path, _ := args[0].(string)
				_, err := os.Stat(f.resolve(path))
				return strconv.FormatBool(err == nil), nil
			},
		},
	}
}
