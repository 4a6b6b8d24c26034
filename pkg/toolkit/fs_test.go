package toolkit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ormasoftchile/grimoire/pkg/catalog"
	"github.com/ormasoftchile/grimoire/pkg/dynamic"
)

func fsCatalog(t *testing.T, base string) *catalog.Catalog {
	t.Helper()
	return catalog.Build([]catalog.Provider{&FS{Base: base}}, nil)
}

func TestFSReadWrite(t *testing.T) {
	dir := t.TempDir()
	cat := fsCatalog(t, dir)
	ctx := context.Background()

	if _, err := cat.Invoke(ctx, "writeFile", dynamic.PositionalStrings([]string{"sub/note.txt", "hello"})); err != nil {
		t.Fatalf("writeFile: %v", err)
	}

	got, err := cat.Invoke(ctx, "readFile", dynamic.PositionalStrings([]string{"sub/note.txt"}))
	if err != nil {
		t.Fatalf("readFile: %v", err)
	}
	if got != "hello" {
		t.Errorf("readFile = %q, want hello", got)
	}
}

func TestFSAppend(t *testing.T) {
	dir := t.TempDir()
	cat := fsCatalog(t, dir)
	ctx := context.Background()

	for _, chunk := range []string{"a", "b"} {
		if _, err := cat.Invoke(ctx, "appendFile", dynamic.PositionalStrings([]string{"log.txt", chunk})); err != nil {
			t.Fatalf("appendFile: %v", err)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, "log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "ab" {
		t.Errorf("appended content = %q, want ab", data)
	}
}

func TestFSListDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	cat := fsCatalog(t, dir)
	got, err := cat.Invoke(context.Background(), "listDir", dynamic.PositionalStrings([]string{"."}))
	if err != nil {
		t.Fatalf("listDir: %v", err)
	}
	want := "a.txt\nb.txt\nnested/"
	if got != want {
		t.Errorf("listDir = %q, want %q", got, want)
	}
}

func TestFSFileExists(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "yes.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cat := fsCatalog(t, dir)
	ctx := context.Background()

	got, _ := cat.Invoke(ctx, "fileExists", dynamic.PositionalStrings([]string{"yes.txt"}))
	if got != "true" {
		t.Errorf("fileExists(yes.txt) = %v, want true", got)
	}
	got, _ = cat.Invoke(ctx, "fileExists", dynamic.PositionalStrings([]string{"no.txt"}))
	if got != "false" {
		t.Errorf("fileExists(no.txt) = %v, want false", got)
	}
}

func TestFSReadMissing(t *testing.T) {
	cat := fsCatalog(t, t.TempDir())
	if _, err := cat.Invoke(context.Background(), "readFile", dynamic.PositionalStrings([]string{"absent.txt"})); err == nil {
		t.Fatal("expected error for missing file")
	}
}
