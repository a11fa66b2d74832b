package denyfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func scratchCount(t *testing.T) int {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(os.TempDir(), "undeny-*"))
	if err != nil {
		t.Fatalf("glob scratch files: %v", err)
	}
	return len(files)
}

func TestRemoveLines(t *testing.T) {
	dir := t.TempDir()
	original := "1.2.3.4 blocked\n5.6.7.8 blocked\n1.2.3.4 again\n"
	path := writeFile(t, dir, "hosts.deny", original, 0644)

	removed, err := RemoveLines(path, "1.2.3.4", "_orig", 0644)
	if err != nil {
		t.Fatalf("RemoveLines: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if got := readFile(t, path); got != "5.6.7.8 blocked\n" {
		t.Errorf("file content = %q, want %q", got, "5.6.7.8 blocked\n")
	}
	if got := readFile(t, path+"_orig"); got != original {
		t.Errorf("backup content = %q, want original %q", got, original)
	}
}

func TestRemoveLinesNoMatch(t *testing.T) {
	dir := t.TempDir()
	original := "10.0.0.1 sshd\n10.0.0.2 sshd\n"
	path := writeFile(t, dir, "hosts", original, 0644)

	removed, err := RemoveLines(path, "192.168.1.1", "_orig", 0644)
	if err != nil {
		t.Fatalf("RemoveLines: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if got := readFile(t, path); got != original {
		t.Errorf("file changed on no-match run: %q", got)
	}
	if got := readFile(t, path+"_orig"); got != original {
		t.Errorf("backup differs from original: %q", got)
	}
}

func TestRemoveLinesIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hosts", "1.2.3.4\n5.6.7.8\n", 0644)

	if _, err := RemoveLines(path, "1.2.3.4", "_orig", 0644); err != nil {
		t.Fatalf("first run: %v", err)
	}
	afterFirst := readFile(t, path)

	removed, err := RemoveLines(path, "1.2.3.4", "_orig", 0644)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if removed != 0 {
		t.Errorf("second run removed = %d, want 0", removed)
	}
	if got := readFile(t, path); got != afterFirst {
		t.Errorf("second run changed the file: %q vs %q", got, afterFirst)
	}
}

func TestRemoveLinesPreservesUnterminatedLastLine(t *testing.T) {
	dir := t.TempDir()
	original := "10.0.0.1\n10.0.0.2" // no trailing newline
	path := writeFile(t, dir, "hosts", original, 0644)

	if _, err := RemoveLines(path, "192.168.1.1", "_orig", 0644); err != nil {
		t.Fatalf("RemoveLines: %v", err)
	}
	if got := readFile(t, path); got != original {
		t.Errorf("line terminators not preserved: %q, want %q", got, original)
	}
}

func TestRemoveLinesMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "absent")
	before := scratchCount(t)

	_, err := RemoveLines(path, "1.2.3.4", "_orig", 0644)
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("err = %v, want ErrOpen", err)
	}
	if _, statErr := os.Stat(path + "_orig"); !os.IsNotExist(statErr) {
		t.Errorf("backup created for a missing file")
	}
	if after := scratchCount(t); after > before {
		t.Errorf("scratch files leaked: %d before, %d after", before, after)
	}
}

func TestRemoveLinesReadFailure(t *testing.T) {
	// A directory opens fine but fails on the first read, exercising the
	// mid-stream failure path.
	dir := t.TempDir()
	target := filepath.Join(dir, "isadir")
	if err := os.Mkdir(target, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	before := scratchCount(t)

	_, err := RemoveLines(target, "1.2.3.4", "_orig", 0644)
	if !errors.Is(err, ErrRead) {
		t.Fatalf("err = %v, want ErrRead", err)
	}
	if _, statErr := os.Stat(target + "_orig"); !os.IsNotExist(statErr) {
		t.Errorf("backup created despite read failure")
	}
	if after := scratchCount(t); after > before {
		t.Errorf("scratch files leaked: %d before, %d after", before, after)
	}
}

func TestRemoveLinesRestoresMode(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hosts", "1.2.3.4\n", 0600)

	if _, err := RemoveLines(path, "1.2.3.4", "_orig", 0644); err != nil {
		t.Fatalf("RemoveLines: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if got := info.Mode().Perm(); got != 0644 {
		t.Errorf("mode = %o, want 0644", got)
	}
}

func TestRemoveLinesSubstringContainment(t *testing.T) {
	// Containment matching is inherited behavior: a needle that is a
	// substring of a longer token removes that line too.
	dir := t.TempDir()
	path := writeFile(t, dir, "hosts", "11.2.3.45 unrelated\n9.9.9.9 other\n", 0644)

	removed, err := RemoveLines(path, "1.2.3.4", "_orig", 0644)
	if err != nil {
		t.Fatalf("RemoveLines: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if got := readFile(t, path); got != "9.9.9.9 other\n" {
		t.Errorf("file content = %q", got)
	}
}
