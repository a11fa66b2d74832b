// Package denyfile rewrites denyhosts access files, dropping every line
// that contains a target address.
package denyfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Failure classes for a single rewrite. The sweep inspects these with
// errors.Is; in every case the deny file itself is left untouched.
var (
	ErrOpen    = errors.New("deny file could not be opened")
	ErrRead    = errors.New("deny file could not be read")
	ErrScratch = errors.New("scratch file failure")
	ErrReplace = errors.New("deny file could not be replaced")
)

// RemoveLines rewrites path without the lines that contain needle as a
// substring, returning how many lines were dropped. Surviving lines keep
// their exact bytes, line terminators included, so a no-match run leaves
// the file byte-identical.
//
// The filtered content is built in a scratch file first; only when the
// whole read succeeds is the original copied to path+backupSuffix and the
// scratch content copied over path. A copy is used instead of a rename
// because the scratch file may live on a different volume than the deny
// files. The rewritten file is chmodded to mode since the scratch file is
// created owner-only and the copy must not narrow the deny file's access.
func RemoveLines(path, needle, backupSuffix string, mode os.FileMode) (int, error) {
	src, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	defer src.Close()

	scratch, err := os.CreateTemp("", "undeny-*")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrScratch, err)
	}
	// The scratch file must never outlive this call, whichever branch
	// returns first.
	defer func() {
		scratch.Close()
		os.Remove(scratch.Name())
	}()

	removed := 0
	reader := bufio.NewReader(src)
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			if strings.Contains(line, needle) {
				removed++
				log.Debug("dropping deny entry", "file", path)
			} else if _, err := scratch.WriteString(line); err != nil {
				return 0, fmt.Errorf("%w: %v", ErrScratch, err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrRead, readErr)
		}
	}
	if err := scratch.Sync(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrScratch, err)
	}

	if err := copyFile(path, path+backupSuffix); err != nil {
		return 0, fmt.Errorf("%w: backup: %v", ErrReplace, err)
	}
	if err := copyFile(scratch.Name(), path); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrReplace, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		return 0, fmt.Errorf("%w: chmod: %v", ErrReplace, err)
	}
	return removed, nil
}

// copyFile replaces dst's content with src's and syncs it to disk.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
