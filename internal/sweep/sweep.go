// Package sweep runs the full removal pass: stop the host-blocking
// service, rewrite each deny file, then start the service again.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"

	"github.com/UTS-eResearch/hpc-undeny/internal/config"
	"github.com/UTS-eResearch/hpc-undeny/internal/denyfile"
	"github.com/UTS-eResearch/hpc-undeny/internal/metrics"
	"github.com/UTS-eResearch/hpc-undeny/internal/service"
)

// ErrInvalidAddress rejects anything that is not a full dotted-quad IPv4
// address.
var ErrInvalidAddress = errors.New("not a valid dotted-quad IPv4 address")

// ErrLocked is reported when another run already holds the sweep lock.
var ErrLocked = errors.New("another undeny run holds the lock")

// Result summarises one run. FileErr and StartErr are not fatal to the
// run: edits already applied stay applied, and the caller decides how to
// report them.
type Result struct {
	FilesEdited  int
	LinesRemoved int
	FailedFile   string
	FileErr      error
	StartErr     error
}

// ValidateAddress checks that s is a full dotted-quad IPv4 address:
// exactly four decimal octets in 0-255. Each octet is parsed explicitly
// rather than through net.ParseIP, which would also let shorthand and
// IPv4-mapped IPv6 notation through.
func ValidateAddress(s string) error {
	octets := strings.Split(s, ".")
	if len(octets) != 4 {
		return fmt.Errorf("%q: %w", s, ErrInvalidAddress)
	}
	for _, octet := range octets {
		if len(octet) == 0 || len(octet) > 3 {
			return fmt.Errorf("%q: %w", s, ErrInvalidAddress)
		}
		for i := 0; i < len(octet); i++ {
			if octet[i] < '0' || octet[i] > '9' {
				return fmt.Errorf("%q: %w", s, ErrInvalidAddress)
			}
		}
		n, err := strconv.Atoi(octet)
		if err != nil || n > 255 {
			return fmt.Errorf("%q: %w", s, ErrInvalidAddress)
		}
	}
	return nil
}

// Run drives one removal pass for addr. It returns an error only when the
// run aborts before any file could be touched (invalid address, stop
// failure); per-file failures and restart failures end the run normally
// with the detail in the Result.
//
// The service is restarted no matter how the file sweep went: leaving the
// host unprotected is worse than leaving stale deny entries.
func Run(ctx context.Context, cfg *config.Config, ctl service.Controller, addr string) (*Result, error) {
	if err := ValidateAddress(addr); err != nil {
		return nil, err
	}

	log.Info("removing address from deny files", "address", addr, "files", len(cfg.DenyFiles))

	if err := ctl.SetState(ctx, service.Stopped); err != nil {
		metrics.ServiceFailed("stop")
		log.Error("could not stop service, aborting before any file edit",
			"service", cfg.Service, "error", err)
		return nil, fmt.Errorf("stop service: %w", err)
	}

	res := &Result{}
	processFiles(ctx, cfg, addr, res)

	if err := ctl.SetState(ctx, service.Running); err != nil {
		metrics.ServiceFailed("start")
		log.Error("could not start service again", "service", cfg.Service, "error", err)
		res.StartErr = err
	}

	metrics.RunCompleted()
	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Warn("could not write metrics textfile", "path", cfg.MetricsFile, "error", err)
		}
	}
	return res, nil
}

// processFiles rewrites cfg.DenyFiles in order under an exclusive lock,
// abandoning the remainder of the list on the first failure. Files before
// the failing one keep their edits; files after it are never touched.
func processFiles(ctx context.Context, cfg *config.Config, addr string, res *Result) {
	lock := flock.New(cfg.LockPath)
	locked, err := lock.TryLock()
	if err == nil && !locked {
		err = ErrLocked
	}
	if err != nil {
		log.Error("could not acquire sweep lock, skipping all files",
			"path", cfg.LockPath, "error", err)
		res.FileErr = err
		return
	}
	defer lock.Unlock()

	for _, path := range cfg.DenyFiles {
		if ctx.Err() != nil {
			log.Warn("interrupted, abandoning remaining files", "error", ctx.Err())
			res.FileErr = ctx.Err()
			return
		}
		removed, err := denyfile.RemoveLines(path, addr, cfg.BackupSuffix, cfg.FileMode)
		if err != nil {
			metrics.FileFailed()
			log.Error("deny file edit failed, abandoning remaining files",
				"file", path, "error", err)
			res.FailedFile = path
			res.FileErr = err
			return
		}
		metrics.FileEdited(removed)
		res.FilesEdited++
		res.LinesRemoved += removed
		log.Info("deny file rewritten", "file", path, "removed", removed)
	}
}
