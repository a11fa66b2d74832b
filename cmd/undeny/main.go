package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/UTS-eResearch/hpc-undeny/internal/config"
	"github.com/UTS-eResearch/hpc-undeny/internal/service"
	"github.com/UTS-eResearch/hpc-undeny/internal/sweep"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: sudo undeny IP_address")
	fmt.Fprintln(os.Stderr, "  Removes a full dotted-quad IP address from the denyhosts files")
	fmt.Fprintln(os.Stderr, "  and restarts the denyhosts service.")
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if os.Geteuid() != 0 {
		usage()
		fmt.Fprintln(os.Stderr, "Error: you have to run this program as root (sudo).")
		os.Exit(1)
	}

	if flag.NArg() != 1 {
		usage()
		fmt.Fprintln(os.Stderr, "Error: you need to enter an IP address.")
		os.Exit(2)
	}
	addr := flag.Arg(0)
	if err := sweep.ValidateAddress(addr); err != nil {
		usage()
		fmt.Fprintf(os.Stderr, "Error: %s is not a valid IP address.\n", addr)
		os.Exit(2)
	}

	cfg := config.Load()

	logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to open log file %s: %v\n", cfg.LogPath, err)
		os.Exit(1)
	}
	defer logFile.Close()
	log.SetOutput(logFile)
	log.SetReportTimestamp(true)

	// An interrupt lets the file in progress finish; the service restart
	// still runs.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctl := &service.Command{
		Service: cfg.Service,
		Path:    cfg.ServiceCommand,
		Timeout: cfg.ServiceTimeout,
	}

	res, err := sweep.Run(ctx, cfg, ctl, addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if res.FileErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: file sweep stopped early: %v\n", res.FileErr)
	}
	if res.StartErr != nil {
		fmt.Fprintf(os.Stderr, "Error: could not start the %s service again: %v\n",
			cfg.Service, res.StartErr)
	}
	fmt.Printf("Removed %d line(s) across %d file(s) for %s.\n",
		res.LinesRemoved, res.FilesEdited, addr)
}
