// dmicheck checks and formats dm-integrity metadata devices: it dumps the
// on-disk superblock and sweeps the data sectors with direct I/O to find,
// and optionally rewrite, locations the device can no longer serve.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"dmicheck/scanmap"
)

func main() {
	var (
		blockSectors uint64
		noDirect     bool
		randomize    bool
		debug        bool
		withUI       bool
	)

	root := &cobra.Command{
		Use:   "dmicheck",
		Short: "Inspect and repair dm-integrity devices",
		Long: "Dump the dm-integrity superblock of a block device and check, fix or\n" +
			"wipe its data sectors. The device is wiped with zeroes, or with random\n" +
			"data if --randomize is used.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Uint64Var(&blockSectors, "blocksize", defaultBlockSectors, "sectors per bulk I/O chunk")
	root.PersistentFlags().BoolVar(&noDirect, "no-direct", false, "do not use direct I/O")
	root.PersistentFlags().BoolVar(&randomize, "randomize", false, "wipe with random data instead of zeroes")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "print debug traces")
	root.PersistentFlags().BoolVar(&withUI, "ui", false, "show a fullscreen sector map during the sweep")

	options := func() (scanOptions, error) {
		if blockSectors == 0 || blockSectors > 1<<22 {
			return scanOptions{}, fmt.Errorf("--blocksize out of range")
		}
		return scanOptions{
			blockSectors: blockSectors,
			direct:       !noDirect,
			randomize:    randomize,
			debug:        debug,
		}, nil
	}

	deviceCmd := func(use, short string, dc devCommand) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <device>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				opts, err := options()
				if err != nil {
					return err
				}
				return runDevice(args[0], dc, opts, withUI)
			},
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "dump <device>",
			Short: "Dump the dm-integrity superblock",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return dumpSuperblock(args[0], os.Stdout)
			},
		},
		deviceCmd("check", "Use direct I/O to check device access", devCheck),
		deviceCmd("fix", "Check and rewrite sectors with I/O errors", devFix),
		deviceCmd("format", "Wipe the whole device", devFormat),
	)

	if err := root.Execute(); err != nil {
		if errors.Is(err, scanmap.ErrInterrupted) {
			fmt.Fprintln(os.Stderr, "Interrupted")
			os.Exit(130)
		}
		if !errors.Is(err, errNoHeader) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func runDevice(device string, dc devCommand, opts scanOptions, withUI bool) error {
	debugf(opts.debug, "running %s on %s", dc, device)

	sectors, err := deviceSectors(device)
	if err != nil {
		return err
	}

	if withUI {
		ui, err := scanmap.New(fmt.Sprintf("%s – %s", strings.ToUpper(dc.String()), device), sectors)
		if err != nil {
			return fmt.Errorf("ui init: %w", err)
		}
		defer ui.Close()
		opts.ui = ui

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)
		go func() {
			<-sig
			ui.RequestStop()
		}()
	}

	return scanSectors(device, 0, sectors, dc, opts)
}

func debugf(enabled bool, format string, args ...any) {
	if enabled {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
