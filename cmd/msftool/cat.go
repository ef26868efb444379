package main

import (
	"fmt"
	"strconv"

	"github.com/oakreader/msf/msf"
	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat <msf-file> <stream-index>",
	Short: "Print the raw bytes of one stream",
	Args:  cobra.ExactArgs(2),
	RunE:  runCat,
}

func runCat(cmd *cobra.Command, args []string) error {
	path := args[0]
	idx, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid stream index %q: %w", args[1], err)
	}

	f, err := msf.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open MSF file: %w", err)
	}
	defer f.Close()

	data, err := f.ReadStream(uint32(idx))
	if err != nil {
		return fmt.Errorf("failed to read stream %d: %w", idx, err)
	}

	_, err = output.Write(data)
	return err
}
