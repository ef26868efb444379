package main

import (
	"fmt"

	"github.com/oakreader/msf/msf"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <msf-file>",
	Short: "Display MSF super block information",
	Long:  `Display the super block fields and stream count of an MSF container.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	path := args[0]

	f, err := msf.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open MSF file: %w", err)
	}
	defer f.Close()

	sb := f.SuperBlock()
	fmt.Fprintf(output, "File: %s\n", path)
	fmt.Fprintf(output, "Block Size: %d\n", sb.BlockSize)
	fmt.Fprintf(output, "Num Blocks: %d\n", sb.NumBlocks)
	fmt.Fprintf(output, "Free Block Map Block: %d\n", sb.FreeBlockMapBlock)
	fmt.Fprintf(output, "Block Map Addr: %d\n", sb.BlockMapAddr)
	fmt.Fprintf(output, "Num Directory Bytes: %d\n", sb.NumDirectoryBytes)
	fmt.Fprintf(output, "File Size: %d\n", f.FileSize())

	numStreams, err := f.NumStreams()
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}
	fmt.Fprintf(output, "Num Streams: %d\n", numStreams)

	return nil
}
