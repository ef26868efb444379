package main

import (
	"fmt"

	"github.com/oakreader/msf/msf"
	"github.com/spf13/cobra"
)

var streamsCmd = &cobra.Command{
	Use:   "streams <msf-file>",
	Short: "List the streams in an MSF container",
	Args:  cobra.ExactArgs(1),
	RunE:  runStreams,
}

func runStreams(cmd *cobra.Command, args []string) error {
	path := args[0]

	f, err := msf.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open MSF file: %w", err)
	}
	defer f.Close()

	numStreams, err := f.NumStreams()
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	layout, err := f.Layout()
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for i := uint32(0); i < numStreams; i++ {
		size := layout.StreamSizes[i]
		if size == msf.NilStreamSize {
			fmt.Fprintf(output, "stream %d: deleted\n", i)
			continue
		}
		fmt.Fprintf(output, "stream %d: size=%d blocks=%v\n", i, size, layout.StreamBlocks[i])
	}

	return nil
}
