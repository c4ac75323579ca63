package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gen2brain/aio"
)

var iecCmd = &cobra.Command{
	Use:   "iec <file>",
	Short: "List the IEC61937 bursts of a bitstream file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		rate, _ := cmd.Flags().GetUint32("rate")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("error reading file: %w", err)
		}

		count := 0
		for off := 0; off < len(data) && (limit <= 0 || count < limit); {
			h, err := aio.SearchBurstHeader(data[off:])
			if errors.Is(err, aio.ErrNoBurstHeader) {
				break
			}

			typ := h.Type()
			fmt.Printf("%8d: %-7s swapped %-5v error %-5v Pd %5d nominal %d Hz\n",
				off+h.Offset, typ, h.Swapped, h.ErrorFlag(), h.Pd, aio.NominalRate(typ, rate))

			count++
			off += h.Offset + 8
		}

		if count == 0 {
			return fmt.Errorf("%s: %w", args[0], aio.ErrNoBurstHeader)
		}

		return nil
	},
}

func init() {
	iecCmd.Flags().Int("limit", 0, "Stop after this many bursts, 0 for all")
	iecCmd.Flags().Uint32("rate", 48000, "Rate the stream is carried at")
}
