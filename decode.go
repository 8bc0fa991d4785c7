package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/gr-butler/weathernode/payload"
	"github.com/gr-butler/weathernode/sensors"
	"github.com/spf13/cobra"
)

var decodeFields bool

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode an uplink frame",
	Long:  "decode prints the readings carried by a hex encoded frame, as the ground side sees them.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, argv []string) error {
		return decodeFrame(cmd.OutOrStdout(), argv[0], decodeFields)
	},
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeFields, "fields", false, "Also print each raw field")
}

func decodeFrame(out io.Writer, s string, fields bool) error {
	s = strings.NewReplacer(" ", "", ":", "", "0x", "").Replace(strings.TrimSpace(s))
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("frame is not hex: %w", err)
	}
	rec, err := payload.Decode(b)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, rec)
	fmt.Fprintf(out, "rain=%.2fmm\n", sensors.Accumulation(rec.Tips()).Float64())
	if !fields {
		return nil
	}
	for _, f := range payload.Fields() {
		var raw int64
		switch {
		case f.Width == 1:
			raw = int64(b[f.Offset])
		case f.Signed:
			raw = int64(int16(binary.LittleEndian.Uint16(b[f.Offset:])))
		default:
			raw = int64(binary.LittleEndian.Uint16(b[f.Offset:]))
		}
		fmt.Fprintf(out, "%2d %-10s %d\n", f.Offset, f.Name, raw)
	}
	return nil
}
