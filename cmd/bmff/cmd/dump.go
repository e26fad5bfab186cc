package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ugparu/bmff/format/isobmff"
	"github.com/ugparu/bmff/utils/logger"
)

var dumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "Print the box tree of a file",
	Long: `Print every box of FILE with its offset and size, one per line and
indented by depth. Media segments without ftyp are printed as a flat box list.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return dump(cmd.OutOrStdout(), data)
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

func dump(w io.Writer, data []byte) error {
	f, err := isobmff.ReadFile(data)
	if err == nil {
		return isobmff.Fprint(w, f)
	}
	logger.Debugf(name, "not a complete file (%s), reading loose boxes", err.Error())
	boxes, err := isobmff.ReadBoxes(data)
	if err != nil {
		return err
	}
	return isobmff.FprintBoxes(w, boxes)
}
