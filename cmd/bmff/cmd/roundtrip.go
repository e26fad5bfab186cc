package cmd

import (
	"bytes"
	"os"

	"github.com/spf13/cobra"

	"github.com/ugparu/bmff/format/isobmff"
	"github.com/ugparu/bmff/utils/logger"
)

var roundtripOut string

var roundtripCmd = &cobra.Command{
	Use:   "roundtrip FILE",
	Short: "Decode a file and encode it again",
	Long: `Decode FILE into its box tree and serialize it back. The result is
written to --out when given and compared with the input either way.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		out, identical, err := roundtrip(data)
		if err != nil {
			return err
		}
		if identical {
			logger.Infof(name, "%s: %d bytes, identical after re-encoding", args[0], len(out))
		} else {
			logger.Warningf(name, "%s: %d bytes re-encoded to %d, contents differ", args[0], len(data), len(out))
		}
		if roundtripOut == "" {
			return nil
		}
		return os.WriteFile(roundtripOut, out, 0o644) //nolint:gosec
	},
}

func init() {
	roundtripCmd.Flags().StringVarP(&roundtripOut, "out", "o", "", "write the re-encoded file here")
	rootCmd.AddCommand(roundtripCmd)
}

// roundtrip re-encodes data. Files whose top level boxes are not in the
// canonical order come back reordered.
func roundtrip(data []byte) (out []byte, identical bool, err error) {
	f, err := isobmff.ReadFile(data)
	if err != nil {
		return nil, false, err
	}
	out = f.Bytes()
	return out, bytes.Equal(out, data), nil
}
