package cmd

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ugparu/bmff/format/flv"
	"github.com/ugparu/bmff/utils/logger"
)

var rebaseCmd = &cobra.Command{
	Use:   "rebase IN.flv",
	Short: "Rewrite an FLV file with timestamps starting at zero",
	Long: `Rewrite IN.flv so that its first audio or video tag is at 0 ms. Audio and
video bodies are decoded and encoded again; tags that do not decode are
dropped. Script data is copied as is.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		in, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer in.Close()

		path := viper.GetString("rebase.out")
		out, err := os.Create(path)
		if err != nil {
			return err
		}
		kept, dropped, err := rebase(in, out)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		logger.Infof(name, "wrote %d tags to %s, dropped %d", kept, path, dropped)
		return nil
	},
}

func init() {
	rebaseCmd.Flags().StringP("out", "o", "rebased.flv", "output file")
	mustBindPFlag("rebase.out", rebaseCmd.Flags().Lookup("out"))
	rootCmd.AddCommand(rebaseCmd)
}

// rebase copies the FLV stream r to w, shifting timestamps so the first
// audio or video tag starts at zero. Earlier tags are clamped to zero.
func rebase(r io.Reader, w io.Writer) (kept, dropped int, err error) {
	fr := flv.NewReader(r)
	hdr, err := fr.ReadHeader()
	if err != nil {
		return 0, 0, err
	}
	fw := flv.NewWriter(w)
	if err = fw.WriteHeader(hdr); err != nil {
		return 0, 0, err
	}

	var base uint32
	based := false
	for {
		tag, err := fr.ReadTag()
		if errors.Is(err, io.EOF) {
			return kept, dropped, nil
		}
		if err != nil {
			return kept, dropped, err
		}

		media := tag.Type == flv.TagAudio || tag.Type == flv.TagVideo
		if media && !based {
			base, based = tag.Timestamp, true
		}
		ts := uint32(0)
		if based && tag.Timestamp > base {
			ts = tag.Timestamp - base
		}

		out, err := retime(tag, ts)
		if err != nil {
			logger.Debugf(name, "dropping %s tag at %d ms: %v", tag.Type, tag.Timestamp, err)
			dropped++
			continue
		}
		if err = fw.WriteTag(out); err != nil {
			return kept, dropped, err
		}
		kept++
	}
}

// retime returns tag at timestamp ts with its audio or video body encoded
// again.
func retime(tag flv.Tag, ts uint32) (flv.Tag, error) {
	switch tag.Type {
	case flv.TagAudio:
		a, err := tag.Audio()
		if err != nil {
			return tag, err
		}
		return flv.NewAudioTag(ts, &a), nil
	case flv.TagVideo:
		v, err := tag.Video()
		if err != nil {
			return tag, err
		}
		return flv.NewVideoTag(ts, &v), nil
	}
	tag.Timestamp = ts
	return tag, nil
}
