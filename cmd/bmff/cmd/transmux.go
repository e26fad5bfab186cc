package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ugparu/bmff/transmuxer"
	"github.com/ugparu/bmff/utils/logger"
)

const (
	initName      = "init.mp4"
	segmentFormat = "segment_%05d.m4s"
	resultsBuffer = 16
)

var transmuxCmd = &cobra.Command{
	Use:   "transmux IN.flv",
	Short: "Convert an FLV file into fragmented MP4",
	Long: `Convert IN.flv (H.264, H.265 or AV1 video and AAC audio) into an init
segment and one media segment per sample, written as init.mp4 and numbered
.m4s files in the output directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		in, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer in.Close()

		out := viper.GetString("transmux.out")
		n, err := transmuxTo(in, out)
		if err != nil {
			return err
		}
		logger.Infof(name, "wrote %s and %d segments to %s", initName, n, out)
		return nil
	},
}

func init() {
	transmuxCmd.Flags().StringP("out", "o", ".", "output directory")
	mustBindPFlag("transmux.out", transmuxCmd.Flags().Lookup("out"))
	rootCmd.AddCommand(transmuxCmd)
}

// transmuxTo writes the segments of the FLV stream r into dir and returns the
// number of media segments.
func transmuxTo(r io.Reader, dir string) (segments int, err error) {
	if err = os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
		return 0, err
	}

	stream := transmuxer.NewStream(r, resultsBuffer)
	stream.Start()
	defer stream.Close()

	var wroteInit bool
	for res := range stream.Results() {
		if init := res.Init; init != nil {
			logger.Debugf(name, "init segment: video %s, audio %s", codecOf(init.Video), codecOf(init.Audio))
			if err = os.WriteFile(filepath.Join(dir, initName), init.Data, 0o644); err != nil { //nolint:gosec
				return segments, err
			}
			wroteInit = true
			continue
		}
		segments++
		logger.Tracef(name, "%s segment at %d", res.Media.Type, res.Media.Timestamp)
		path := filepath.Join(dir, fmt.Sprintf(segmentFormat, segments))
		if err = os.WriteFile(path, res.Media.Data, 0o644); err != nil { //nolint:gosec
			return segments, err
		}
	}
	<-stream.Done()
	if err = stream.Err(); err != nil {
		return segments, err
	}
	if !wroteInit {
		return segments, errors.New("no sequence headers in stream")
	}
	return segments, nil
}

func codecOf(t *transmuxer.TrackSettings) string {
	if t == nil {
		return "none"
	}
	return t.CodecString()
}
