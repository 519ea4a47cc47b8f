package cmd

import (
	"errors"
	"io/fs"
	"net/http"
	"os"

	"github.com/fridayweigh/weights/src/logging"
	"github.com/fridayweigh/weights/src/s3local"
	"github.com/fridayweigh/weights/src/website"
	"github.com/spf13/cobra"
)

func init() {
	var addr string

	s3Command := &cobra.Command{
		Use:   "s3local [storage folder]",
		Short: "Run a local s3 server that stores in the filesystem",
		Run: func(cmd *cobra.Command, args []string) {
			targetFolder := "./tmp"
			if len(args) > 0 {
				targetFolder = args[0]
			}
			if err := os.MkdirAll(targetFolder, fs.ModePerm); err != nil {
				logging.Fatal().Err(err).Msg("failed to create storage folder")
			}

			logging.Info().Str("addr", addr).Str("folder", targetFolder).Msg("Serving local s3")
			err := http.ListenAndServe(addr, s3local.Handler(targetFolder))
			if !errors.Is(err, http.ErrServerClosed) {
				logging.Fatal().Err(err).Msg("local s3 server failed")
			}
		},
	}
	s3Command.Flags().StringVar(&addr, "addr", ":9000", "Address to listen on")

	website.WebsiteCommand.AddCommand(s3Command)
}
