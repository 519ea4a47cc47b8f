package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fridayweigh/weights/src/backup"
	"github.com/fridayweigh/weights/src/config"
	"github.com/fridayweigh/weights/src/db"
	"github.com/fridayweigh/weights/src/logging"
	"github.com/fridayweigh/weights/src/website"
	"github.com/spf13/cobra"
)

func init() {
	backupCommand := &cobra.Command{
		Use:   "backup",
		Short: "Upload a snapshot of the database to the backup bucket now",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			conn := db.MustOpen()
			defer conn.Close()
			if !db.IsSQLite(conn) {
				logging.Fatal().Msg("backups only work with the sqlite driver")
			}

			uploader, err := backup.NewUploader(ctx, config.Config.Backup)
			if err != nil {
				logging.Fatal().Err(err).Msg("failed to set up backups")
			}
			key, err := uploader.Run(ctx, conn, time.Now())
			if err != nil {
				logging.Fatal().Err(err).Msg("backup failed")
			}
			fmt.Printf("Uploaded %s to bucket %s\n", key, config.Config.Backup.Bucket)
		},
	}

	website.WebsiteCommand.AddCommand(backupCommand)
}
