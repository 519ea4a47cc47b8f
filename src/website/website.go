package website

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fridayweigh/weights/src/auth"
	"github.com/fridayweigh/weights/src/backup"
	"github.com/fridayweigh/weights/src/broadcast"
	"github.com/fridayweigh/weights/src/config"
	"github.com/fridayweigh/weights/src/db"
	"github.com/fridayweigh/weights/src/jobs"
	"github.com/fridayweigh/weights/src/logging"
	"github.com/fridayweigh/weights/src/migration"
	"github.com/fridayweigh/weights/src/migration/types"
	"github.com/fridayweigh/weights/src/templates"
	"github.com/fridayweigh/weights/src/trackerdata"
	"github.com/fridayweigh/weights/src/utils"
	"github.com/fridayweigh/weights/src/weekdates"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

var WebsiteCommand = &cobra.Command{
	Use:   "weights",
	Short: "Run the weight tracker",
	Run: func(cmd *cobra.Command, args []string) {
		defer logging.LogPanics(nil)
		logging.Info().Msg("Hello, weights!")

		templates.Init()

		conn := db.MustOpen()
		defer conn.Close()
		if err := migration.Migrate(context.Background(), conn, types.MigrationVersion{}); err != nil {
			logging.Fatal().Err(err).Msg("failed to migrate database")
		}

		sessions := auth.NewSessionStore(auth.SessionStoreOpts{
			Timeout: utils.OrDefault(config.Config.Auth.SessionTimeout, auth.DefaultSessionTimeout),
		})
		authenticator := &auth.Authenticator{
			Users:    trackerdata.AuthUsers{Conn: conn},
			Sessions: sessions,
		}
		hub := broadcast.NewHub()

		var wg sync.WaitGroup

		// Start background jobs
		wg.Add(1)
		backgroundJobs := jobs.Jobs{
			auth.PeriodicallySweepSessions(sessions, utils.OrDefault(config.Config.Auth.SweepInterval, auth.DefaultSweepInterval)),
			hub.Run(),
			backup.PeriodicallyBackUp(conn, config.Config.Backup),
		}

		// Create HTTP server
		wg.Add(1)
		server := http.Server{
			Addr: config.Config.Addr,
			Handler: NewWebsiteRoutes(Deps{
				Conn:  conn,
				Auth:  authenticator,
				Hub:   hub,
				Clock: clockwork.NewRealClock(),
				Dates: weekdates.Generator{
					Clock:    clockwork.NewRealClock(),
					Location: config.Config.Location(),
				},
				DistDir: config.Config.DistDir,
			}),
		}
		go func() {
			logging.Info().Str("addr", config.Config.Addr).Msg("Serving the weight tracker")
			serverErr := server.ListenAndServe()
			if !errors.Is(serverErr, http.ErrServerClosed) {
				logging.Error().Err(serverErr).Msg("Server shut down unexpectedly")
			}
			// The wg.Done() happens in the shutdown logic below.
		}()

		// Wait for SIGINT/SIGTERM in the background and trigger graceful shutdown
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-signals // First signal (start shutdown)
			logging.Info().Msg("Shutting down the weight tracker")

			const timeout = 10 * time.Second

			go func() {
				logging.Info().Msg("Shutting down background jobs...")
				unfinished := backgroundJobs.CancelAndWait(timeout)
				if len(unfinished) == 0 {
					logging.Info().Msg("Background jobs closed gracefully")
				} else {
					logging.Warn().Strs("Unfinished", unfinished).Msg("Background jobs did not finish by the deadline")
				}
				wg.Done()
			}()

			// Gracefully shut down the HTTP server
			go func() {
				timeoutCtx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				err := server.Shutdown(timeoutCtx)
				if err != nil {
					logging.Warn().Err(err).Msg("Server did not shut down gracefully")
				}
				wg.Done()
			}()

			<-signals // Second signal (force quit)
			logging.Warn().Strs("Unfinished background jobs", backgroundJobs.ListUnfinished()).Msg("Forcibly killed the weight tracker")
			os.Exit(1)
		}()

		// Wait for all of the above to finish, then exit
		wg.Wait()
	},
}

func init() {
	WebsiteCommand.AddCommand(migration.Commands()...)
}
