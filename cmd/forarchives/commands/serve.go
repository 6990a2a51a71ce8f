package commands

import (
	"time"

	"forarchives/internal/components/chrono"
	"forarchives/internal/service"
	"forarchives/lib/serviceutil"
	"forarchives/lib/telemetry"

	"github.com/spf13/cobra"
)

var serveAddress string

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "Address to listen on, the configured address by default.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the search api over http.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		address := cfg.Server.Address
		if serveAddress != "" {
			address = serveAddress
		}
		if otelTel.Enabled() {
			telemetry.InstrumentPerfStats(cmd.Context(), 30*time.Second)
		}

		if spec := cfg.Session.RefreshCron; spec != "" {
			cron := chrono.NewStandardCron(tel)
			defer cron.Stop()
			if err := engine.ScheduleSessionRefresh(cmd.Context(), cron, spec); err != nil {
				return err
			}
		}

		svc := service.New(
			engine.Orchestrator,
			engine.SubjectQuery(),
			engine.Matchers,
			tel,
		)
		return serviceutil.StartHttpServer(cmd.Context(), address, svc.Router(cfg.Server.CorsOrigins))
	},
}
