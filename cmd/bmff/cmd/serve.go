package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ugparu/bmff/server"
	"github.com/ugparu/bmff/utils/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inspection HTTP server",
	Long: `Start the HTTP server. It provides:
- POST /api/inspect, the box tree of an uploaded file as JSON
- POST /api/transmux, segment metadata for an uploaded FLV stream
- GET /healthz
- profiling under /debug/pprof`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		srv := server.New(viper.GetString("serve.addr"), viper.GetInt64("serve.max_upload"))

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		go srv.Start()
		select {
		case sig := <-sigChan:
			logger.Infof(name, "%s received, shutting down", sig)
			srv.Close()
			<-srv.Dead()
		case <-srv.Dead():
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "0.0.0.0:8080", "listen address")
	serveCmd.Flags().Int64("max-upload", 64<<20, "largest accepted request body in bytes")
	mustBindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))
	mustBindPFlag("serve.max_upload", serveCmd.Flags().Lookup("max-upload"))
	rootCmd.AddCommand(serveCmd)
}
