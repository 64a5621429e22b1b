package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/becomeliminal/nim-recall/server"
	"github.com/becomeliminal/nim-recall/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the memory hook and tools over a websocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		wf, err := newWorkflow(reg)
		if err != nil {
			return err
		}

		srv, err := server.New(server.Config{
			Capabilities: tools.Capabilities(wf),
			Logger:       logrus.StandardLogger(),
			Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr := viper.GetString("addr")
		logrus.Infof("WebSocket: ws://%s/ws", addr)
		logrus.Infof("Health:    http://%s/health", addr)
		return srv.Run(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "localhost:8080", "listen address")
	if err := viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}
}
