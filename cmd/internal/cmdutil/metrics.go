package cmdutil

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type metricsConfig struct {
	listenAddr string
}

var metricsCfg = metricsConfig{}

func RegisterMetricsFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&metricsCfg.listenAddr,
		"metrics-listen-addr",
		metricsCfg.listenAddr,
		"address for the metrics endpoint to listen on, e.g. 127.0.0.1:3030 (disabled if empty)",
	)
}

func MetricsServer(logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprint(w, "OK"); err != nil {
			logger.Err(err).Msgf("error writing to healthz")
		}
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// RunMetricsServer serves metrics in the background if an address is set.
func RunMetricsServer(logger zerolog.Logger) {
	if metricsCfg.listenAddr == "" {
		return
	}
	go func() {
		srv := &http.Server{
			Addr:              metricsCfg.listenAddr,
			Handler:           MetricsServer(logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.Info().Str("addr", metricsCfg.listenAddr).Msgf("serving metrics")
		if err := srv.ListenAndServe(); err != nil {
			logger.Err(err).Msgf("error exposing metrics endpoints")
		}
	}()
}
