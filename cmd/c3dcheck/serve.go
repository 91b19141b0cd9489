package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/samsamfire/c3d/pkg/checker"
	"github.com/samsamfire/c3d/pkg/metrics"
	"github.com/samsamfire/c3d/pkg/scenario"
	"github.com/samsamfire/c3d/pkg/trace"
)

func newServeCmd() *cobra.Command {
	var metricsAddr string
	var traceAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Replay every scenario once, exposing Prometheus metrics and a live trace stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			reg := metrics.New()

			traceServer := trace.NewServer(logger)
			if err := traceServer.Listen(traceAddr); err != nil {
				return err
			}
			defer traceServer.Close()

			mux := http.NewServeMux()
			mux.Handle("/metrics", reg.Handler())
			httpSrv := &http.Server{Addr: metricsAddr, Handler: mux}
			go func() {
				logger.Info("serving metrics", "addr", metricsAddr)
				_ = httpSrv.ListenAndServe()
			}()

			for step, s := range scenario.All {
				env := scenario.New(s.Sockets)
				logger.Info("replaying scenario", "name", s.Name)
				runErr := s.Run(env)
				reg.StepsTotal.Inc()
				ev := trace.Event{RunID: "serve", Step: step, Rule: s.Name}
				if runErr != nil {
					ev.Error = runErr.Error()
					reg.ViolationsTotal.Inc()
					logger.Error("scenario failed", "name", s.Name, "err", runErr)
					traceServer.Broadcast(ev)
					continue
				}
				if err := checker.CheckAll(env); err != nil {
					ev.Error = err.Error()
					reg.ViolationsTotal.Inc()
					logger.Error("invariant violation after scenario", "name", s.Name, "err", err)
				}
				traceServer.Broadcast(ev)
				reg.StatesVisited.Inc()
			}
			fmt.Printf("served metrics on %s and trace events on %s; press Ctrl+C to stop\n", metricsAddr, traceAddr)
			select {}
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve /metrics on")
	cmd.Flags().StringVar(&traceAddr, "trace-addr", ":9091", "address to serve the live trace stream on")
	return cmd
}
