package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nexus/internal/engine"
	"nexus/internal/obs"
	"nexus/internal/ops"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	envPath := flag.String("env", ".env", "Path to dotenv file, skipped when missing")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disable)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(*pyroscopeAddr) != 0 {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "nexus.trader",
			ServerAddress:   *pyroscopeAddr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logs.Errorf("pyroscope start failed, err: %+v", err)
			os.Exit(1)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	if err := run(ctx, *configPath, *envPath); err != nil {
		logs.Errorf("trader stopped, err: %+v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, envPath string) error {
	if err := ops.LoadEnv(envPath); err != nil {
		return err
	}
	cfg, err := ops.Load(configPath)
	if err != nil {
		return err
	}

	e, err := engine.Build(ctx, cfg, engine.Option{})
	if err != nil {
		return err
	}

	go reportMetrics(ctx, e.Metrics(), cfg.Metrics.Interval)
	return e.Run(ctx, &logStrategy{})
}

func reportMetrics(ctx context.Context, m *obs.Metrics, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := m.Snapshot()
			logs.Infof("metrics: submissions=%d failed=%d invalid_transitions=%d dropped_frames=%d keepalive_failures=%d queue_closed=%d rest_avg=%s dispatch_avg=%s",
				s.Submissions, s.FailedSubmissions, s.InvalidTransitions, s.DroppedFrames,
				s.KeepAliveFailures, s.QueueClosed, s.RestLatency.Avg, s.DispatchLatency.Avg)
		}
	}
}
