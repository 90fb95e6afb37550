package telemetry

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
)

// InstrumentPerfStats samples process cpu/memory every 30 seconds until ctx is done.
// The gauges go to the global meter provider, so call it after Setup.
func InstrumentPerfStats(ctx context.Context, tel API) {
	meter := otel.Meter("gradewatch/perf_stats")
	cpuGauge, err := meter.Float64Gauge("cpu_usage")
	if err != nil {
		tel.ReportWarning("perf-stats.setup", err)
		return
	}
	memoryGauge, err := meter.Int64Gauge("allocated_mb")
	if err != nil {
		tel.ReportWarning("perf-stats.setup", err)
		return
	}
	goroutineGauge, err := meter.Int64Gauge("goroutine_count")
	if err != nil {
		tel.ReportWarning("perf-stats.setup", err)
		return
	}

	go func() {
		var memStats runtime.MemStats
		ticker := time.NewTicker(time.Second * 30)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runtime.ReadMemStats(&memStats)

				cpuUsage, err := cpu.PercentWithContext(ctx, 0, false)
				if err == nil && len(cpuUsage) > 0 {
					cpuGauge.Record(ctx, cpuUsage[0])
				} else if err != nil {
					tel.ReportWarning("perf-stats.cpu", err)
				}

				memoryGauge.Record(ctx, int64(memStats.Alloc/1_000_000))
				goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))
			case <-ctx.Done():
				return
			}
		}
	}()
}
