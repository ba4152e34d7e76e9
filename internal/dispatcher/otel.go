package dispatcher

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/bpsr-logs/livemeter/internal/dispatcher"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
