package metrics

import (
	"context"
	"log/slog"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/shopkit/order-lifecycle/internal/awsx"
)

// Metric names emitted per terminal handler outcome.
const (
	EventsReceived         = "EventsReceived"
	EventsProcessed        = "EventsProcessed"
	EventsDuplicate        = "EventsDuplicate"
	EventsRejected         = "EventsRejected"
	EventsRetriable        = "EventsRetriable"
	ConfirmationsReceived  = "ConfirmationsReceived"
	ConfirmationsConfirmed = "ConfirmationsConfirmed"
)

// Emitter publishes unit counters to CloudWatch. Emission is best effort:
// a failed put is logged and dropped.
type Emitter struct {
	client    awsx.CloudWatchAPI
	namespace string
	logger    *slog.Logger
}

// NewEmitter creates a CloudWatch-backed Emitter.
func NewEmitter(client awsx.CloudWatchAPI, namespace string, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{client: client, namespace: namespace, logger: logger}
}

// Count increments the named counter by 1.
func (e *Emitter) Count(ctx context.Context, name string) {
	if e == nil || e.client == nil {
		return
	}
	_, err := e.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &e.namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: &name,
				Value:      sdkaws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
			},
		},
	})
	if err != nil {
		e.logger.WarnContext(ctx, "metric emit failed", "metric", name, "err", err)
	}
}
