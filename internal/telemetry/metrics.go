// Package telemetry emits operational metrics for the entitlement core.
// Only warning-class signals live here: billing anomalies and catalog
// data-integrity hits. Request-level metrics are the caller's concern.
package telemetry

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names and dimension keys. All components MUST use these constants.
const (
	MetricBillingWarning = "BillingWarning"
	MetricDataIntegrity  = "DataIntegrityWarning"

	DimOrgID   = "OrgID"
	DimFeature = "Feature"
	DimReason  = "Reason"

	MetricNamespace = "Workhub"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Emitter publishes entitlement warning metrics to CloudWatch. Emission is
// best-effort: a failed put is logged by the SDK middleware and never
// propagates to the caller, because metric delivery must not fail an
// entitlement decision.
type Emitter struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewEmitter creates an Emitter publishing to the Workhub namespace. A nil
// logger falls back to slog.Default.
func NewEmitter(client CloudWatchClient, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		client:    client,
		namespace: MetricNamespace,
		logger:    logger,
	}
}

// RecordBillingWarning emits a BillingWarning metric with OrgID and Reason
// dimensions (e.g. Reason: "unknown_plan_slug").
func (e *Emitter) RecordBillingWarning(ctx context.Context, orgID int64, reason string) {
	e.put(ctx, MetricBillingWarning, []cwtypes.Dimension{
		{Name: aws.String(DimOrgID), Value: aws.String(strconv.FormatInt(orgID, 10))},
		{Name: aws.String(DimReason), Value: aws.String(reason)},
	})
}

// RecordDataIntegrity emits a DataIntegrityWarning metric with OrgID and
// Feature dimensions. OrgID 0 denotes a catalog-wide problem not scoped to
// one organization.
func (e *Emitter) RecordDataIntegrity(ctx context.Context, orgID int64, feature string) {
	e.put(ctx, MetricDataIntegrity, []cwtypes.Dimension{
		{Name: aws.String(DimOrgID), Value: aws.String(strconv.FormatInt(orgID, 10))},
		{Name: aws.String(DimFeature), Value: aws.String(feature)},
	})
}

func (e *Emitter) put(ctx context.Context, name string, dims []cwtypes.Dimension) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(e.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
		},
	}
	if _, err := e.client.PutMetricData(ctx, input); err != nil {
		e.logger.Warn("failed to emit metric", "metric", name, "error", err)
	}
}

// Compile-time check against the consumer-side contract in entitlement.
var _ interface {
	RecordDataIntegrity(ctx context.Context, orgID int64, feature string)
	RecordBillingWarning(ctx context.Context, orgID int64, reason string)
} = (*Emitter)(nil)
