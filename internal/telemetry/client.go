package telemetry

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

// NewCloudWatchClient builds a CloudWatch client from the default credential
// chain. endpointURL overrides the service endpoint for LocalStack; empty in
// production.
func NewCloudWatchClient(ctx context.Context, region, endpointURL string) (*cloudwatch.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return cloudwatch.NewFromConfig(cfg, func(o *cloudwatch.Options) {
		if endpointURL != "" {
			o.BaseEndpoint = &endpointURL
		}
	}), nil
}
