package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// FallbackRegion is used when no region is configured anywhere.
const FallbackRegion = "ap-south-1"

// AWSConfig holds the settings for AWS client construction.
type AWSConfig struct {
	// Region is the default region. Empty means FallbackRegion.
	Region string

	// AccessKeyID and SecretAccessKey select static credentials.
	// When either is empty the SDK default credential chain is used
	// (environment, shared config, instance profile).
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Endpoint overrides the EC2 endpoint (e.g. LocalStack). Optional.
	Endpoint string
}

// AWSClientFactory implements ClientFactory for AWS EC2.
type AWSClientFactory struct {
	cfg    AWSConfig
	logger *slog.Logger
}

// NewAWSClientFactory creates a new AWS EC2 client factory.
func NewAWSClientFactory(cfg AWSConfig, logger *slog.Logger) *AWSClientFactory {
	if cfg.Region == "" {
		cfg.Region = FallbackRegion
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AWSClientFactory{
		cfg:    cfg,
		logger: logger.With("provider", "aws"),
	}
}

// DefaultRegion returns the configured default region.
func (f *AWSClientFactory) DefaultRegion() string {
	return f.cfg.Region
}

// HasStaticCredentials reports whether explicit keys were configured.
func (f *AWSClientFactory) HasStaticCredentials() bool {
	return f.cfg.AccessKeyID != "" && f.cfg.SecretAccessKey != ""
}

// Client creates a fresh EC2 client for region.
// Every façade call issues exactly one request, so SDK retries are disabled.
func (f *AWSClientFactory) Client(ctx context.Context, region string) (EC2API, error) {
	if region == "" {
		region = f.cfg.Region
	}

	if f.HasStaticCredentials() {
		opts := ec2.Options{
			Region: region,
			Credentials: credentials.NewStaticCredentialsProvider(
				f.cfg.AccessKeyID, f.cfg.SecretAccessKey, f.cfg.SessionToken,
			),
		}
		f.applyOptions(&opts)
		return ec2.New(opts), nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	f.logger.Debug("using default credential chain", "region", region)

	return ec2.NewFromConfig(awsCfg, f.applyOptions), nil
}

func (f *AWSClientFactory) applyOptions(o *ec2.Options) {
	o.Retryer = aws.NopRetryer{}
	if f.cfg.Endpoint != "" {
		o.BaseEndpoint = aws.String(f.cfg.Endpoint)
	}
}
