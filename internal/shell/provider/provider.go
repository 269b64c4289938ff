// Package provider builds region-scoped clients for the cloud compute API.
// This is part of the Imperative Shell - handles I/O with cloud APIs.
package provider

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// EC2API is the subset of the EC2 client used by the instance façade.
// *ec2.Client satisfies it; tests substitute fakes.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
}

// ClientFactory creates EC2 clients on demand.
type ClientFactory interface {
	// Client returns a new client scoped to region. An empty region selects
	// the factory's default region. Handles are not cached or shared.
	Client(ctx context.Context, region string) (EC2API, error)

	// DefaultRegion returns the region used when none is given.
	DefaultRegion() string
}
