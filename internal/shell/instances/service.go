// Package instances is the instance façade: it lists, starts and stops
// compute instances through a provider client and normalizes the answers.
// This is part of the Imperative Shell - it performs provider I/O.
package instances

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/artpar/instancedeck/internal/core/instance"
	"github.com/artpar/instancedeck/internal/shell/provider"
)

// Service is the instance façade.
// Every operation creates a fresh client and issues exactly one provider call.
type Service struct {
	clients provider.ClientFactory
	region  string
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRegion pins the region used by the service. Empty keeps the factory default.
func WithRegion(region string) Option {
	return func(s *Service) {
		s.region = region
	}
}

// NewService creates a new instance façade.
func NewService(clients provider.ClientFactory, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		clients: clients,
		logger:  logger.With("component", "instances"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Region returns the region operations run against.
func (s *Service) Region() string {
	if s.region != "" {
		return s.region
	}
	return s.clients.DefaultRegion()
}

// =============================================================================
// Describe
// =============================================================================

// Describe returns one summary per instance visible to the credentials.
// When ids is non-empty the listing is restricted to those ids.
// Provider failures are logged and yield an empty, non-nil slice.
func (s *Service) Describe(ctx context.Context, ids []string) []instance.Summary {
	summaries := []instance.Summary{}

	client, err := s.clients.Client(ctx, s.region)
	if err != nil {
		s.logger.Error("failed to create provider client", "op", "describe", "region", s.Region(), "error", err)
		return summaries
	}

	input := &ec2.DescribeInstancesInput{}
	if len(ids) > 0 {
		input.InstanceIds = ids
	}

	out, err := client.DescribeInstances(ctx, input)
	if err != nil {
		perr := Classify(err)
		s.logger.Error("failed to describe instances",
			"region", s.Region(),
			"ids", ids,
			"error_kind", perr.Kind,
			"error_code", perr.Code,
			"error", err,
		)
		return summaries
	}

	for _, reservation := range out.Reservations {
		for _, inst := range reservation.Instances {
			summaries = append(summaries, toSummary(inst))
		}
	}

	s.logger.Debug("described instances", "region", s.Region(), "count", len(summaries))
	return summaries
}

func toSummary(inst ec2types.Instance) instance.Summary {
	state := instance.StateUnknown
	if inst.State != nil {
		state = instance.ParseState(string(inst.State.Name))
	}

	return instance.Summary{
		InstanceID:   aws.ToString(inst.InstanceId),
		Name:         instance.NameFromTags(toTags(inst.Tags)),
		InstanceType: string(inst.InstanceType),
		State:        state,
		PrivateIP:    aws.ToString(inst.PrivateIpAddress),
		LaunchTime:   instance.FormatLaunchTime(inst.LaunchTime),
	}
}

func toTags(tags []ec2types.Tag) []instance.Tag {
	out := make([]instance.Tag, 0, len(tags))
	for _, t := range tags {
		out = append(out, instance.Tag{Key: t.Key, Value: t.Value})
	}
	return out
}

// =============================================================================
// Start / Stop
// =============================================================================

// Start requests that the instance be started.
func (s *Service) Start(ctx context.Context, id string, dryRun bool) instance.ActionResult {
	return s.act(ctx, instance.ActionStart, id, dryRun)
}

// Stop requests that the instance be stopped.
func (s *Service) Stop(ctx context.Context, id string, dryRun bool) instance.ActionResult {
	return s.act(ctx, instance.ActionStop, id, dryRun)
}

func (s *Service) act(ctx context.Context, action instance.Action, id string, dryRun bool) instance.ActionResult {
	log := s.logger.With("action", action, "instance_id", id, "dry_run", dryRun, "region", s.Region())

	if id == "" {
		log.Warn("rejected action without instance id")
		return instance.Failed(dryRun, instance.ErrorKindValidation, instance.ErrInvalidInstanceID.Error())
	}

	client, err := s.clients.Client(ctx, s.region)
	if err != nil {
		log.Error("failed to create provider client", "error", err)
		return instance.Failed(dryRun, instance.ErrorKindTransport, err.Error())
	}

	var currentState string
	switch action {
	case instance.ActionStart:
		var out *ec2.StartInstancesOutput
		out, err = client.StartInstances(ctx, &ec2.StartInstancesInput{
			InstanceIds: []string{id},
			DryRun:      aws.Bool(dryRun),
		})
		if err == nil && len(out.StartingInstances) > 0 {
			currentState = stateName(out.StartingInstances[0].CurrentState)
		}
	case instance.ActionStop:
		var out *ec2.StopInstancesOutput
		out, err = client.StopInstances(ctx, &ec2.StopInstancesInput{
			InstanceIds: []string{id},
			DryRun:      aws.Bool(dryRun),
		})
		if err == nil && len(out.StoppingInstances) > 0 {
			currentState = stateName(out.StoppingInstances[0].CurrentState)
		}
	}

	if err != nil {
		perr := Classify(err)
		if perr.Kind == instance.ErrorKindDryRunAck {
			log.Info("dry run acknowledged")
			return instance.DryRunAcknowledged()
		}
		log.Error("provider rejected action", "error_kind", perr.Kind, "error_code", perr.Code, "error", err)
		return instance.Failed(dryRun, perr.Kind, perr.Message)
	}

	log.Info("action requested", "current_state", currentState)
	return instance.Accepted(action, dryRun, currentState)
}

func stateName(st *ec2types.InstanceState) string {
	if st == nil {
		return ""
	}
	return string(st.Name)
}

// =============================================================================
// Classification
// =============================================================================

// Classify wraps err in a ProviderError carrying its ErrorKind.
// Errors without a structured provider code are transport failures.
func Classify(err error) *instance.ProviderError {
	if err == nil {
		return nil
	}

	var code string
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.ErrorCode()
	}

	return &instance.ProviderError{
		Kind:    instance.ClassifyCode(code),
		Code:    code,
		Message: err.Error(),
		Err:     err,
	}
}
