package instances

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/instancedeck/internal/core/instance"
	"github.com/artpar/instancedeck/internal/shell/provider"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeEC2 struct {
	describeOut *ec2.DescribeInstancesOutput
	describeErr error
	startOut    *ec2.StartInstancesOutput
	startErr    error
	stopOut     *ec2.StopInstancesOutput
	stopErr     error

	describeCalls []*ec2.DescribeInstancesInput
	startCalls    []*ec2.StartInstancesInput
	stopCalls     []*ec2.StopInstancesInput
}

func (f *fakeEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.describeCalls = append(f.describeCalls, in)
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	if f.describeOut == nil {
		return &ec2.DescribeInstancesOutput{}, nil
	}
	return f.describeOut, nil
}

func (f *fakeEC2) StartInstances(_ context.Context, in *ec2.StartInstancesInput, _ ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error) {
	f.startCalls = append(f.startCalls, in)
	if f.startErr != nil {
		return nil, f.startErr
	}
	if f.startOut == nil {
		return &ec2.StartInstancesOutput{}, nil
	}
	return f.startOut, nil
}

func (f *fakeEC2) StopInstances(_ context.Context, in *ec2.StopInstancesInput, _ ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error) {
	f.stopCalls = append(f.stopCalls, in)
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	if f.stopOut == nil {
		return &ec2.StopInstancesOutput{}, nil
	}
	return f.stopOut, nil
}

type fakeFactory struct {
	client  *fakeEC2
	err     error
	regions []string
}

func (f *fakeFactory) Client(_ context.Context, region string) (provider.EC2API, error) {
	f.regions = append(f.regions, region)
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

func (f *fakeFactory) DefaultRegion() string { return "ap-south-1" }

func newTestService(client *fakeEC2, opts ...Option) (*Service, *fakeFactory) {
	factory := &fakeFactory{client: client}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(factory, logger, opts...), factory
}

func apiError(code, msg string) error {
	return &smithy.GenericAPIError{Code: code, Message: msg}
}

// =============================================================================
// Describe
// =============================================================================

func TestDescribe_SingleInstance(t *testing.T) {
	launched := time.Date(2024, 3, 1, 10, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	client := &fakeEC2{describeOut: &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{
			Instances: []ec2types.Instance{{
				InstanceId:       aws.String("i-123"),
				InstanceType:     ec2types.InstanceTypeT2Micro,
				State:            &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
				PrivateIpAddress: aws.String("10.0.0.5"),
				LaunchTime:       &launched,
				Tags: []ec2types.Tag{
					{Key: aws.String("env"), Value: aws.String("prod")},
					{Key: aws.String("Name"), Value: aws.String("web1")},
				},
			}},
		}},
	}}
	svc, _ := newTestService(client)

	got := svc.Describe(context.Background(), nil)

	require.Len(t, got, 1)
	assert.Equal(t, instance.Summary{
		InstanceID:   "i-123",
		Name:         "web1",
		InstanceType: "t2.micro",
		State:        instance.StateRunning,
		PrivateIP:    "10.0.0.5",
		LaunchTime:   "2024-03-01T05:00:00Z",
	}, got[0])
}

func TestDescribe_NoFilterWithoutIDs(t *testing.T) {
	client := &fakeEC2{}
	svc, _ := newTestService(client)

	got := svc.Describe(context.Background(), nil)

	assert.NotNil(t, got)
	assert.Empty(t, got)
	require.Len(t, client.describeCalls, 1)
	assert.Nil(t, client.describeCalls[0].InstanceIds)
}

func TestDescribe_FilterWithIDs(t *testing.T) {
	client := &fakeEC2{}
	svc, _ := newTestService(client)

	svc.Describe(context.Background(), []string{"i-1", "i-2"})

	require.Len(t, client.describeCalls, 1)
	assert.Equal(t, []string{"i-1", "i-2"}, client.describeCalls[0].InstanceIds)
}

func TestDescribe_FlattensReservations(t *testing.T) {
	client := &fakeEC2{describeOut: &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{
			{Instances: []ec2types.Instance{
				{InstanceId: aws.String("i-1")},
				{InstanceId: aws.String("i-2")},
			}},
			{Instances: []ec2types.Instance{
				{InstanceId: aws.String("i-3")},
			}},
		},
	}}
	svc, _ := newTestService(client)

	got := svc.Describe(context.Background(), nil)

	require.Len(t, got, 3)
	assert.Equal(t, "i-1", got[0].InstanceID)
	assert.Equal(t, "i-2", got[1].InstanceID)
	assert.Equal(t, "i-3", got[2].InstanceID)
}

func TestDescribe_MissingOptionalFields(t *testing.T) {
	client := &fakeEC2{describeOut: &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{
			Instances: []ec2types.Instance{{
				InstanceId: aws.String("i-9"),
				State:      &ec2types.InstanceState{Name: ec2types.InstanceStateNameStopped},
			}},
		}},
	}}
	svc, _ := newTestService(client)

	got := svc.Describe(context.Background(), nil)

	require.Len(t, got, 1)
	assert.Equal(t, "", got[0].Name)
	assert.Equal(t, "", got[0].PrivateIP)
	assert.Equal(t, "", got[0].LaunchTime)
	assert.Equal(t, instance.StateStopped, got[0].State)
}

func TestDescribe_MissingStateIsUnknown(t *testing.T) {
	client := &fakeEC2{describeOut: &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{
			Instances: []ec2types.Instance{{InstanceId: aws.String("i-9")}},
		}},
	}}
	svc, _ := newTestService(client)

	got := svc.Describe(context.Background(), nil)

	require.Len(t, got, 1)
	assert.Equal(t, instance.StateUnknown, got[0].State)
}

func TestDescribe_ProviderErrorReturnsEmpty(t *testing.T) {
	client := &fakeEC2{describeErr: apiError("AuthFailure", "bad credentials")}
	svc, _ := newTestService(client)

	got := svc.Describe(context.Background(), nil)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDescribe_ClientErrorReturnsEmpty(t *testing.T) {
	svc, factory := newTestService(&fakeEC2{})
	factory.err = errors.New("no credentials")

	got := svc.Describe(context.Background(), nil)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDescribe_Idempotent(t *testing.T) {
	client := &fakeEC2{describeOut: &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{
			Instances: []ec2types.Instance{{InstanceId: aws.String("i-1")}},
		}},
	}}
	svc, factory := newTestService(client)

	first := svc.Describe(context.Background(), nil)
	second := svc.Describe(context.Background(), nil)

	assert.Equal(t, first, second)
	assert.Len(t, factory.regions, 2, "a new client per call")
}

func TestDescribe_UsesConfiguredRegion(t *testing.T) {
	svc, factory := newTestService(&fakeEC2{}, WithRegion("eu-west-1"))

	svc.Describe(context.Background(), nil)

	assert.Equal(t, []string{"eu-west-1"}, factory.regions)
	assert.Equal(t, "eu-west-1", svc.Region())
}

func TestRegion_DefaultsToFactory(t *testing.T) {
	svc, _ := newTestService(&fakeEC2{})
	assert.Equal(t, "ap-south-1", svc.Region())
}

// =============================================================================
// Start / Stop
// =============================================================================

func TestStart_Success(t *testing.T) {
	client := &fakeEC2{startOut: &ec2.StartInstancesOutput{
		StartingInstances: []ec2types.InstanceStateChange{{
			InstanceId:   aws.String("i-1"),
			CurrentState: &ec2types.InstanceState{Name: ec2types.InstanceStateNamePending},
		}},
	}}
	svc, _ := newTestService(client)

	got := svc.Start(context.Background(), "i-1", false)

	assert.Equal(t, instance.ActionResult{
		Success:      true,
		DryRun:       false,
		Message:      "Start requested",
		CurrentState: "pending",
	}, got)
	require.Len(t, client.startCalls, 1)
	assert.Equal(t, []string{"i-1"}, client.startCalls[0].InstanceIds)
	assert.False(t, aws.ToBool(client.startCalls[0].DryRun))
}

func TestStart_SuccessWithoutStateChange(t *testing.T) {
	svc, _ := newTestService(&fakeEC2{})

	got := svc.Start(context.Background(), "i-1", false)

	assert.True(t, got.Success)
	assert.Equal(t, "Start requested", got.Message)
	assert.Empty(t, got.CurrentState)
}

func TestStop_Success(t *testing.T) {
	client := &fakeEC2{stopOut: &ec2.StopInstancesOutput{
		StoppingInstances: []ec2types.InstanceStateChange{{
			InstanceId:   aws.String("i-1"),
			CurrentState: &ec2types.InstanceState{Name: ec2types.InstanceStateNameStopping},
		}},
	}}
	svc, _ := newTestService(client)

	got := svc.Stop(context.Background(), "i-1", false)

	assert.True(t, got.Success)
	assert.Equal(t, "Stop requested", got.Message)
	assert.Equal(t, "stopping", got.CurrentState)
	require.Len(t, client.stopCalls, 1)
	assert.Empty(t, client.startCalls)
}

func TestStart_DryRunAcknowledged(t *testing.T) {
	client := &fakeEC2{startErr: apiError("DryRunOperation", "Request would have succeeded, but DryRun flag is set.")}
	svc, _ := newTestService(client)

	got := svc.Start(context.Background(), "i-999", true)

	assert.True(t, got.Success)
	assert.True(t, got.DryRun)
	assert.Equal(t, "DryRunOperation: request would have succeeded.", got.Message)
	assert.Equal(t, instance.ErrorKindDryRunAck, got.ErrorKind)
	require.Len(t, client.startCalls, 1)
	assert.True(t, aws.ToBool(client.startCalls[0].DryRun))
}

func TestStop_DryRunAcknowledged(t *testing.T) {
	client := &fakeEC2{stopErr: apiError("DryRunOperation", "Request would have succeeded, but DryRun flag is set.")}
	svc, _ := newTestService(client)

	got := svc.Stop(context.Background(), "i-999", true)

	assert.Equal(t, instance.DryRunAcknowledged(), got)
}

func TestDryRunAcknowledged_WrappedError(t *testing.T) {
	wrapped := fmt.Errorf("operation error EC2: StartInstances: %w",
		apiError("DryRunOperation", "Request would have succeeded"))
	svc, _ := newTestService(&fakeEC2{startErr: wrapped})

	got := svc.Start(context.Background(), "i-1", true)

	assert.True(t, got.Success)
	assert.Equal(t, instance.DryRunMessage, got.Message)
}

func TestStart_ProviderErrorVerbatim(t *testing.T) {
	err := apiError("IncorrectInstanceState", "The instance 'i-1' is not in a state from which it can be started.")
	svc, _ := newTestService(&fakeEC2{startErr: err})

	got := svc.Start(context.Background(), "i-1", false)

	assert.False(t, got.Success)
	assert.False(t, got.DryRun)
	assert.Equal(t, err.Error(), got.Message)
	assert.Equal(t, instance.ErrorKindValidation, got.ErrorKind)
}

func TestStop_ErrorKeepsCallerDryRunFlag(t *testing.T) {
	err := apiError("InvalidInstanceID.NotFound", "The instance ID 'i-0' does not exist")
	svc, _ := newTestService(&fakeEC2{stopErr: err})

	got := svc.Stop(context.Background(), "i-0", true)

	assert.False(t, got.Success)
	assert.True(t, got.DryRun)
	assert.Equal(t, err.Error(), got.Message)
	assert.Equal(t, instance.ErrorKindValidation, got.ErrorKind)
}

func TestStart_TransportError(t *testing.T) {
	err := errors.New("dial tcp: lookup ec2.ap-south-1.amazonaws.com: no such host")
	svc, _ := newTestService(&fakeEC2{startErr: err})

	got := svc.Start(context.Background(), "i-1", false)

	assert.False(t, got.Success)
	assert.Equal(t, err.Error(), got.Message)
	assert.Equal(t, instance.ErrorKindTransport, got.ErrorKind)
}

func TestStart_ClientError(t *testing.T) {
	svc, factory := newTestService(&fakeEC2{})
	factory.err = errors.New("failed to load AWS config: boom")

	got := svc.Start(context.Background(), "i-1", true)

	assert.False(t, got.Success)
	assert.True(t, got.DryRun)
	assert.Equal(t, "failed to load AWS config: boom", got.Message)
	assert.Equal(t, instance.ErrorKindTransport, got.ErrorKind)
}

func TestStart_EmptyIDSkipsProvider(t *testing.T) {
	client := &fakeEC2{}
	svc, factory := newTestService(client)

	got := svc.Start(context.Background(), "", false)

	assert.False(t, got.Success)
	assert.Equal(t, instance.ErrorKindValidation, got.ErrorKind)
	assert.Equal(t, instance.ErrInvalidInstanceID.Error(), got.Message)
	assert.Empty(t, factory.regions)
	assert.Empty(t, client.startCalls)
}

func TestStart_SingleCallNoRetry(t *testing.T) {
	client := &fakeEC2{startErr: apiError("RequestLimitExceeded", "Request limit exceeded.")}
	svc, _ := newTestService(client)

	got := svc.Start(context.Background(), "i-1", false)

	assert.Len(t, client.startCalls, 1)
	assert.Equal(t, instance.ErrorKindTransport, got.ErrorKind)
}

// =============================================================================
// Classify
// =============================================================================

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))

	tests := []struct {
		name string
		err  error
		kind instance.ErrorKind
		code string
	}{
		{"plain error", errors.New("connection reset"), instance.ErrorKindTransport, ""},
		{"context canceled", context.Canceled, instance.ErrorKindTransport, ""},
		{"dry run", apiError("DryRunOperation", "ok"), instance.ErrorKindDryRunAck, "DryRunOperation"},
		{"not found", apiError("InvalidInstanceID.NotFound", "x"), instance.ErrorKindValidation, "InvalidInstanceID.NotFound"},
		{"auth", apiError("UnauthorizedOperation", "x"), instance.ErrorKindTransport, "UnauthorizedOperation"},
		{"other", apiError("InsufficientInstanceCapacity", "x"), instance.ErrorKindUnknown, "InsufficientInstanceCapacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := Classify(tt.err)
			require.NotNil(t, perr)
			assert.Equal(t, tt.kind, perr.Kind)
			assert.Equal(t, tt.code, perr.Code)
			assert.Equal(t, tt.err.Error(), perr.Message)
			assert.ErrorIs(t, perr, tt.err)
		})
	}
}
