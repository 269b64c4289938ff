package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/artpar/instancedeck/internal/core/instance"
)

func sampleInstances() []instance.Summary {
	launched := time.Now().Add(-3 * time.Hour)
	return []instance.Summary{
		{
			InstanceID:   "i-123",
			Name:         "web1",
			InstanceType: "t2.micro",
			State:        instance.StateRunning,
			PrivateIP:    "10.0.0.5",
			LaunchTime:   instance.FormatLaunchTime(&launched),
		},
		{
			InstanceID:   "i-456",
			InstanceType: "t3.small",
			State:        instance.StateStopped,
		},
	}
}

func TestPrintInstances_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printInstances(&buf, OutputTable, "ap-south-1", sampleInstances()))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "INSTANCE ID")
	assert.Contains(t, out, "web1")
	assert.Contains(t, out, "i-456")
	assert.Contains(t, out, "3 hours ago")
	assert.Contains(t, out, "N/A")
	assert.Contains(t, out, "2 instance(s) in Asia Pacific (Mumbai) (ap-south-1)")
}

func TestPrintInstances_TableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printInstances(&buf, "", "eu-west-1", nil))
	assert.Contains(t, buf.String(), "No instances found")
}

func TestPrintInstances_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printInstances(&buf, OutputJSON, "ap-south-1", sampleInstances()))

	var doc instanceList
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "ap-south-1", doc.Region)
	assert.Equal(t, 2, doc.Count)
	assert.Equal(t, "i-123", doc.Instances[0].InstanceID)
	assert.Equal(t, instance.StateStopped, doc.Instances[1].State)
}

func TestPrintInstances_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printInstances(&buf, "YAML", "ap-south-1", sampleInstances()))

	var doc instanceList
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 2, doc.Count)
	assert.Equal(t, "web1", doc.Instances[0].Name)
	assert.Contains(t, buf.String(), "instance_id: i-123")
}

func TestPrintInstances_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	err := printInstances(&buf, "xml", "ap-south-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestPrintActionResult(t *testing.T) {
	tests := []struct {
		name   string
		result instance.ActionResult
		want   string
	}{
		{
			name:   "accepted",
			result: instance.Accepted(instance.ActionStart, false, "pending"),
			want:   "OK i-1: Start requested [pending]\n",
		},
		{
			name:   "dry run",
			result: instance.DryRunAcknowledged(),
			want:   "OK i-1: " + instance.DryRunMessage + " (dry run)\n",
		},
		{
			name:   "failed",
			result: instance.Failed(false, instance.ErrorKindValidation, "bad id"),
			want:   "FAILED i-1: bad id kind=validation\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printActionResult(&buf, "i-1", tt.result)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefgh..", truncate("abcdefghijklmnop", 10))
}
