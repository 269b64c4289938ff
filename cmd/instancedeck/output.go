package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/artpar/instancedeck/internal/core/instance"
	"github.com/artpar/instancedeck/internal/core/provider"
)

// Output formats accepted by --output.
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

// maxNameWidth caps the NAME column in table output.
const maxNameWidth = 24

// instanceList is the document written for json and yaml output.
type instanceList struct {
	Region    string             `json:"region" yaml:"region"`
	Count     int                `json:"count" yaml:"count"`
	Instances []instance.Summary `json:"instances" yaml:"instances"`
}

// printInstances writes instances to w in the requested format.
func printInstances(w io.Writer, format, region string, list []instance.Summary) error {
	switch strings.ToLower(format) {
	case "", OutputTable:
		return printInstancesTable(w, region, list)
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(instanceList{Region: region, Count: len(list), Instances: list})
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(instanceList{Region: region, Count: len(list), Instances: list}); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q (want table, json or yaml)", format)
	}
}

func printInstancesTable(w io.Writer, region string, list []instance.Summary) error {
	if len(list) == 0 {
		_, err := fmt.Fprintf(w, "No instances found in %s.\n", provider.RegionDisplayName(region))
		return err
	}

	// kubectl style columns
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tINSTANCE ID\tTYPE\tSTATE\tPRIVATE IP\tAGE")
	for _, inst := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(orNA(inst.Name), maxNameWidth),
			inst.InstanceID,
			orNA(inst.InstanceType),
			inst.State,
			orNA(inst.PrivateIP),
			launchAge(inst.LaunchTime),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d instance(s) in %s\n", len(list), provider.RegionDisplayName(region))
	return err
}

// printActionResult writes a one-line summary of a start or stop result.
func printActionResult(w io.Writer, id string, result instance.ActionResult) {
	status := "OK"
	if !result.Success {
		status = "FAILED"
	}
	line := fmt.Sprintf("%s %s: %s", status, id, result.Message)
	if result.DryRun {
		line += " (dry run)"
	}
	if result.CurrentState != "" {
		line += " [" + result.CurrentState + "]"
	}
	if result.ErrorKind != "" && !result.Success {
		line += " kind=" + string(result.ErrorKind)
	}
	fmt.Fprintln(w, line)
}

func launchAge(launch string) string {
	t, ok := instance.ParseLaunchTime(launch)
	if !ok {
		return "N/A"
	}
	return humanize.Time(t)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-2]) + ".."
}
