// Package provider holds pure provider facts: the region catalog and
// credential validation. No I/O.
package provider

import (
	"errors"
	"regexp"
)

// =============================================================================
// Regions
// =============================================================================

// Region represents a cloud provider region.
type Region struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var (
	ErrRegionRequired = errors.New("region is required")
	ErrRegionInvalid  = errors.New("region must look like xx-name-N (e.g. ap-south-1)")
)

var regionPattern = regexp.MustCompile(`^[a-z]{2}(-gov|-iso[a-z]?)?-[a-z]+-[0-9]+$`)

// AWSRegions returns the commonly used AWS regions.
func AWSRegions() []Region {
	return []Region{
		{ID: "us-east-1", Name: "US East (N. Virginia)"},
		{ID: "us-east-2", Name: "US East (Ohio)"},
		{ID: "us-west-1", Name: "US West (N. California)"},
		{ID: "us-west-2", Name: "US West (Oregon)"},
		{ID: "af-south-1", Name: "Africa (Cape Town)"},
		{ID: "ap-east-1", Name: "Asia Pacific (Hong Kong)"},
		{ID: "ap-south-1", Name: "Asia Pacific (Mumbai)"},
		{ID: "ap-northeast-1", Name: "Asia Pacific (Tokyo)"},
		{ID: "ap-northeast-2", Name: "Asia Pacific (Seoul)"},
		{ID: "ap-northeast-3", Name: "Asia Pacific (Osaka)"},
		{ID: "ap-southeast-1", Name: "Asia Pacific (Singapore)"},
		{ID: "ap-southeast-2", Name: "Asia Pacific (Sydney)"},
		{ID: "ca-central-1", Name: "Canada (Central)"},
		{ID: "eu-central-1", Name: "Europe (Frankfurt)"},
		{ID: "eu-west-1", Name: "Europe (Ireland)"},
		{ID: "eu-west-2", Name: "Europe (London)"},
		{ID: "eu-west-3", Name: "Europe (Paris)"},
		{ID: "eu-north-1", Name: "Europe (Stockholm)"},
		{ID: "eu-south-1", Name: "Europe (Milan)"},
		{ID: "me-south-1", Name: "Middle East (Bahrain)"},
		{ID: "sa-east-1", Name: "South America (Sao Paulo)"},
	}
}

// LookupRegion returns the catalog entry for id, or nil.
func LookupRegion(id string) *Region {
	for _, r := range AWSRegions() {
		if r.ID == id {
			return &r
		}
	}
	return nil
}

// RegionDisplayName returns "Name (id)" for catalog regions and id otherwise.
func RegionDisplayName(id string) string {
	if r := LookupRegion(id); r != nil {
		return r.Name + " (" + r.ID + ")"
	}
	return id
}

// ValidateRegion checks the shape of a region id. Regions missing from the
// catalog are accepted as long as they are well formed, since new regions
// appear faster than the catalog is updated.
func ValidateRegion(id string) error {
	if id == "" {
		return ErrRegionRequired
	}
	if !regionPattern.MatchString(id) {
		return ErrRegionInvalid
	}
	return nil
}
