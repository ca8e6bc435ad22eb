package catalog

import (
	"fmt"
	"testing"

	"github.com/pfaudit/pipeline/internal/config"
)

func allFound(binary string) (string, error) {
	return "/usr/bin/" + binary, nil
}

func TestPlan_AllBinariesPresent(t *testing.T) {
	plan, err := Plan(config.Options{}, config.DefaultLimits(), allFound)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Omitted) != 0 {
		t.Errorf("expected no omissions, got %v", plan.Omitted)
	}
	if len(plan.Foundation) != 2 {
		t.Errorf("Foundation = %d phases, want 2", len(plan.Foundation))
	}
	if len(plan.TrackA) != 1 {
		t.Errorf("TrackA = %d phases, want 1", len(plan.TrackA))
	}
	if len(plan.TrackC) == 0 {
		t.Errorf("TrackC should not be empty when online")
	}
}

func TestPlan_OfflineSkipsTrackC(t *testing.T) {
	plan, err := Plan(config.Options{Offline: true}, config.DefaultLimits(), allFound)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.TrackC) != 0 {
		t.Errorf("TrackC should be empty when offline, got %d", len(plan.TrackC))
	}
}

func TestPlan_MissingBinaryOmitted(t *testing.T) {
	lookPath := func(binary string) (string, error) {
		if binary == "pf-taint" {
			return "", fmt.Errorf("not found")
		}
		return "/usr/bin/" + binary, nil
	}
	plan, err := Plan(config.Options{}, config.DefaultLimits(), lookPath)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.TrackA) != 0 {
		t.Errorf("TrackA should be empty when pf-taint is missing")
	}
	if len(plan.Omitted) != 1 {
		t.Errorf("expected exactly one omission, got %v", plan.Omitted)
	}
}

func TestPlan_ExcludeSelfInjected(t *testing.T) {
	plan, err := Plan(config.Options{ExcludeSelf: true}, config.DefaultLimits(), allFound)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	found := false
	for _, p := range plan.Foundation {
		if p.Name == "index" {
			found = true
			if len(p.Args) == 0 || p.Args[len(p.Args)-1] != "--exclude-self" {
				t.Errorf("index phase args = %v, want --exclude-self appended", p.Args)
			}
		}
	}
	if !found {
		t.Fatal("index phase not found in plan")
	}
	for _, p := range plan.DataPrep {
		for _, a := range p.Args {
			if a == "--exclude-self" {
				t.Errorf("phase %q should not accept --exclude-self", p.Name)
			}
		}
	}
}

func TestPlan_TimeoutOverride(t *testing.T) {
	lim := config.DefaultLimits()
	lim.PhaseTimeoutS["index"] = 42
	plan, err := Plan(config.Options{}, lim, allFound)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for _, p := range plan.Foundation {
		if p.Name == "index" && p.Timeout.Seconds() != 42 {
			t.Errorf("index timeout = %v, want 42s", p.Timeout)
		}
	}
}

func TestPlan_DepsFindingsBearing(t *testing.T) {
	plan, err := Plan(config.Options{}, config.DefaultLimits(), allFound)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for _, p := range plan.TrackC {
		if p.Name == "deps" && !p.TreatsNonzeroAsFindings {
			t.Errorf("deps phase should be findings-bearing")
		}
	}
	for _, p := range plan.TrackB {
		if p.Name == "lint" && p.TreatsNonzeroAsFindings {
			t.Errorf("lint phase should not be findings-bearing")
		}
	}
}
