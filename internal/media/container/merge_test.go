package container_test

import (
	"math"
	"strings"
	"testing"

	"mediabot/internal/media/container"
)

func mergeInputs() []container.MergeInput {
	return []container.MergeInput{
		{Path: "a.mp4", Container: "mp4", Width: 1920, Height: 1080, FPS: 29.97},
		{Path: "b.mkv", Container: "matroska", Width: 1280, Height: 720, FPS: 25},
	}
}

func TestPlanMergeDefaultsToFirstInput(t *testing.T) {
	plan, err := container.PlanMerge(mergeInputs(), container.MergeOptions{})
	if err != nil {
		t.Fatalf("PlanMerge: %v", err)
	}
	if plan.Target.Name != "mp4" {
		t.Fatalf("target = %+v", plan.Target)
	}
	if plan.Width != 1920 || plan.Height != 1080 {
		t.Fatalf("resolution = %dx%d", plan.Width, plan.Height)
	}
	if plan.FPS != 29.97 {
		t.Fatalf("fps = %v", plan.FPS)
	}
	if !plan.NeedsTranscode {
		t.Fatal("mismatched inputs must be normalized before concat")
	}
	if plan.PartExtension != ".mp4" {
		t.Fatalf("part extension = %s", plan.PartExtension)
	}
}

func TestPlanMergeUniformInputsStreamCopy(t *testing.T) {
	inputs := []container.MergeInput{
		{Path: "a.mp4", Container: "mp4", Width: 1280, Height: 720, FPS: 30},
		{Path: "b.mp4", Container: "mp4", Width: 1280, Height: 720, FPS: 30},
	}
	plan, err := container.PlanMerge(inputs, container.MergeOptions{})
	if err != nil {
		t.Fatalf("PlanMerge: %v", err)
	}
	if plan.NeedsTranscode {
		t.Fatalf("uniform inputs should concat with stream copy: %+v", plan)
	}
}

func TestPlanMergeOutputExtensionOverridesContainer(t *testing.T) {
	plan, err := container.PlanMerge(mergeInputs(), container.MergeOptions{
		UnifyContainer: "mp4",
		OutputPath:     "/tmp/out.mkv",
	})
	if err != nil {
		t.Fatalf("PlanMerge: %v", err)
	}
	if plan.Target.Name != "matroska" || plan.PartExtension != ".mkv" {
		t.Fatalf("plan = %+v", plan)
	}
}

func TestPlanMergeSelectors(t *testing.T) {
	inputs := mergeInputs()

	largest, err := container.PlanMerge(inputs, container.MergeOptions{
		ResolutionMode: container.SelectLargest,
		FPSMode:        container.SelectLargest,
	})
	if err != nil {
		t.Fatalf("PlanMerge largest: %v", err)
	}
	if largest.Width != 1920 || largest.Height != 1080 {
		t.Fatalf("largest resolution = %dx%d", largest.Width, largest.Height)
	}
	// The highest rate is rounded up to a whole frame rate.
	if largest.FPS != 30 {
		t.Fatalf("largest fps = %v, want 30", largest.FPS)
	}

	smallest, err := container.PlanMerge(inputs, container.MergeOptions{
		ResolutionMode: container.SelectSmallest,
		FPSMode:        container.SelectSmallest,
	})
	if err != nil {
		t.Fatalf("PlanMerge smallest: %v", err)
	}
	if smallest.Width != 1280 || smallest.Height != 720 {
		t.Fatalf("smallest resolution = %dx%d", smallest.Width, smallest.Height)
	}
	if smallest.FPS != 25 {
		t.Fatalf("smallest fps = %v, want 25", smallest.FPS)
	}
}

func TestPlanMergeSmallestFPSFloorsToAtLeastOne(t *testing.T) {
	inputs := []container.MergeInput{
		{Path: "a.mp4", Container: "mp4", Width: 640, Height: 480, FPS: 0.5},
		{Path: "b.mp4", Container: "mp4", Width: 640, Height: 480, FPS: 30},
	}
	plan, err := container.PlanMerge(inputs, container.MergeOptions{FPSMode: container.SelectSmallest})
	if err != nil {
		t.Fatalf("PlanMerge: %v", err)
	}
	if plan.FPS != 1 {
		t.Fatalf("fps = %v, want 1", plan.FPS)
	}
}

func TestPlanMergeExplicitValuesWin(t *testing.T) {
	plan, err := container.PlanMerge(mergeInputs(), container.MergeOptions{
		Width: 640, Height: 480,
		ResolutionMode: container.SelectLargest,
		FPS:            24,
		FPSMode:        container.SelectSmallest,
	})
	if err != nil {
		t.Fatalf("PlanMerge: %v", err)
	}
	if plan.Width != 640 || plan.Height != 480 || plan.FPS != 24 {
		t.Fatalf("plan = %+v", plan)
	}
}

func TestPlanMergeRejectsSingleInput(t *testing.T) {
	_, err := container.PlanMerge(mergeInputs()[:1], container.MergeOptions{})
	if err == nil || !strings.Contains(err.Error(), "at least two") {
		t.Fatalf("err = %v", err)
	}
}

func TestPlanMergeInvalidSelector(t *testing.T) {
	if _, err := container.PlanMerge(mergeInputs(), container.MergeOptions{ResolutionMode: "widest"}); err == nil {
		t.Fatal("expected invalid resolution selector error")
	}
	if _, err := container.PlanMerge(mergeInputs(), container.MergeOptions{FPSMode: "fastest"}); err == nil {
		t.Fatal("expected invalid frame rate selector error")
	}
}

func TestNeedsFPSChangeTolerance(t *testing.T) {
	plan := container.MergePlan{FPS: 30000.0 / 1001.0}
	within := container.MergeInput{FPS: plan.FPS + container.FPSTolerance/2}
	if plan.NeedsFPSChange(within) {
		t.Fatalf("fps delta %v within tolerance should not retime", math.Abs(within.FPS-plan.FPS))
	}
	outside := container.MergeInput{FPS: plan.FPS + container.FPSTolerance*10}
	if !plan.NeedsFPSChange(outside) {
		t.Fatal("fps delta beyond tolerance must retime")
	}
}
