package config

import (
	"testing"

	"github.com/kelseyhightower/envconfig"
)

func TestDetectorConfig_Defaults(t *testing.T) {
	var dc DetectorConfig
	if err := envconfig.Process("", &dc); err != nil {
		t.Fatal(err)
	}
	if dc.CloseMatchThresholdSec != 60 {
		t.Fatalf("close match threshold = %v, want 60", dc.CloseMatchThresholdSec)
	}
	if dc.SupportWindowSec != 300 {
		t.Fatalf("support window = %v, want 300", dc.SupportWindowSec)
	}
	if len(dc.SafetyCriticalCategories) != 2 || dc.SafetyCriticalCategories[0] != "person" || dc.SafetyCriticalCategories[1] != "date_time" {
		t.Fatalf("safety-critical categories = %v, want [person date_time]", dc.SafetyCriticalCategories)
	}
}

func TestDetectorConfig_SafetyCriticalCategoriesFromEnv(t *testing.T) {
	t.Setenv("DETECTOR_SAFETY_CRITICAL_CATEGORIES", "person,location,vehicle")

	var dc DetectorConfig
	if err := envconfig.Process("", &dc); err != nil {
		t.Fatal(err)
	}
	if len(dc.SafetyCriticalCategories) != 3 || dc.SafetyCriticalCategories[1] != "location" {
		t.Fatalf("safety-critical categories = %v, want env override", dc.SafetyCriticalCategories)
	}
}

func TestWorkerConfig_RunCeilingFromEnv(t *testing.T) {
	t.Setenv("RUN_CEILING_SECONDS", "600")

	var wc WorkerConfig
	if err := envconfig.Process("", &wc); err != nil {
		t.Fatal(err)
	}
	if wc.RunCeilingSeconds != 600 {
		t.Fatalf("run ceiling = %d, want 600", wc.RunCeilingSeconds)
	}
}
