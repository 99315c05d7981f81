package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kbukum/workloadops/workload"
)

func TestPrintStates(t *testing.T) {
	states := []workload.State{
		workload.NewState(workload.NewRef(workload.KindCluster, "jobs", "etl"), workload.PhaseRunning, nil),
		workload.NewState(workload.NewRef(workload.KindCluster, "jobs", "report"), workload.PhaseDegraded, nil),
	}

	var text bytes.Buffer
	if err := printStates(&text, outputText, states); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(text.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "REF") {
		t.Fatalf("table = %q", text.String())
	}
	if !strings.Contains(lines[2], "cluster/jobs/report") || !strings.Contains(lines[2], string(workload.PhaseDegraded)) {
		t.Errorf("row = %q", lines[2])
	}

	var js bytes.Buffer
	if err := printStates(&js, outputJSON, nil); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(js.String()) != "[]" {
		t.Errorf("empty json = %q", js.String())
	}
}
