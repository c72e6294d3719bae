package ui

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"dwhload/internal/catalog"
)

func TestNewProgressBar(t *testing.T) {
	total := 31
	pb := NewProgressBar(total)

	if pb.total != total {
		t.Errorf("Expected total to be %d, got %d", total, pb.total)
	}

	if pb.current != 0 {
		t.Errorf("Expected current to be 0, got %d", pb.current)
	}

	if pb.successCount != 0 || pb.failureCount != 0 {
		t.Errorf("Expected zero counts, got %d/%d", pb.successCount, pb.failureCount)
	}

	if pb.startTime.IsZero() {
		t.Error("Expected startTime to be set")
	}
}

func TestProgressBar_Update(t *testing.T) {
	pb := NewProgressBar(10)

	captureOutput(t, func() {
		pb.Update(5, "create dim_user", true)
		pb.Update(6, "copy staging_events", false)
	})

	if pb.current != 6 {
		t.Errorf("Expected current to be 6, got %d", pb.current)
	}

	if pb.currentLabel != "copy staging_events" {
		t.Errorf("Expected currentLabel to be 'copy staging_events', got %s", pb.currentLabel)
	}

	if pb.successCount != 1 || pb.failureCount != 1 {
		t.Errorf("Expected 1 success and 1 failure, got %d/%d", pb.successCount, pb.failureCount)
	}
}

func TestProgressBar_Finish(t *testing.T) {
	pb := NewProgressBar(10)
	pb.successCount = 7
	pb.failureCount = 1

	output := captureOutput(t, pb.Finish)

	for _, want := range []string{"Run finished", "7 statements succeeded", "1 failed", "2 not attempted"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output, got %q", want, output)
		}
	}
}

func TestProgressBar_render(t *testing.T) {
	pb := NewProgressBar(100)
	pb.current = 25
	pb.currentLabel = "insert a_table_name_long_enough_to_need_truncating"

	output := captureOutput(t, pb.render)

	if !strings.Contains(output, "25%") {
		t.Error("Percentage not displayed")
	}
	if !strings.Contains(output, "[25/100]") {
		t.Error("Position not displayed")
	}
	if !strings.Contains(output, "...") {
		t.Error("Long label not truncated")
	}
}

func TestProgressBar_ZeroTotal(t *testing.T) {
	pb := NewProgressBar(0)

	output := captureOutput(t, pb.render)

	if !strings.Contains(output, "0%") {
		t.Errorf("Expected 0%% for an empty run, got %q", output)
	}
}

func TestStatementProgress(t *testing.T) {
	sp := NewStatementProgress()
	create := catalog.Statement{Table: catalog.DimUser, Kind: catalog.KindCreate}
	insert := catalog.Statement{Table: catalog.DimUser, Kind: catalog.KindInsert}

	output := captureOutput(t, func() {
		sp.StatementStarted(create, 1, 3)
		sp.StatementFinished(create, 1, 3, nil)
		sp.StatementStarted(insert, 2, 3)
		sp.StatementFinished(insert, 2, 3, errors.New("boom"))
		sp.Finish()
	})

	if sp.bar.total != 3 {
		t.Errorf("Expected total 3, got %d", sp.bar.total)
	}
	if sp.bar.successCount != 1 || sp.bar.failureCount != 1 {
		t.Errorf("Expected 1 success and 1 failure, got %d/%d", sp.bar.successCount, sp.bar.failureCount)
	}
	if !strings.Contains(output, "insert dim_user") {
		t.Errorf("Statement label not displayed: %q", output)
	}
	if !strings.Contains(output, "1 not attempted") {
		t.Errorf("Skipped statements not reported: %q", output)
	}
}

func TestStatementProgress_FinishWithoutStatements(t *testing.T) {
	sp := NewStatementProgress()

	output := captureOutput(t, sp.Finish)

	if output != "" {
		t.Errorf("Expected no output, got %q", output)
	}
}

func TestSpinner_StartStop(t *testing.T) {
	spinner := NewSpinner("Connecting to warehouse")

	output := captureOutput(t, func() {
		spinner.Start()
		time.Sleep(250 * time.Millisecond)
		spinner.Stop(true, "Connected")
	})

	if !strings.Contains(output, "Connecting to warehouse") {
		t.Error("Spinner message not displayed")
	}
	if !strings.Contains(output, "Connected") || !strings.Contains(output, "✓") {
		t.Error("Completion message not displayed")
	}
}

func TestSpinner_StopWithError(t *testing.T) {
	spinner := NewSpinner("Connecting")

	output := captureOutput(t, func() {
		spinner.Start()
		time.Sleep(100 * time.Millisecond)
		spinner.Stop(false, "Connection failed")
		spinner.Stop(false, "Connection failed")
	})

	if strings.Count(output, "Connection failed") != 1 {
		t.Errorf("Expected a single failure line, got %q", output)
	}
	if !strings.Contains(output, "✗") {
		t.Error("Error symbol not displayed")
	}
}

func TestSpinner_Concurrency(t *testing.T) {
	spinner := NewSpinner("Concurrent test")

	captureOutput(t, func() {
		spinner.Start()

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(index int) {
				defer wg.Done()
				spinner.UpdateMessage(string(rune('A' + index)))
				time.Sleep(50 * time.Millisecond)
			}(i)
		}

		wg.Wait()
		spinner.Stop(true, "Concurrent test completed")
	})

	if !spinner.stopped {
		t.Error("Spinner should be stopped")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     string
	}{
		{500 * time.Millisecond, "500ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.duration); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, got, tt.want)
		}
	}
}
