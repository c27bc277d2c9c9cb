package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/opscart/k8s-replica-scaler/pkg/models"
)

// Reporter renders the reconciliation plan and outcome set.
type Reporter struct {
	out       io.Writer
	showUsage bool
}

// New creates a reporter writing to out.
func New(out io.Writer, showUsage bool) *Reporter {
	return &Reporter{
		out:       out,
		showUsage: showUsage,
	}
}

// RenderPlan prints the computed plan before confirmation or as the dry-run
// result. Outcome columns are omitted; nothing has been applied yet.
func (r *Reporter) RenderPlan(report *models.Report) {
	t := r.createTable()
	header := table.Row{"DEPLOYMENT", "RELEASE", "CURRENT", "FLOOR", "TARGET"}
	if r.showUsage {
		header = append(header, "CPU (m)", "MEMORY (Mi)")
	}
	t.AppendHeader(header)

	for _, sig := range report.Signals {
		row := table.Row{
			sig.Name,
			orDash(sig.ReleaseName),
			sig.CurrentReplicas,
			floorCell(sig),
			targetCell(sig),
		}
		if r.showUsage {
			row = append(row, usageCells(sig)...)
		}
		t.AppendRow(row)
	}
	t.Render()
}

// RenderOutcome prints the final per-deployment outcome set.
func (r *Reporter) RenderOutcome(report *models.Report) {
	if report.Aborted {
		fmt.Fprintln(r.out, "Scaling aborted, no changes were made.")
		return
	}

	t := r.createTable()
	t.AppendHeader(table.Row{"DEPLOYMENT", "CURRENT", "TARGET", "OUTCOME", "REASON"})
	for _, sig := range report.Signals {
		t.AppendRow(table.Row{
			sig.Name,
			sig.CurrentReplicas,
			targetCell(sig),
			string(sig.Outcome),
			orDash(sig.Reason),
		})
	}
	t.Render()

	applied, skipped, failed := report.Counts()
	fmt.Fprintf(r.out, "\n%d applied, %d skipped, %d failed\n", applied, skipped, failed)
}

// RenderJSON emits the full report as indented JSON.
func (r *Reporter) RenderJSON(report *models.Report) error {
	output := map[string]interface{}{
		"namespace":   report.Namespace,
		"direction":   report.Direction,
		"deployments": report.Signals,
		"aborted":     report.Aborted,
		"timestamp":   time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		return fmt.Errorf("error encoding JSON: %w", err)
	}
	return nil
}

func (r *Reporter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	return t
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func floorCell(sig *models.DeploymentSignal) string {
	if floor, ok := sig.Floor(); ok {
		return fmt.Sprintf("%d", floor)
	}
	return "-"
}

func targetCell(sig *models.DeploymentSignal) string {
	if sig.TargetReplicas == nil {
		return "-"
	}
	return fmt.Sprintf("%d", sig.Target())
}

func usageCells(sig *models.DeploymentSignal) []interface{} {
	if !sig.HasUsage {
		return []interface{}{"-", "-"}
	}
	return []interface{}{
		fmt.Sprintf("%d", sig.UsageCPU),
		fmt.Sprintf("%d", sig.UsageMemory/(1024*1024)),
	}
}
