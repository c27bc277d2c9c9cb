package reporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/opscart/k8s-replica-scaler/pkg/models"
)

// GenerateCSV writes the per-deployment outcome set as CSV.
func GenerateCSV(report *models.Report, writer io.Writer) error {
	w := csv.NewWriter(writer)
	defer w.Flush()

	header := []string{
		"Namespace",
		"Deployment",
		"Release",
		"Current Replicas",
		"Autoscaler Floor",
		"Target Replicas",
		"Outcome",
		"Reason",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, sig := range report.Signals {
		row := []string{
			report.Namespace,
			sig.Name,
			sig.ReleaseName,
			fmt.Sprintf("%d", sig.CurrentReplicas),
			floorCell(sig),
			targetCell(sig),
			string(sig.Outcome),
			sig.Reason,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	applied, skipped, failed := report.Counts()
	w.Write([]string{})
	w.Write([]string{"SUMMARY"})
	w.Write([]string{"Applied", fmt.Sprintf("%d", applied)})
	w.Write([]string{"Skipped", fmt.Sprintf("%d", skipped)})
	w.Write([]string{"Failed", fmt.Sprintf("%d", failed)})

	return nil
}
