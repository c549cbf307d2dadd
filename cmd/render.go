package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spigell/coldmail/internal/model"
	"github.com/spigell/coldmail/internal/pipeline"
)

const separator = "----------------------------------------"

func jobLabel(job model.Outreach) string {
	label := fmt.Sprintf("Job #%d: %s", job.Index, job.Job.Role)
	if job.Failed() {
		label += " (failed)"
	}
	return label
}

// writeOutreach prints one job, its matched links and the email.
func writeOutreach(out io.Writer, job model.Outreach) {
	fmt.Fprintln(out, separator)
	fmt.Fprintln(out, jobLabel(job))
	fmt.Fprintf(out, "Experience: %s\n", job.Job.Experience)
	if len(job.Job.Skills) > 0 {
		fmt.Fprintf(out, "Skills: %s\n", strings.Join(job.Job.Skills, ", "))
	}
	if job.Job.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", job.Job.Description)
	}

	if len(job.Links) == 0 {
		fmt.Fprintln(out, "Portfolio: no matching projects")
	} else {
		fmt.Fprintln(out, "Portfolio:")
		for _, link := range job.Links {
			fmt.Fprintf(out, "  - %s\n", link)
		}
	}
	fmt.Fprintln(out)

	if job.Failed() {
		fmt.Fprintf(out, "Email was not generated: %v\n", job.Err)
		return
	}
	fmt.Fprintln(out, job.Email)
}

func printReport(out io.Writer, format string, report *pipeline.Report) error {
	if format == outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	for _, job := range report.Jobs {
		writeOutreach(out, job)
	}
	fmt.Fprintln(out, separator)
	return nil
}

// dumpReport writes the report as JSON to a temp file and returns its name.
func dumpReport(report *pipeline.Report) (string, error) {
	f, err := os.CreateTemp("", app+"-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := printReport(f, outputJSON, report); err != nil {
		return "", err
	}

	return f.Name(), nil
}
