package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/datallboy/execlogs/internal/domain"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func printSummary(w io.Writer, run *domain.Run) {
	r := run.Report

	fmt.Fprintf(w, "Run %s: %s\n", run.ID, run.Status)
	fmt.Fprintf(w, "Executors: %d total, %d succeeded, %d failed\n",
		r.Total(), len(r.Succeeded()), len(r.Failed()))
	fmt.Fprintf(w, "Bytes written: %s in %s\n",
		humanize.IBytes(uint64(r.BytesWritten())), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "Logs: %s\n", r.TargetDir)
	if r.ArchivePath != "" {
		fmt.Fprintf(w, "Archive: %s\n", r.ArchivePath)
	}
	if r.UploadURL != "" {
		fmt.Fprintf(w, "Uploaded: %s\n", r.UploadURL)
	}
	if run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", run.Error)
	}

	failed := r.Failed()
	if len(failed) == 0 {
		return
	}
	fmt.Fprintln(w, "Failed executors:")
	for _, o := range failed {
		fmt.Fprintf(w, "  executor %d (%s): %s\n", o.ExecutorID, o.Worker, o.Reason)
	}
}

// writeReport stores run as JSON when path ends in .json and as YAML otherwise.
func writeReport(path string, run *domain.Run) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(run, "", "  ")
	} else {
		data, err = toYAML(run)
	}
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func renderRuns(w io.Writer, runs []*domain.Run, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	case formatYAML:
		data, err := toYAML(runs)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAPP\tSTATUS\tEXECUTORS\tFAILED\tSIZE\tCREATED")
	for _, r := range runs {
		total, failed, size := "-", "-", "-"
		if r.Report != nil {
			total = fmt.Sprint(r.Report.Total())
			failed = fmt.Sprint(len(r.Report.Failed()))
			size = humanize.IBytes(uint64(r.Report.BytesWritten()))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Request.AppID, r.Status, total, failed, size, humanize.Time(r.CreatedAt))
	}
	return tw.Flush()
}

// toYAML renders v with the same field names as its JSON form.
func toYAML(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	blockStyle(&doc)

	return yaml.Marshal(&doc)
}

// blockStyle drops the flow and quoting styles JSON input carries.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
