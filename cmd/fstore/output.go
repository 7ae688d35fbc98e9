package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"fstore/internal/api"
	"fstore/internal/format"
)

const outputTable = "table"

var outputFormatter format.Formatter = format.JSONFormatter{}

var stdout io.Writer = os.Stdout

func writeStructured(payload any) error {
	return outputFormatter.Write(stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(stdout, format, args...)
	return err
}

func writeFileTable(files []api.FileResponse) error {
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILENAME\tVISIBILITY\tSIZE\tTYPE\tUPLOADED\tTAGS")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			f.ID,
			f.Filename,
			f.Visibility,
			humanize.IBytes(uint64(f.Size)),
			displayType(f),
			humanize.Time(f.UploadedAt),
			strings.Join(f.Tags, ","),
		)
	}
	return tw.Flush()
}

func writeFileDetail(f api.FileResponse) error {
	lines := []string{
		fmt.Sprintf("id: %s", f.ID),
		fmt.Sprintf("filename: %s", f.Filename),
		fmt.Sprintf("owner: %s", f.OwnerID),
		fmt.Sprintf("visibility: %s", f.Visibility),
		fmt.Sprintf("size: %s (%s bytes)", humanize.IBytes(uint64(f.Size)), humanize.Comma(f.Size)),
		fmt.Sprintf("type: %s", displayType(f)),
		fmt.Sprintf("sha256: %s", f.ContentHash),
		fmt.Sprintf("uploaded_at: %s", formatTime(f.UploadedAt)),
	}
	if len(f.Tags) > 0 {
		lines = append(lines, fmt.Sprintf("tags: %s", strings.Join(f.Tags, ", ")))
	}
	if f.DownloadLink != "" {
		lines = append(lines, fmt.Sprintf("link: %s", f.DownloadLink))
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func writeGCSummary(resp api.GCResponse) error {
	mode := "dry run"
	if !resp.DryRun {
		mode = "applied"
	}
	return writePlain("%s: scanned=%d candidates=%d deleted=%d failed=%d staging_swept=%d reclaimed=%s\n",
		mode, resp.ScannedCount, resp.CandidateCount, resp.DeletedCount, resp.FailedCount, resp.StagingSwept,
		humanize.IBytes(uint64(resp.ReclaimedBytes)))
}

func displayType(f api.FileResponse) string {
	if f.DetectedType != "" {
		return f.DetectedType
	}
	if f.ContentType != "" {
		return f.ContentType
	}
	return "-"
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
