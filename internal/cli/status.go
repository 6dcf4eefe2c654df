package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/hyperjump/shiraberu/internal/server"
)

// WriteStatus writes a status report in the given format. Compact prints a
// single summary line.
func WriteStatus(w io.Writer, status *server.StatusResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		return WriteJSON(w, status)
	case OutputCompact:
		fmt.Fprintf(w, "loaded=%t chunks=%d documents=%d index=%s disk=%s\n",
			status.Loaded, status.Chunks, status.Documents, status.IndexType, FormatBytes(status.DiskUsageBytes))
		return nil
	}

	if !status.Loaded {
		fmt.Fprintln(w, "Index: not loaded (run `shiraberu ingest` first)")
	} else {
		fmt.Fprintf(w, "Index:      %s, %d chunks, %d dimensions\n", status.IndexType, status.Chunks, status.Dimensions)
		if status.LoadedAt != nil {
			fmt.Fprintf(w, "Loaded at:  %s\n", status.LoadedAt.Format(time.RFC3339))
		}
	}
	fmt.Fprintf(w, "Documents:  %d\n", status.Documents)
	fmt.Fprintf(w, "Keyword:    %d chunks\n", status.KeywordDocs)
	if run := status.LatestRun; run != nil {
		fmt.Fprintf(w, "Last run:   %s (%d documents, %d chunks, %s)\n",
			run.ID, run.Documents, run.Chunks, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Disk usage: %s\n", FormatBytes(status.DiskUsageBytes))
	return nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
