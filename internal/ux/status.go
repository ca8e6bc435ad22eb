package ux

import (
	"fmt"
	"path/filepath"

	"github.com/pfaudit/pipeline/internal/artifacts"
	"github.com/pfaudit/pipeline/internal/status"
)

// tracks are the three parallel-stage status files a live run maintains.
var tracks = []string{
	"Track A (Taint Analysis)",
	"Track B (Static & Graph)",
	"Track C (Network I/O)",
}

// RenderStatus prints a snapshot of an in-progress (or just-finished)
// run: each track's last-reported position from its ephemeral status
// file, followed by the raw artifacts accumulated so far. Status files
// are deleted at run end (§4.7), so after a clean exit this shows only
// the artifacts section.
func RenderStatus(store *artifacts.Store) {
	fmt.Printf("%sTracks:%s\n", Bold, Reset)
	any := false
	for _, track := range tracks {
		rec, err := status.Read(store.StatusDir(), track)
		if err != nil {
			continue
		}
		any = true
		fmt.Printf("  %s%-34s%s %d/%d  %s→ %s%s\n",
			Dim, track, Reset, rec.Completed, rec.Total, Yellow, rec.Current, Reset)
	}
	if !any {
		fmt.Printf("  %s(no active tracks)%s\n", Dim, Reset)
	}

	fmt.Printf("\n%sArtifacts:%s\n", Bold, Reset)
	names, err := store.ListRawArtifacts()
	if err != nil || len(names) == 0 {
		fmt.Printf("  %s(none)%s\n", Dim, Reset)
		return
	}
	for _, name := range names {
		size, err := store.ArtifactSize(name)
		if err != nil {
			continue
		}
		fmt.Printf("  %s%s%s  %s%s\n", Dim, filepath.Join(store.RawDir(), name), Reset, Dim, humanSize(size))
	}
	fmt.Println()
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("(%.1f%ciB)", float64(n)/float64(div), "KMGTPE"[exp])
}
