package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/MimeLyc/bilingual-subs/internal/persistence"
	"github.com/MimeLyc/bilingual-subs/internal/service"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	if isTerminal(w) {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleLight)
		tw.Style().Options.SeparateRows = false
	}
	return tw
}

func writeReport(w io.Writer, r *service.Report) {
	if r.Idle {
		fmt.Fprintf(w, "Nothing to do: %s\n", r.IdleReason)
		return
	}
	if len(r.Files) == 0 {
		fmt.Fprintln(w, "No subtitle files processed")
		return
	}

	tw := newTable(w)
	tw.AppendHeader(table.Row{"File", "Status", "Target", "Captions", "Sent", "Chunks", "Muxed", "Time"})
	for _, f := range r.Files {
		status := string(f.Status)
		if f.Err != nil {
			status = fmt.Sprintf("%s: %v", status, f.Err)
		}
		muxed := ""
		if f.MuxedTo != "" {
			muxed = "yes"
		}
		sent := ""
		if f.Bytes > 0 {
			sent = humanize.Bytes(uint64(f.Bytes))
		}
		chunks := ""
		if f.Chunks > 0 {
			chunks = fmt.Sprintf("%d (%d cached)", f.Chunks, f.CachedChunks)
		}
		tw.AppendRow(table.Row{f.Name, status, f.Target, f.Captions, sent, chunks, muxed, f.Duration.Round(time.Millisecond)})
	}
	tw.AppendFooter(table.Row{
		fmt.Sprintf("%d files", len(r.Files)),
		fmt.Sprintf("%d translated, %d up-to-date, %d failed",
			r.Count(service.StatusTranslated), r.Count(service.StatusUpToDate), r.Count(service.StatusFailed)),
		"", "", "", "",
		strconv.Itoa(r.Muxed()),
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 60},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	tw.Render()
}

func writeHistory(w io.Writer, runs []persistence.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}

	tw := newTable(w)
	tw.AppendHeader(table.Row{"Run", "Started", "Directory", "Files", "Translated", "Skipped", "Failed", "Muxed"})
	for _, run := range runs {
		tw.AppendRow(table.Row{
			shortID(run.ID),
			humanize.Time(run.StartedAt),
			run.Dir,
			run.Files, run.Translated, run.Skipped, run.Failed, run.Muxed,
		})
	}
	tw.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
