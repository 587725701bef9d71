package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/table"

	"github.com/arloliu/go-modemterm/listener"
	"github.com/arloliu/go-modemterm/terminal"
	"github.com/arloliu/go-modemterm/xmodem"
)

// RenderHistoryTable formats the transfer records.
func RenderHistoryTable(records []terminal.TransferRecord) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{
		"Session",
		"Direction",
		"File",
		"Started",
		"Bytes",
		"Retries",
		"Status",
	})

	for _, r := range records {
		status := "ok"
		if reason, ok := xmodem.ReasonOf(r.Err); ok {
			status = reason.String()
		} else if r.Err != nil {
			status = r.Err.Error()
		}
		t.AppendRow(table.Row{
			shortID(r.ID),
			r.Direction,
			r.Path,
			r.Started.Format("2006-01-02 15:04:05"),
			r.Size,
			r.Result.Retries,
			status,
		})
	}

	return t.Render()
}

// RenderStatsTable formats the engine and listener counters.
func RenderStatsTable(m xmodem.MetricsSnapshot, lm *listener.Metrics) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Counter", "Value"})
	t.AppendRows([]table.Row{
		{"Transfers completed", m.TransferCount},
		{"Transfers aborted", m.AbortCount},
		{"Blocks sent", m.BlockSendCount},
		{"Blocks received", m.BlockRecvCount},
		{"Block retries", m.BlockRetryCount},
		{"Duplicate blocks", m.DuplicateBlockCount},
		{"Bytes sent", m.BytesSent},
		{"Bytes received", m.BytesReceived},
		{"Lines received", lm.LinesEmitted.Load()},
		{"Lines dropped", lm.LinesDropped.Load()},
	})

	return t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return fmt.Sprintf("%s…", id[:8])
	}

	return id
}
