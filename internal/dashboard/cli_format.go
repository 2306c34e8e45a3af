package dashboard

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tunnelgate/gateway/internal/upstream"
)

// FormatToolsTable renders a tools snapshot for the status command,
// in the teacher's table-formatter idiom.
func FormatToolsTable(tools []mcp.Tool) string {
	if len(tools) == 0 {
		return "no tools registered"
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{text.FgHiCyan.Sprint("NAME"), text.FgHiCyan.Sprint("DESCRIPTION")})
	for _, tool := range tools {
		t.AppendRow(table.Row{text.FgHiCyan.Sprint(tool.Name), truncate(tool.Description, 80)})
	}

	var out strings.Builder
	t.SetOutputMirror(&out)
	t.Render()
	out.WriteString(fmt.Sprintf("\n%s %d tools\n", text.FgHiBlue.Sprint("Total:"), len(tools)))
	return out.String()
}

// FormatUpstreamsTable renders upstream health for the status command.
func FormatUpstreamsTable(snapshots []upstream.Snapshot) string {
	if len(snapshots) == 0 {
		return "no upstreams configured"
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("HEALTH"),
		text.FgHiCyan.Sprint("LAST CHECKED"),
		text.FgHiCyan.Sprint("ERROR"),
	})
	for _, s := range snapshots {
		health := text.FgHiGreen.Sprint(s.Health)
		if s.Health != "healthy" {
			health = text.FgHiRed.Sprint(s.Health)
		}
		t.AppendRow(table.Row{s.Name, health, s.LastChecked.Format("15:04:05"), s.LastError})
	}

	var out strings.Builder
	t.SetOutputMirror(&out)
	t.Render()
	return out.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-len("…")] + "…"
}
