package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pterm/pterm"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/jobs"
	"github.com/Finn-coder2026/jolli-demo-sub011/trigger"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal output")
	}
	fmt.Println(string(data))
	return nil
}

func renderTable(rows [][]string) error {
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

func renderDefinitions(defs []jobs.DefinitionInfo) error {
	rows := [][]string{{"NAME", "CATEGORY", "TRIGGERS", "DASHBOARD", "TITLE"}}
	for _, d := range defs {
		rows = append(rows, []string{
			d.Name,
			d.Category,
			joinOrDash(d.TriggerEvents),
			yesNo(d.ShowInDashboard),
			d.Title,
		})
	}
	return renderTable(rows)
}

func renderExecutions(execs []*jobs.JobExecution) error {
	if len(execs) == 0 {
		pterm.Info.Println("No executions")
		return nil
	}
	rows := [][]string{{"ID", "NAME", "STATUS", "RETRIES", "CREATED", "DURATION", "FLAGS", "ERROR"}}
	for _, e := range execs {
		rows = append(rows, []string{
			e.ID,
			e.Name,
			colorStatus(e.Status),
			strconv.Itoa(e.RetryCount),
			e.CreatedAt.Local().Format(time.DateTime),
			duration(e),
			flags(e),
			truncate(e.Error, 60),
		})
	}
	return renderTable(rows)
}

func renderExecution(e *jobs.JobExecution) error {
	pterm.DefaultSection.Printfln("%s %s", e.Name, e.ID)
	pterm.Printfln("Status:    %s", colorStatus(e.Status))
	pterm.Printfln("Created:   %s", e.CreatedAt.Local().Format(time.DateTime))
	pterm.Printfln("Duration:  %s", duration(e))
	if e.SourceJobID != "" {
		pterm.Printfln("Retry of:  %s (attempt %d)", e.SourceJobID, e.RetryCount)
	}
	if e.LoopPrevented {
		pterm.Warning.Printfln("Loop prevented: %s", e.LoopReason)
	}
	if e.Error != "" {
		pterm.Error.Println(e.Error)
	}
	if len(e.Params) > 0 {
		pterm.Printfln("Params:    %s", string(e.Params))
	}
	if len(e.Stats) > 0 {
		pterm.Printfln("Stats:     %s", string(e.Stats))
	}
	if len(e.Logs) == 0 {
		return nil
	}

	rows := [][]string{{"TIME", "LEVEL", "CODE", "MESSAGE"}}
	for _, l := range e.Logs {
		rows = append(rows, []string{l.Timestamp.Local().Format(time.TimeOnly), string(l.Level), l.Code, truncate(l.Message, 80)})
	}
	pterm.Println()
	return renderTable(rows)
}

func renderMatches(res *trigger.Result, runScriptJob string) error {
	pterm.Info.Printfln("JRN %s  verb %s  (%d documents scanned, %d unparseable)", res.JRN, res.Verb, res.Scanned, res.ParseErrors)
	if len(res.Matches) == 0 {
		pterm.Warning.Println("No documents match")
		return nil
	}
	rows := [][]string{{"DOCUMENT", "TYPE", "MATCHER", "ACTION"}}
	for _, m := range res.Matches {
		action := "log only"
		if m.Document.Executable() {
			action = "queue " + runScriptJob
		}
		rows = append(rows, []string{m.Document.ID, m.Document.ArticleType, m.Matcher.JRN, action})
	}
	return renderTable(rows)
}

func renderStats(stats *jobs.ExecutionStats) error {
	rows := [][]string{{"STATUS", "COUNT"}}
	for _, st := range jobs.AllStatuses {
		rows = append(rows, []string{colorStatus(st), strconv.Itoa(stats.ByStatus[st])})
	}
	rows = append(rows, []string{"total", strconv.Itoa(stats.Total)})
	return renderTable(rows)
}

// renderMetrics prints every counter and histogram sample count in reg
func renderMetrics(reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return errors.Wrap(err, "failed to gather metrics")
	}
	rows := [][]string{{"METRIC", "LABELS", "VALUE"}}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			pairs := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				pairs = append(pairs, lp.GetName()+"="+lp.GetValue())
			}
			labels := strings.Join(pairs, ",")
			value := ""
			switch {
			case m.GetCounter() != nil:
				value = strconv.FormatFloat(m.GetCounter().GetValue(), 'f', -1, 64)
			case m.GetHistogram() != nil:
				value = fmt.Sprintf("%d samples", m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			rows = append(rows, []string{mf.GetName(), labels, value})
		}
	}
	if len(rows) == 1 {
		return nil
	}
	return renderTable(rows)
}

func colorStatus(s jobs.JobStatus) string {
	switch s {
	case jobs.JobStatusCompleted:
		return pterm.Green(string(s))
	case jobs.JobStatusFailed:
		return pterm.Red(string(s))
	case jobs.JobStatusCancelled:
		return pterm.Yellow(string(s))
	case jobs.JobStatusActive:
		return pterm.Cyan(string(s))
	default:
		return string(s)
	}
}

func duration(e *jobs.JobExecution) string {
	if e.StartedAt == nil {
		return "-"
	}
	end := time.Now()
	if e.CompletedAt != nil {
		end = *e.CompletedAt
	}
	return end.Sub(*e.StartedAt).Round(time.Millisecond).String()
}

func flags(e *jobs.JobExecution) string {
	var out []string
	if e.PinnedAt != nil {
		out = append(out, "pinned")
	}
	if e.DismissedAt != nil {
		out = append(out, "dismissed")
	}
	if e.LoopPrevented {
		out = append(out, "loop")
	}
	return joinOrDash(out)
}

func joinOrDash(list []string) string {
	if len(list) == 0 {
		return "-"
	}
	return strings.Join(list, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
