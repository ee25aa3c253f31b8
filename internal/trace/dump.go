package trace

import (
	"fmt"
	"io"
	"strings"
)

const supervisorPrefix = "PTL"

// PrintTrace writes the human-readable chronological trace dump to w.
// Records whose task name begins with the reserved supervisor prefix and
// whose event is SWITCH_IN/SWITCH_OUT are filtered out to reduce noise,
// matching the original UART dump.
func (r *Ring) PrintTrace(w io.Writer) {
	fmt.Fprintln(w, "\n===== PTL TRACE =====")
	for _, rec := range r.Records() {
		if strings.HasPrefix(rec.TaskName, supervisorPrefix) &&
			(rec.Event == SwitchIn || rec.Event == SwitchOut) {
			continue
		}
		name := rec.TaskName
		if name == "" {
			name = "SYS"
		}
		fmt.Fprintf(w, "[%5d ms] %-10s %s\n", rec.Timestamp, name, rec.Event)
	}
	fmt.Fprintln(w, "======================================")
}

// PrintStatistics writes the fixed-order statistics summary, including
// the overhead pass/fail annotation.
func (r *Ring) PrintStatistics(w io.Writer) {
	stats := r.Reduce()

	fmt.Fprintln(w, "\n====== PTL STATISTICS ======")
	fmt.Fprintf(w, "Total Releases:     %d\n", stats.TotalReleases)
	fmt.Fprintf(w, "Total Completions:  %d\n", stats.TotalCompletions)
	fmt.Fprintf(w, "Deadline Misses:    %d\n", stats.DeadlineMisses)
	fmt.Fprintf(w, "Overruns:           %d\n", stats.OverrunCount)
	fmt.Fprintf(w, "Total Time:         %d ms\n", stats.TotalTimeMs)
	fmt.Fprintf(w, "Idle Time:          %d ms\n", stats.IdleTimeMs)
	fmt.Fprintf(w, "CPU Utilization:    %s\n", formatPercent(stats.CPUUtilization))
	fmt.Fprintf(w, "System Overhead:    %s\n", overheadLine(stats))
	fmt.Fprintln(w, "============================")
}

func formatPercent(fraction float64) string {
	return fmt.Sprintf("%.2f%%", fraction*100)
}

func overheadLine(stats Stats) string {
	if stats.CPUUtilization < 0.5 {
		return "N/A (low CPU load)"
	}
	overhead := stats.Overhead()
	if overhead <= 0.10 {
		return fmt.Sprintf("%s [OK]", formatPercent(overhead))
	}
	return fmt.Sprintf("%s [FAIL - Required <=10%%]", formatPercent(overhead))
}
