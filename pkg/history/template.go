package history

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const unknownDay = "Unknown date"

// FormatTimeline renders items as a markdown timeline grouped by local day.
func FormatTimeline[T any](items []Item[T], title string) string {
	var timeline strings.Builder

	totalCommands := len(items)
	var successCount int
	var totalDuration time.Duration

	dayGroups := make(map[string][]Item[T])
	for _, item := range items {
		if item.ExitStatus != nil && *item.ExitStatus == 0 {
			successCount++
		}
		if item.Duration != nil {
			totalDuration += *item.Duration
		}

		day := unknownDay
		if item.StartTimestamp != nil {
			day = item.StartTimestamp.Local().Format("2006-01-02")
		}
		dayGroups[day] = append(dayGroups[day], item)
	}

	successRate := 0.0
	if totalCommands > 0 {
		successRate = float64(successCount) / float64(totalCommands) * 100.0
	}

	// Header and Summary
	timeline.WriteString(fmt.Sprintf("## Command Timeline - %s\n\n", title))
	timeline.WriteString(fmt.Sprintf("Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05")))

	timeline.WriteString("### Summary\n")
	timeline.WriteString(fmt.Sprintf("- **Total Commands:** %d\n", totalCommands))
	timeline.WriteString(fmt.Sprintf("- **Success Rate:** %.1f%%\n", successRate))
	timeline.WriteString(fmt.Sprintf("- **Total Duration:** %s\n\n", formatDuration(totalDuration)))

	// Dated days sort lexically; undated items go last.
	days := make([]string, 0, len(dayGroups))
	for day := range dayGroups {
		if day != unknownDay {
			days = append(days, day)
		}
	}
	sort.Strings(days)
	if _, ok := dayGroups[unknownDay]; ok {
		days = append(days, unknownDay)
	}

	for _, day := range days {
		timeline.WriteString(fmt.Sprintf("### %s\n\n", day))

		for _, item := range dayGroups[day] {
			timeStr := "--:--:--"
			if item.StartTimestamp != nil {
				timeStr = item.StartTimestamp.Local().Format("15:04:05")
			}

			statusIcon := "❔"
			var exitStr string
			if item.ExitStatus != nil {
				if *item.ExitStatus == 0 {
					statusIcon = "✅"
				} else {
					statusIcon = "❌"
					exitStr = fmt.Sprintf(" [Exit: %d]", *item.ExitStatus)
				}
			}

			var durationStr string
			if item.Duration != nil && *item.Duration > 0 {
				durationStr = fmt.Sprintf(" (%s)", formatDuration(*item.Duration))
			}

			var dirStr string
			if item.Cwd != nil && *item.Cwd != "" {
				dir := []rune(*item.Cwd)
				if len(dir) > 50 {
					dirStr = fmt.Sprintf(" `.../%s`", string(dir[len(dir)-30:]))
				} else {
					dirStr = fmt.Sprintf(" `%s`", *item.Cwd)
				}
			}

			timeline.WriteString(fmt.Sprintf("- %s **%s**%s%s%s: `%s`\n",
				statusIcon, timeStr, durationStr, exitStr, dirStr, item.CommandLine))
		}

		timeline.WriteString("\n")
	}

	return timeline.String()
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d / time.Minute)
	remSeconds := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%dm%ds", minutes, remSeconds)
}
