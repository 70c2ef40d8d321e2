// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"tasksync/internal/service"
)

const (
	// ListSeparator is the separator line for list sections.
	ListSeparator = "------------"

	boxOpen = "[ ]"
	boxDone = "[x]"
)

// FormatTask formats one row of a list.
// Format: "{N:>4}  [ ] {TEXT}\n" with [x] for completed tasks.
func FormatTask(w io.Writer, num int, task service.Task) {
	box := boxOpen
	if task.Completed {
		box = boxDone
	}
	fmt.Fprintf(w, "%4d  %s %s\n", num, box, normalizeText(task.Text))
}

// FormatList writes the header and every row of list. Completed rows are
// skipped when openOnly is set; numbering still follows the full list.
func FormatList(w io.Writer, list service.TaskList, openOnly bool) {
	FormatListHeader(w, list.Name, false)
	for i, task := range list.Items {
		if openOnly && task.Completed {
			continue
		}
		FormatTask(w, i+1, task)
	}
}

// FormatListHeader formats a list section header.
func FormatListHeader(w io.Writer, title string, isDefault bool) {
	displayTitle := normalizeListTitle(title)
	if isDefault {
		displayTitle += " [default]"
	}
	fmt.Fprintln(w, ListSeparator)
	fmt.Fprintln(w, displayTitle)
	fmt.Fprintln(w, ListSeparator)
}

// FormatListName formats a list line for the lists command.
// Format: "{ID}  {NAME}[ *]\n", the star marking the active list.
func FormatListName(w io.Writer, list service.TaskList, active bool) {
	line := fmt.Sprintf("%s  %s", list.ID, normalizeListTitle(list.Name))
	if active {
		line += " *"
	}
	fmt.Fprintln(w, line)
}

// normalizeText normalizes task text for display.
// - Empty or whitespace-only text becomes "(untitled)"
// - Newlines are replaced with spaces
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")

	if strings.TrimSpace(text) == "" {
		return "(untitled)"
	}
	return text
}

// normalizeListTitle normalizes a list title for display.
// Empty or whitespace-only titles become "(untitled)".
func normalizeListTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
