// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"todo/internal/service"
)

// descriptionIndent aligns description lines under the task title.
const descriptionIndent = "          "

// FormatTask formats a task line and its description.
// Format: "{N:>4}  [x] {TITLE}\n" (4-wide right-aligned number, two spaces,
// completion box, title), then each description line indented under the
// title.
func FormatTask(w io.Writer, num int, task service.Task) {
	FormatTaskRef(w, strconv.Itoa(num), task)
}

// FormatTaskRef is FormatTask with an arbitrary reference label, such as
// "#42", in place of the position.
func FormatTaskRef(w io.Writer, ref string, task service.Task) {
	box := "[ ]"
	if task.Completed {
		box = "[x]"
	}
	fmt.Fprintf(w, "%4s  %s %s\n", ref, box, normalizeTitle(task.Title))
	for _, line := range descriptionLines(task.Description) {
		fmt.Fprintf(w, "%s%s\n", descriptionIndent, line)
	}
}

// FormatTasks formats tasks numbered from 1 in collection order.
func FormatTasks(w io.Writer, tasks []service.Task) {
	for i, task := range tasks {
		FormatTask(w, i+1, task)
	}
}

// FormatUser formats a profile as "key: value" lines, skipping empty fields.
func FormatUser(w io.Writer, user service.User) {
	field := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(w, "%-9s %s\n", key+":", value)
		}
	}
	field("id", strconv.Itoa(user.ID))
	field("email", user.Email)
	field("name", user.Name)
	field("phone", user.Phone)
	field("address", user.Address)
	field("document", user.DocumentID)
	field("picture", user.ProfilePicture)
	if loc := user.Location; loc != nil {
		field("location", fmt.Sprintf("%g, %g", loc.Latitude, loc.Longitude))
	}
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	// Replace newlines with spaces
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	// Trim and check for empty
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}

// descriptionLines splits a description into non-blank display lines.
func descriptionLines(desc string) []string {
	desc = strings.ReplaceAll(desc, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(desc, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
