package help

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkParser "github.com/yuin/goldmark/parser"
)

// FormatText formats a TopicResult for terminal output with the given width
func FormatText(result *TopicResult, width int) string {
	if width <= 0 {
		width = 80
	}

	var sb strings.Builder
	switch result.Kind {
	case "construct":
		formatConstructText(&sb, result, width)
	case "construct-list":
		formatConstructListText(&sb, result, width)
	default:
		fmt.Fprintf(&sb, "Unknown result kind: %s\n", result.Kind)
	}
	return sb.String()
}

// FormatJSON formats a TopicResult as JSON
func FormatJSON(result *TopicResult) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}

func formatConstructText(sb *strings.Builder, result *TopicResult, width int) {
	fmt.Fprintf(sb, "Construct: %s\n", result.Name)
	if len(result.Aliases) > 0 {
		fmt.Fprintf(sb, "Aliases: %s\n", strings.Join(result.Aliases, ", "))
	}
	if result.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(wrap(result.Description, width))
		sb.WriteString("\n")
	}

	if result.Counter != "" {
		fmt.Fprintf(sb, "\nCounter:\n  %s  number of members that follow\n", result.Counter)
	}

	if len(result.Fields) > 0 {
		sb.WriteString("\nFields:\n")
		maxLen := 0
		for _, f := range result.Fields {
			if l := len(fieldDisplay(f)); l > maxLen {
				maxLen = l
			}
		}
		for _, f := range result.Fields {
			display := fieldDisplay(f)
			padding := strings.Repeat(" ", maxLen-len(display)+2)
			fmt.Fprintf(sb, "  %s%s%s\n", display, padding, fieldNote(f))
		}
	}

	if len(result.Members) > 0 {
		sb.WriteString("\nMembers:")
		if result.MaxMembers > 0 {
			fmt.Fprintf(sb, " (at most %d)", result.MaxMembers)
		}
		sb.WriteString("\n")
		sb.WriteString(wrap("  "+strings.Join(result.Members, ", "), width))
		sb.WriteString("\n")
	}

	if result.Example != "" {
		sb.WriteString("\nExample:\n")
		for _, line := range strings.Split(strings.TrimRight(result.Example, "\n"), "\n") {
			fmt.Fprintf(sb, "  %s\n", line)
		}
	}
}

func formatConstructListText(sb *strings.Builder, result *TopicResult, width int) {
	sb.WriteString("Constructs:\n")
	maxLen := 0
	for _, c := range result.Constructs {
		if len(c.Name) > maxLen {
			maxLen = len(c.Name)
		}
	}
	for _, c := range result.Constructs {
		padding := strings.Repeat(" ", maxLen-len(c.Name)+2)
		desc := c.Description
		if room := width - maxLen - 4; room > 3 && len(desc) > room {
			desc = desc[:room-3] + "..."
		}
		fmt.Fprintf(sb, "  %s%s%s\n", c.Name, padding, desc)
	}
}

func fieldDisplay(f FieldEntry) string {
	return fmt.Sprintf("%s: %s", f.Name, f.Value)
}

func fieldNote(f FieldEntry) string {
	var notes []string
	if f.Required {
		notes = append(notes, "required")
	}
	if f.Max > 1 {
		notes = append(notes, fmt.Sprintf("up to %d", f.Max))
	}
	note := strings.Join(notes, ", ")
	if f.Doc != "" {
		if note != "" {
			return f.Doc + " (" + note + ")"
		}
		return f.Doc
	}
	return note
}

// wrap breaks s into lines of at most width bytes at spaces
func wrap(s string, width int) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	indent := s[:len(s)-len(strings.TrimLeft(s, " "))]
	var sb strings.Builder
	line := indent + words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			sb.WriteString(line)
			sb.WriteString("\n")
			line = indent + w
			continue
		}
		line += " " + w
	}
	sb.WriteString(line)
	return sb.String()
}

// Markdown renders a TopicResult as a markdown document
func Markdown(result *TopicResult) string {
	var sb strings.Builder
	switch result.Kind {
	case "construct-list":
		sb.WriteString("# Constructs\n\n| Construct | Description |\n|---|---|\n")
		for _, c := range result.Constructs {
			fmt.Fprintf(&sb, "| `%s` | %s |\n", c.Name, escapeCell(c.Description))
		}
	default:
		fmt.Fprintf(&sb, "# %s\n\n", result.Name)
		if len(result.Aliases) > 0 {
			fmt.Fprintf(&sb, "Also written `%s`.\n\n", strings.Join(result.Aliases, "`, `"))
		}
		if result.Description != "" {
			sb.WriteString(result.Description + "\n\n")
		}
		if result.Counter != "" {
			fmt.Fprintf(&sb, "Starts with `%s`, the number of members that follow.\n\n", result.Counter)
		}
		if len(result.Fields) > 0 {
			sb.WriteString("## Fields\n\n| Field | Value | Required | Description |\n|---|---|---|---|\n")
			for _, f := range result.Fields {
				req := "no"
				if f.Required {
					req = "yes"
				}
				fmt.Fprintf(&sb, "| `%s` | %s | %s | %s |\n", f.Name, f.Value, req, escapeCell(f.Doc))
			}
			sb.WriteString("\n")
		}
		if len(result.Members) > 0 {
			sb.WriteString("## Members\n\n")
			for _, m := range result.Members {
				fmt.Fprintf(&sb, "- `%s`\n", m)
			}
			sb.WriteString("\n")
		}
		if result.Example != "" {
			sb.WriteString("## Example\n\n```\n" + result.Example + "```\n")
		}
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// RenderHTML renders a TopicResult as an HTML fragment
func RenderHTML(result *TopicResult) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(goldmarkParser.WithAutoHeadingID()),
	)
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(result)), &buf); err != nil {
		return "", fmt.Errorf("rendering %s: %w", result.Name, err)
	}
	return buf.String(), nil
}
