package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
	"github.com/olekukonko/tablewriter"

	"dwhload/internal/pipeline"
	"dwhload/pkg/errors"
)

var (
	// Check if output supports colors
	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	// Color functions
	ColorSuccess  = colorFunc(ansi.Green)
	ColorError    = colorFunc(ansi.Red)
	ColorWarning  = colorFunc(ansi.Yellow)
	ColorInfo     = colorFunc(ansi.Cyan)
	ColorProgress = colorFunc(ansi.Blue)
	ColorBold     = colorFunc("default+b")
	ColorDim      = colorFunc("default+h")
)

// colorFunc returns a function that colors text if supported
func colorFunc(color string) func(string) string {
	return func(text string) string {
		if supportsColor {
			return ansi.Color(text, color)
		}
		return text
	}
}

// ShowHeader displays a formatted header
func ShowHeader(title string) {
	width := 50
	padding := (width - len(title) - 2) / 2
	if padding < 0 {
		padding = 0
	}
	right := width - 2 - padding - len(title)
	if right < 0 {
		right = 0
	}

	fmt.Println("\n+" + strings.Repeat("-", width-2) + "+")
	fmt.Printf("|%s%s%s|\n",
		strings.Repeat(" ", padding),
		ColorBold(title),
		strings.Repeat(" ", right),
	)
	fmt.Println("+" + strings.Repeat("-", width-2) + "+")
}

// ShowError displays an error with its code and suggestions. Errors that do
// not carry suggestions get one from the message when a common cause is
// recognised.
func ShowError(err error) {
	if err == nil {
		return
	}

	label := "ERROR:"
	appErr, isApp := errors.AsAppError(err)
	if isApp {
		label = fmt.Sprintf("ERROR [%s]:", appErr.Code)
	}

	message := err.Error()
	if isApp {
		message = appErr.Message
		if appErr.Cause != nil {
			message += "\n" + appErr.Cause.Error()
		}
	}

	fmt.Printf("\n%s\n", ColorError(label))
	for i, line := range strings.Split(message, "\n") {
		if i == 0 {
			fmt.Printf("  %s\n", line)
		} else {
			fmt.Printf("  %s\n", ColorDim(line))
		}
	}

	var suggestions []string
	if isApp {
		suggestions = appErr.Suggestions
	}
	if len(suggestions) == 0 {
		if s := getSuggestion(err.Error()); s != "" {
			suggestions = []string{s}
		}
	}
	for _, s := range suggestions {
		fmt.Printf("  %s %s\n", ColorInfo("TIP:"), ColorInfo(s))
	}
}

// ShowSuccess displays a success message
func ShowSuccess(message string) {
	fmt.Printf("%s %s\n", ColorSuccess("SUCCESS:"), message)
}

// ShowWarning displays a warning message
func ShowWarning(message string) {
	fmt.Printf("%s %s\n", ColorWarning("WARNING:"), ColorWarning(message))
}

// ShowInfo displays an info message
func ShowInfo(message string) {
	fmt.Printf("%s %s\n", ColorInfo("INFO:"), message)
}

// PrintKeyValue prints an aligned key/value pair.
func PrintKeyValue(key, value string) {
	fmt.Printf("  %-14s %s\n", ColorBold(key+":"), value)
}

// RenderCounts renders row counts as a table. Empty tables are highlighted.
func RenderCounts(counts []pipeline.TableCount) string {
	var buf strings.Builder

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Table", "Rows"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})

	for _, c := range counts {
		rows := fmt.Sprintf("%d", c.Rows)
		if c.Rows == 0 && supportsColor {
			rows = color.YellowString(rows)
		}
		table.Append([]string{c.Table.String(), rows})
	}
	table.Render()
	return buf.String()
}

// RenderReport renders the per-step summary of a run.
func RenderReport(report *pipeline.Report) string {
	var buf strings.Builder

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Step", "Statements", "Duration", "Status"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, s := range report.Steps {
		status := "ok"
		if s.Err != nil {
			status = "failed"
		}
		if supportsColor {
			if s.Err != nil {
				status = color.RedString(status)
			} else {
				status = color.GreenString(status)
			}
		}
		table.Append([]string{
			string(s.Step),
			fmt.Sprintf("%d", s.Statements),
			formatDuration(s.Duration),
			status,
		})
	}
	table.Render()
	return buf.String()
}

// getSuggestion returns helpful suggestions based on error messages
func getSuggestion(message string) string {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "password authentication failed"):
		return "Check CLUSTER.DB_USER and CLUSTER.DB_PASSWORD in dwh.cfg"
	case strings.Contains(lower, "connection refused"), strings.Contains(lower, "no such host"):
		return "Verify CLUSTER.HOST and that the cluster accepts connections from this network"
	case strings.Contains(lower, "stl_load_errors"):
		return "Query stl_load_errors for the rejected rows"
	case strings.Contains(lower, "permission denied"):
		return "Ensure the database user owns the schema or has CREATE privileges"
	case strings.Contains(lower, "does not exist"):
		return "Run 'dwhload create-tables' first"
	default:
		return ""
	}
}
