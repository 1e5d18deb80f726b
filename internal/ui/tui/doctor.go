package tui

import (
	"fmt"
	"strings"

	"github.com/imamik/rabbitkind/internal/util/prerequisites"
)

// RenderDoctor formats prerequisite check results.
func RenderDoctor(results *prerequisites.CheckResults) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("rabbitkind doctor"))
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render("  Tools"))
	b.WriteString("\n")

	for _, r := range results.Results {
		var icon string
		var style styleFunc
		switch {
		case r.Found:
			icon, style = checkMark, sf(readyStyle)
		case r.Tool.Required:
			icon, style = crossMark, sf(failedStyle)
		default:
			icon, style = warnMark, sf(warningStyle)
		}

		detail := r.Version
		if !r.Found {
			detail = "not found: " + r.Tool.InstallURL
		}
		fmt.Fprintf(&b, "    %s %-10s %s\n", style(icon), style(r.Tool.Name), dimStyle.Render(detail))
		if !r.Found {
			fmt.Fprintf(&b, "               %s\n", dimStyle.Render(r.Tool.Description))
		}
	}

	if err := results.Error(); err != nil {
		b.WriteString(footerStyle.Render("  " + failedStyle.Render(err.Error())))
	} else {
		b.WriteString(footerStyle.Render("  " + readyStyle.Render("all required tools found")))
	}
	b.WriteString("\n")
	return b.String()
}
