package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// Custom help styles - glow theme
var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(GlowGold).
			MarginBottom(1)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(GlowAmber).
			Italic(true).
			MarginBottom(1)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(GlowAmber).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(GlowGold).
			Bold(true)

	helpArgStyle = lipgloss.NewStyle().
			Foreground(GlowViolet).
			Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(DuskGray).
				Italic(true)
)

// StyledHelpPrinter creates a custom help printer with Lipgloss styling
func StyledHelpPrinter(options kong.HelpOptions) kong.HelpPrinter {
	return kong.HelpPrinter(func(options kong.HelpOptions, ctx *kong.Context) error {
		var sb strings.Builder

		// Title and description
		sb.WriteString(helpTitleStyle.Render(AppTitle))
		sb.WriteString("\n")
		sb.WriteString(helpDescStyle.Render(AppDescription))
		sb.WriteString("\n")

		// Usage
		sb.WriteString(helpSectionStyle.Render("Usage:"))
		sb.WriteString("\n  ")
		sb.WriteString(fmt.Sprintf("%s <audio> <output> [flags]", ctx.Model.Name))
		sb.WriteString("\n")

		// Arguments section
		args := getArguments(ctx)
		if len(args) > 0 {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render("Arguments:"))
			sb.WriteString("\n")
			for _, arg := range args {
				sb.WriteString("  ")
				sb.WriteString(helpArgStyle.Render(arg.name))
				if arg.help != "" {
					sb.WriteString("  ")
					sb.WriteString(arg.help)
				}
				sb.WriteString("\n")
			}
		}

		// Flags, one section per group in declaration order
		for _, group := range getFlagGroups(ctx) {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render(group.title + ":"))
			sb.WriteString("\n")
			for _, flag := range group.flags {
				sb.WriteString("  ")
				sb.WriteString(helpFlagStyle.Render(flag.flags))
				if flag.help != "" {
					sb.WriteString("  ")
					sb.WriteString(flag.help)
				}
				if flag.defaultVal != "" {
					sb.WriteString(" ")
					sb.WriteString(helpDefaultStyle.Render("(default: " + flag.defaultVal + ")"))
				}
				sb.WriteString("\n")
			}
		}

		sb.WriteString("\n")
		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	})
}

type argument struct {
	name string
	help string
}

type flag struct {
	flags      string
	help       string
	defaultVal string
}

func getArguments(ctx *kong.Context) []argument {
	var args []argument

	// Parse arguments from the model
	for _, arg := range ctx.Model.Node.Positional {
		name := arg.Summary()
		help := arg.Help
		args = append(args, argument{name: name, help: help})
	}

	return args
}

type flagGroup struct {
	title string
	flags []flag
}

// getFlagGroups collects flags by their kong group. Ungrouped flags and the
// help flag go under "Flags".
func getFlagGroups(ctx *kong.Context) []flagGroup {
	groups := []flagGroup{{title: "Flags"}}
	index := map[string]int{"": 0}

	groups[0].flags = append(groups[0].flags, flag{
		flags: "-h, --help",
		help:  "Show context-sensitive help.",
	})

	for _, f := range ctx.Model.Node.Flags {
		if f.Name == "help" || f.Hidden {
			continue
		}

		flagStr := "--" + f.Name
		if f.Short != 0 {
			flagStr = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
		}
		if !f.IsBool() {
			flagStr += "=" + f.FormatPlaceHolder()
		}

		// Only show default if it's a meaningful value
		defaultVal := ""
		if f.HasDefault && !f.IsBool() && f.Default != "" && f.Default != "0s" {
			defaultVal = f.Default
		}

		key, title := "", "Flags"
		if f.Group != nil {
			key, title = f.Group.Key, f.Group.Title
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, flagGroup{title: title})
		}
		groups[i].flags = append(groups[i].flags, flag{
			flags:      flagStr,
			help:       f.Help,
			defaultVal: defaultVal,
		})
	}

	return groups
}
