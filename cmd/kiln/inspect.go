// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/invowk/kiln/internal/project"
	"github.com/invowk/kiln/pkg/assembly"
	"github.com/invowk/kiln/pkg/compose"
)

const (
	formatText     = "text"
	formatYAML     = "yaml"
	formatMarkdown = "markdown"
)

type (
	inspectFlags struct {
		contexts []string
		format   string
	}

	// keyReport is one key of an effective configuration.
	keyReport struct {
		Key        string               `yaml:"key"`
		Value      any                  `yaml:"value"`
		Provenance []compose.Provenance `yaml:"provenance"`
	}

	// inspectReport is the effective configuration of a project.
	inspectReport struct {
		Project  string      `yaml:"project"`
		Identity string      `yaml:"identity"`
		Root     string      `yaml:"root"`
		Contexts []string    `yaml:"contexts,omitempty"`
		Keys     []keyReport `yaml:"keys"`
	}

	strategyReport struct {
		Fallback assembly.Action `yaml:"fallback"`
		Rules    []assembly.Rule `yaml:"rules"`
	}
)

func newInspectCommand(app *App) *cobra.Command {
	var flags inspectFlags
	cmd := &cobra.Command{
		Use:   "inspect <project>",
		Short: "Show the effective configuration of a project",
		Long: `Show every key of a project's effective configuration together with
the layers that wrote it, in application order.

Contexts are activated in the order given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(app, flags, args[0])
		},
	}
	cmd.Flags().StringSliceVarP(&flags.contexts, "context", "c", nil, "activate a context (repeatable)")
	cmd.Flags().StringVar(&flags.format, "format", formatText, "output format: text, yaml or markdown")
	return cmd
}

func runInspect(app *App, flags inspectFlags, name string) error {
	switch flags.format {
	case formatText, formatYAML, formatMarkdown:
	default:
		return fmt.Errorf("unknown format %q (want text, yaml or markdown)", flags.format)
	}

	s, err := app.loadSession()
	if err != nil {
		return err
	}
	p, err := app.project(s, name)
	if err != nil {
		return err
	}
	cfg, err := p.Effective(flags.contexts...)
	if err != nil {
		return err
	}
	report := newInspectReport(p, cfg, flags.contexts)

	switch flags.format {
	case formatYAML:
		enc := yaml.NewEncoder(app.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case formatMarkdown:
		out, err := glamour.Render(report.markdown(), app.glamourStyle())
		if err != nil {
			return err
		}
		_, err = io.WriteString(app.stdout, out)
		return err
	default:
		report.writeText(app.stdout)
		return nil
	}
}

func newInspectReport(p *project.Project, cfg compose.Config, contexts []string) inspectReport {
	report := inspectReport{
		Project:  p.Name(),
		Identity: p.Identity().String(),
		Root:     p.Root(),
		Contexts: contexts,
	}
	for _, key := range cfg.Keys() {
		v, _ := cfg.Value(key)
		report.Keys = append(report.Keys, keyReport{
			Key:        key,
			Value:      displayValue(v),
			Provenance: cfg.Provenance(key),
		})
	}
	return report
}

// displayValue converts values without exported fields into a form the
// encoders can render.
func displayValue(v any) any {
	if s, ok := v.(assembly.Strategy); ok {
		return strategyReport{Fallback: s.Fallback(), Rules: s.Rules()}
	}
	return v
}

// formatValue renders a value on one line.
func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case strategyReport:
		parts := make([]string, 0, len(v.Rules)+1)
		for _, r := range v.Rules {
			parts = append(parts, r.String())
		}
		parts = append(parts, "* -> "+v.Fallback.String())
		return strings.Join(parts, ", ")
	case []string:
		return "[" + strings.Join(v, ", ") + "]"
	default:
		return fmt.Sprint(v)
	}
}

func formatProvenance(prov []compose.Provenance) string {
	parts := make([]string, len(prov))
	for i, p := range prov {
		parts[i] = p.Origin + " (" + string(p.Op) + ")"
	}
	return strings.Join(parts, " -> ")
}

func (r inspectReport) writeText(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", TitleStyle.Render(r.Project), SubtitleStyle.Render(r.Identity))
	fmt.Fprintf(w, "%s %s\n", SubtitleStyle.Render("root:"), r.Root)
	if len(r.Contexts) > 0 {
		fmt.Fprintf(w, "%s %s\n", SubtitleStyle.Render("contexts:"), strings.Join(r.Contexts, ", "))
	}
	fmt.Fprintln(w)
	for _, k := range r.Keys {
		fmt.Fprintf(w, "%s = %s\n", CmdStyle.Render(k.Key), formatValue(k.Value))
		fmt.Fprintf(w, "    %s\n", SubtitleStyle.Render(formatProvenance(k.Provenance)))
	}
}

func (r inspectReport) markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n`%s` in `%s`\n\n", r.Project, r.Identity, r.Root)
	if len(r.Contexts) > 0 {
		fmt.Fprintf(&sb, "Contexts: %s\n\n", strings.Join(r.Contexts, ", "))
	}
	sb.WriteString("| Key | Value | Written by |\n|---|---|---|\n")
	for _, k := range r.Keys {
		value := strings.ReplaceAll(formatValue(k.Value), "|", `\|`)
		fmt.Fprintf(&sb, "| `%s` | %s | %s |\n", k.Key, value, formatProvenance(k.Provenance))
	}
	return sb.String()
}
