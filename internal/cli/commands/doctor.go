package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nadi-hydro/nadi/internal/cli/output"
	"github.com/nadi-hydro/nadi/internal/network"
	"github.com/nadi-hydro/nadi/internal/state"
	"github.com/nadi-hydro/nadi/internal/tsdb"
	"github.com/spf13/cobra"
)

// Health check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor <connection-file>",
		Short: "Check a network and the project setup",
		Long: `Analyze a river network and the project for potential issues.

The report includes:
- Network summary (nodes, edges, outlets, headwaters, depth)
- Health checks grouped by category (Structure, Attributes, Storage)
- Health score (0-100)
- Actionable recommendations`,
		Example: `  # Run health check
  nadi doctor rivers.network

  # Output as JSON
  nadi doctor rivers.network -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, args[0])
		},
	}
	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         NetworkSummary `json:"summary"`
	HealthChecks    []HealthCheck  `json:"health_checks"`
	Score           int            `json:"score"`
	Recommendations []string       `json:"recommendations"`
	IssueCount      int            `json:"issue_count"`
}

// NetworkSummary contains network-level statistics.
type NetworkSummary struct {
	Nodes      int `json:"nodes"`
	Edges      int `json:"edges"`
	Outlets    int `json:"outlets"`
	Headwaters int `json:"headwaters"`
	Depth      int `json:"depth"`
	Attributes int `json:"attributes"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	RuleID     string   `json:"rule_id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, path string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	net, err := cmdCtx.LoadNetwork(path)
	if err != nil {
		return err
	}

	checks := networkChecks(net)
	checks = append(checks, storageChecks(cmd.Context(), cmdCtx)...)
	out := buildDoctorOutput(net, checks)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, out)
	default:
		return renderDoctorText(r, out)
	}
}

func buildDoctorOutput(net *network.Network, checks []HealthCheck) *DoctorOutput {
	issues := 0
	for _, c := range checks {
		issues += c.IssueCount
	}
	return &DoctorOutput{
		Summary:         buildNetworkSummary(net),
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks, net.Len()),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issues,
	}
}

func buildNetworkSummary(net *network.Network) NetworkSummary {
	g := net.Graph()
	s := NetworkSummary{
		Nodes:      net.Len(),
		Edges:      g.EdgeCount(),
		Outlets:    len(g.Outlets()),
		Headwaters: len(g.Sources()),
	}
	attrs := make(map[string]bool)
	for _, node := range net.Nodes() {
		if node.Level+1 > s.Depth {
			s.Depth = node.Level + 1
		}
		for _, k := range node.AttrNames() {
			attrs[k] = true
		}
	}
	s.Attributes = len(attrs)
	return s
}

func check(id, name, group string, details []string, failStatus string) HealthCheck {
	c := HealthCheck{RuleID: id, Name: name, Group: group, Status: statusPass, Details: details, IssueCount: len(details)}
	if len(details) > 0 {
		c.Status = failStatus
	}
	return c
}

func networkChecks(net *network.Network) []HealthCheck {
	g := net.Graph()

	var outlets []string
	if o := g.Outlets(); len(o) > 1 {
		outlets = o
	}

	var isolated, bare []string
	present := make(map[string][]string)
	for _, node := range net.Nodes() {
		if len(node.Inputs) == 0 && !node.HasOutput() && net.Len() > 1 {
			isolated = append(isolated, node.Name)
		}
		names := node.AttrNames()
		if len(names) == 0 {
			bare = append(bare, node.Name)
		}
		for _, k := range names {
			present[k] = append(present[k], node.Name)
		}
	}

	var partial []string
	keys := make([]string, 0, len(present))
	for k := range present {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if n := len(present[k]); n < net.Len() {
			partial = append(partial, fmt.Sprintf("%s: set on %d of %d nodes", k, n, net.Len()))
		}
	}

	return []HealthCheck{
		check("N001", "Single outlet", "structure", outlets, statusWarn),
		check("N002", "No isolated nodes", "structure", isolated, statusWarn),
		check("A001", "Nodes have attributes", "attributes", bare, statusWarn),
		check("A002", "Attributes set on every node", "attributes", partial, statusWarn),
	}
}

func storageChecks(ctx context.Context, cmdCtx *CommandContext) []HealthCheck {
	var stateIssues []string
	if cmdCtx.Store == nil {
		stateIssues = append(stateIssues, "state database could not be opened at "+cmdCtx.Cfg.StatePath)
	} else if _, err := cmdCtx.Store.ListRuns(ctx, 1); err != nil {
		stateIssues = append(stateIssues, err.Error())
	} else if s, ok := cmdCtx.Store.(*state.SQLiteStore); ok {
		if _, err := s.MigrationVersion(ctx); err != nil {
			stateIssues = append(stateIssues, err.Error())
		}
	}

	var duckIssues []string
	db, err := tsdb.Open(ctx, "", cmdCtx.Logger)
	if err != nil {
		duckIssues = append(duckIssues, err.Error())
	} else {
		_ = db.Close()
	}

	var fnIssues []string
	if _, err := cmdCtx.Functions(); err != nil {
		fnIssues = append(fnIssues, err.Error())
	}

	return []HealthCheck{
		check("S001", "State database", "storage", stateIssues, statusError),
		check("S002", "Timeseries engine", "storage", duckIssues, statusError),
		check("F001", "Function files load", "functions", fnIssues, statusError),
	}
}

// calculateHealthScore computes a health score from 0-100.
// Each warning issue costs 100/(2*nodes) points, capped at 10; each failing
// check costs a flat 25 regardless of its issue count.
func calculateHealthScore(checks []HealthCheck, nodeCount int) int {
	if nodeCount == 0 {
		nodeCount = 1
	}
	basePenalty := 100.0 / float64(nodeCount) / 2
	if basePenalty > 10 {
		basePenalty = 10
	}

	score := 100.0
	for _, c := range checks {
		switch c.Status {
		case statusError:
			score -= 25
		case statusWarn:
			score -= float64(c.IssueCount) * basePenalty
		}
	}
	if score < 0 {
		score = 0
	}
	return int(score)
}

func generateRecommendations(checks []HealthCheck) []string {
	var recs []string
	for _, c := range checks {
		if c.Status == statusPass {
			continue
		}
		if rec := getRecommendation(c.RuleID); rec != "" {
			recs = append(recs, rec)
		}
	}
	return recs
}

func getRecommendation(ruleID string) string {
	switch ruleID {
	case "N001":
		return "Connect the separate outlets, or split the connection file into one file per basin"
	case "N002":
		return "Remove nodes that are not connected, or add their \"a -> b\" lines"
	case "A001":
		return "Add attribute files (nodes/<name>.txt) for the nodes without attributes"
	case "A002":
		return `Set every attribute on all nodes, or use {attr?"default"} in templates and attr(name, default) in expressions`
	case "S001":
		return "Check state_path in nadi.yaml and that its directory is writable"
	case "S002":
		return "The DuckDB timeseries engine failed to start; timeseries commands will not work"
	case "F001":
		return "Fix the reported .star file in functions_dir, or run 'nadi functions' to see the error"
	}
	return ""
}

func statusLabel(status string) string {
	return strings.ToUpper(status)
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header.Render("NADI Network Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	r.Println(styles.Bold.Render("Network Summary"))
	r.Printf("   Nodes: %d | Edges: %d | Attributes: %d\n", out.Summary.Nodes, out.Summary.Edges, out.Summary.Attributes)
	r.Printf("   Depth: %d levels | Outlets: %d | Headwaters: %d\n", out.Summary.Depth, out.Summary.Outlets, out.Summary.Headwaters)
	r.Println("")

	r.Println(styles.Bold.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, c := range out.HealthChecks {
		if c.Group != currentGroup {
			currentGroup = c.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.Success.Render("✓")
		switch c.Status {
		case statusWarn:
			icon = styles.Warning.Render("!")
		case statusError:
			icon = styles.Error.Render("✗")
		}

		line := fmt.Sprintf("%s %s: %s", icon, c.RuleID, c.Name)
		if c.IssueCount > 0 {
			line += fmt.Sprintf(" (%d issues)", c.IssueCount)
		}
		r.Println("   " + line)

		for i, detail := range c.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(c.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Bold.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}
	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# NADI Network Health Report")
	r.Println("")

	r.Println("## Network Summary")
	r.Println("")
	r.Printf("- **Nodes**: %d\n", out.Summary.Nodes)
	r.Printf("- **Edges**: %d\n", out.Summary.Edges)
	r.Printf("- **Outlets**: %d\n", out.Summary.Outlets)
	r.Printf("- **Headwaters**: %d\n", out.Summary.Headwaters)
	r.Printf("- **Depth**: %d levels\n", out.Summary.Depth)
	r.Printf("- **Attributes**: %d\n", out.Summary.Attributes)
	r.Println("")

	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, c := range out.HealthChecks {
		if c.Group != currentGroup {
			currentGroup = c.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}
		r.Printf("- **[%s]** %s: %s", statusLabel(c.Status), c.RuleID, c.Name)
		if c.IssueCount > 0 {
			r.Printf(" (%d issues)", c.IssueCount)
		}
		r.Println("")
		for _, detail := range c.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}
	return nil
}
