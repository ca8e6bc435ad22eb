// Package catalog declares the static table of analysis phases the
// pipeline knows how to run, replacing dynamic reflection-based phase
// discovery with a filtered lookup over a fixed, ordered table.
package catalog

// Stage is one of the four execution stages. Order matters: it is the
// declaration order enforced between stages.
type Stage int

const (
	Foundation Stage = iota
	DataPrep
	Parallel
	Final
)

func (s Stage) String() string {
	switch s {
	case Foundation:
		return "foundation"
	case DataPrep:
		return "dataprep"
	case Parallel:
		return "parallel"
	case Final:
		return "final"
	default:
		return "unknown"
	}
}

// Track identifies one of the three parallel-stage workers. Only
// meaningful when Stage == Parallel.
type Track int

const (
	NoTrack Track = iota
	TrackA
	TrackB
	TrackC
)

func (t Track) String() string {
	switch t {
	case TrackA:
		return "Track A (Taint Analysis)"
	case TrackB:
		return "Track B (Static & Graph)"
	case TrackC:
		return "Track C (Network I/O)"
	default:
		return "none"
	}
}

// Entry is one row of the static phase catalog: a phase's identity, how
// to invoke it, which stage/track it belongs to, and the flags that
// control the runner's exit-code interpretation and argument injection.
type Entry struct {
	// Name uniquely identifies the phase within a run.
	Name string
	// Description is the human-readable label shown on the terminal's
	// phase-start line, e.g. "Check dependencies". pipeline.log records
	// the phase name only.
	Description string
	// Binary is the executable looked up on PATH. The analyzer phases
	// themselves are out of scope for this repository; only their
	// invocation contract is modeled here.
	Binary string
	// Args is the fixed argument vector appended after Binary.
	Args []string
	Stage Stage
	Track Track
	// DefaultTimeoutSeconds is the catalog's built-in upper bound,
	// overridable per-phase via config.Limits.
	DefaultTimeoutSeconds int
	// TreatsNonzeroAsFindings marks a findings-bearing phase: exit codes
	// 0, 1, 2 all mean success (clean/high/critical), and only other
	// nonzero codes mean failure. Declared in the table per phase,
	// never as a name check in the runner.
	TreatsNonzeroAsFindings bool
	// AcceptsExcludeSelf marks phases that accept the --exclude-self
	// flag when config.Options.ExcludeSelf is set.
	AcceptsExcludeSelf bool
	// RequiresNetwork marks phases skipped entirely when offline.
	RequiresNetwork bool
}

// Phases is the fixed, ordered catalog. Declaration order is the
// within-track and within-stage execution order (§4.3: "within a track,
// phases run in declaration order"). Timeouts and command shapes are
// grounded in the original pipeline's COMMAND_TIMEOUTS and command_order
// tables.
var Phases = []Entry{
	{
		Name:                   "index",
		Description:            "Index repository",
		Binary:                 "pf-index",
		Stage:                  Foundation,
		DefaultTimeoutSeconds:  600,
		AcceptsExcludeSelf:     true,
	},
	{
		Name:                  "detect-frameworks",
		Description:           "Detect frameworks",
		Binary:                "pf-detect-frameworks",
		Stage:                 Foundation,
		DefaultTimeoutSeconds: 300,
	},
	{
		Name:                  "workset",
		Description:           "Create workset (all files)",
		Binary:                "pf-workset",
		Args:                  []string{"--all"},
		Stage:                 DataPrep,
		DefaultTimeoutSeconds: 300,
	},
	{
		Name:                  "graph-build",
		Description:           "Build graph",
		Binary:                "pf-graph",
		Args:                  []string{"build"},
		Stage:                 DataPrep,
		DefaultTimeoutSeconds: 600,
	},
	{
		Name:                  "cfg-analyze",
		Description:           "Control flow analysis",
		Binary:                "pf-cfg",
		Args:                  []string{"analyze", "--complexity-threshold", "10"},
		Stage:                 DataPrep,
		DefaultTimeoutSeconds: 600,
	},
	{
		Name:                  "churn",
		Description:           "Analyze code churn (git history)",
		Binary:                "pf-metadata",
		Args:                  []string{"churn"},
		Stage:                 DataPrep,
		DefaultTimeoutSeconds: 300,
	},
	{
		Name:                    "taint-analyze",
		Description:             "Taint analysis",
		Binary:                  "pf-taint",
		Stage:                   Parallel,
		Track:                   TrackA,
		DefaultTimeoutSeconds:   36000,
		TreatsNonzeroAsFindings: true,
	},
	{
		Name:                  "lint",
		Description:           "Run linting",
		Binary:                "pf-lint",
		Args:                  []string{"--workset"},
		Stage:                 Parallel,
		Track:                 TrackB,
		DefaultTimeoutSeconds: 900,
	},
	{
		Name:                  "detect-patterns",
		Description:           "Detect patterns",
		Binary:                "pf-detect-patterns",
		Stage:                 Parallel,
		Track:                 TrackB,
		DefaultTimeoutSeconds: 36000,
		AcceptsExcludeSelf:    true,
	},
	{
		Name:                  "graph-analyze",
		Description:           "Analyze graph",
		Binary:                "pf-graph",
		Args:                  []string{"analyze"},
		Stage:                 Parallel,
		Track:                 TrackB,
		DefaultTimeoutSeconds: 600,
	},
	{
		Name:                  "graph-viz-full",
		Description:           "Visualize graph (full)",
		Binary:                "pf-graph",
		Args:                  []string{"viz", "--view", "full", "--include-analysis"},
		Stage:                 Parallel,
		Track:                 TrackB,
		DefaultTimeoutSeconds: 600,
	},
	{
		Name:                  "graph-viz-cycles",
		Description:           "Visualize graph (cycles)",
		Binary:                "pf-graph",
		Args:                  []string{"viz", "--view", "cycles", "--include-analysis"},
		Stage:                 Parallel,
		Track:                 TrackB,
		DefaultTimeoutSeconds: 600,
	},
	{
		Name:                  "graph-viz-hotspots",
		Description:           "Visualize graph (hotspots)",
		Binary:                "pf-graph",
		Args:                  []string{"viz", "--view", "hotspots", "--include-analysis"},
		Stage:                 Parallel,
		Track:                 TrackB,
		DefaultTimeoutSeconds: 600,
	},
	{
		Name:                  "graph-viz-layers",
		Description:           "Visualize graph (layers)",
		Binary:                "pf-graph",
		Args:                  []string{"viz", "--view", "layers", "--include-analysis"},
		Stage:                 Parallel,
		Track:                 TrackB,
		DefaultTimeoutSeconds: 600,
	},
	{
		Name:                    "deps",
		Description:             "Check dependencies",
		Binary:                  "pf-deps",
		Args:                    []string{"--check-latest", "--vuln-scan"},
		Stage:                   Parallel,
		Track:                   TrackC,
		DefaultTimeoutSeconds:   300,
		TreatsNonzeroAsFindings: true,
		RequiresNetwork:         true,
	},
	{
		Name:                  "docs-fetch",
		Description:           "Fetch documentation",
		Binary:                "pf-docs",
		Args:                  []string{"fetch", "--deps", ".pf/raw/deps.json"},
		Stage:                 Parallel,
		Track:                 TrackC,
		DefaultTimeoutSeconds: 300,
		RequiresNetwork:       true,
	},
	{
		Name:                  "docs-summarize",
		Description:           "Summarize documentation",
		Binary:                "pf-docs",
		Args:                  []string{"summarize"},
		Stage:                 Parallel,
		Track:                 TrackC,
		DefaultTimeoutSeconds: 300,
		RequiresNetwork:       true,
	},
	{
		Name:                  "fce",
		Description:           "Factual correlation engine",
		Binary:                "pf-fce",
		Stage:                 Final,
		DefaultTimeoutSeconds: 1800,
	},
	{
		Name:                  "report",
		Description:           "Generate report",
		Binary:                "pf-report",
		Stage:                 Final,
		DefaultTimeoutSeconds: 600,
	},
}
