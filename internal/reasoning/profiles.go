package reasoning

import "sort"

// Profile describes an agent's role and reasoning style. Used to flavor
// fallback synthesis and prompt construction for live sources.
type Profile struct {
	Role  string
	Style string
	Focus string
}

// profiles is the built-in agent roster. Unknown agents get genericProfile.
var profiles = map[string]Profile{
	"Theory":   {Role: "Theoretical Analyst", Style: "analytical, hypothesis-driven", Focus: "theoretical frameworks, abstract reasoning"},
	"Echo":     {Role: "Historical Researcher", Style: "methodical, precedent-focused", Focus: "historical data, pattern matching"},
	"Verdict":  {Role: "Decision Synthesizer", Style: "decisive, risk-aware", Focus: "final decisions, risk assessment"},
	"Lyra":     {Role: "Orchestrator", Style: "coordinating, consensus-building", Focus: "team coordination, workflow management"},
	"Nexus":    {Role: "Data Integrator", Style: "systematic, comprehensive", Focus: "data synthesis, cross-referencing"},
	"Volt":     {Role: "Technical Specialist", Style: "precise, technical", Focus: "technical analysis, system diagnostics"},
	"Sentinel": {Role: "Security Auditor", Style: "vigilant, risk-focused", Focus: "threat detection, compliance"},
	"Lens":     {Role: "Pattern Analyst", Style: "observational, detail-oriented", Focus: "visual analysis, pattern recognition"},
	"Core":     {Role: "System Coordinator", Style: "central, integrative", Focus: "system integration, core processing"},
	"Beacon":   {Role: "Information Gatherer", Style: "exploratory, comprehensive", Focus: "data collection, source validation"},
	"Vitals":   {Role: "Health Monitor", Style: "monitoring, diagnostic", Focus: "system health, performance metrics"},
	"Luma":     {Role: "Insight Generator", Style: "illuminating, clarifying", Focus: "insight generation, clarity"},
	"Otto":     {Role: "Process Optimizer", Style: "efficient, optimization-focused", Focus: "process improvement, automation"},
	"Arc":      {Role: "Strategic Planner", Style: "forward-thinking, strategic", Focus: "long-term planning, strategy"},
}

var genericProfile = Profile{
	Role:  "General Agent",
	Style: "analytical",
	Focus: "problem solving",
}

// ProfileFor returns the profile for an agent, or the generic profile.
func ProfileFor(agent string) Profile {
	if p, ok := profiles[agent]; ok {
		return p
	}
	return genericProfile
}

// KnownAgents returns the names of all built-in agents, sorted.
func KnownAgents() []string {
	out := make([]string, 0, len(profiles))
	for name := range profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
