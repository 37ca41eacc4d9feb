package types

import "time"

// DiagnosticKind classifies a condition met during analysis.
type DiagnosticKind string

const (
	CorruptArchive        DiagnosticKind = "CorruptArchive"
	MissingDescriptor     DiagnosticKind = "MissingDescriptor"
	MalformedDescriptor   DiagnosticKind = "MalformedDescriptor"
	UnreadableClassEntry  DiagnosticKind = "UnreadableClassEntry"
	InspectionUnavailable DiagnosticKind = "InspectionUnavailable"
	UnresolvedComponent   DiagnosticKind = "UnresolvedComponent"
	MissingModule         DiagnosticKind = "MissingModule"
	UnreadableModule      DiagnosticKind = "UnreadableModule"
	DuplicateModule       DiagnosticKind = "DuplicateModule"
)

// Scope is the smallest unit a diagnostic affects.
type Scope string

const (
	ArchiveScope    Scope = "archive"
	ModuleScope     Scope = "module"
	DescriptorScope Scope = "descriptor"
	ClassScope      Scope = "class"
	ComponentScope  Scope = "component"
)

// Diagnostic records a non-fatal condition and the scope it degraded.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Scope   Scope          `json:"scope"`
	Module  string         `json:"module,omitempty"`
	Subject string         `json:"subject,omitempty"`
	Message string         `json:"message"`
}

// Stats summarises a Result.
type Stats struct {
	Modules     int `json:"modules"`
	Components  int `json:"components"`
	Classes     int `json:"classes"`
	Methods     int `json:"methods"`
	JndiRefs    int `json:"jndi_refs"`
	Bindings    int `json:"vendor_bindings"`
	Edges       int `json:"edges"`
	Paths       int `json:"paths"`
	Diagnostics int `json:"diagnostics"`
}

// Result is the single value one analysis run produces.
type Result struct {
	Archive     Archive      `json:"archive"`
	Edges       []Edge       `json:"edges"`
	Paths       []FlowPath   `json:"paths"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Stats       Stats        `json:"stats"`
	Digest      string       `json:"digest,omitempty"`
	AnalyzedAt  time.Time    `json:"analyzed_at"`
}

// AllDiagnostics returns archive-level diagnostics followed by every module's.
func (r *Result) AllDiagnostics() []Diagnostic {
	all := append([]Diagnostic(nil), r.Diagnostics...)
	for _, m := range r.Archive.Modules {
		all = append(all, m.Diagnostics...)
	}
	return all
}

// DiagnosticsOf returns every diagnostic of the given kind.
func (r *Result) DiagnosticsOf(kind DiagnosticKind) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.AllDiagnostics() {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Module returns the module declared with the given name.
func (r *Result) Module(name string) (*Module, bool) {
	for i := range r.Archive.Modules {
		if r.Archive.Modules[i].Name == name {
			return &r.Archive.Modules[i], true
		}
	}
	return nil, false
}

// ComputeStats fills Stats from the current contents.
func (r *Result) ComputeStats() {
	s := Stats{
		Modules: len(r.Archive.Modules),
		Edges:   len(r.Edges),
		Paths:   len(r.Paths),
	}
	for _, m := range r.Archive.Modules {
		s.Components += len(m.Components)
		s.Classes += len(m.Classes)
		s.Bindings += len(m.Bindings)
		for _, c := range m.Classes {
			s.Methods += len(c.Methods)
			s.JndiRefs += len(c.Jndi)
		}
	}
	s.Diagnostics = len(r.AllDiagnostics())
	r.Stats = s
}
