package report

import (
	"context"
	"errors"
	"os"

	"github.com/l3aro/earscope/internal/scanner"
	"github.com/l3aro/earscope/pkg/archive"
	"github.com/l3aro/earscope/pkg/descriptor"
	"github.com/l3aro/earscope/pkg/source"
	"github.com/l3aro/earscope/pkg/types"
)

// moduleRun accumulates the findings of one module.
type moduleRun struct {
	index  int
	module types.Module
}

func (r *moduleRun) diag(kind types.DiagnosticKind, scope types.Scope, subject, msg string) {
	r.module.Diagnostics = append(r.module.Diagnostics, types.Diagnostic{
		Kind:    kind,
		Scope:   scope,
		Module:  r.module.Name,
		Subject: subject,
		Message: msg,
	})
}

// analyzeModule produces one module of the result. It never fails: problems
// are recorded as module diagnostics and leave whatever was recovered.
func (a *Analyzer) analyzeModule(ctx context.Context, ws *archive.Workspace, root string, index int, ref descriptor.ModuleRef) types.Module {
	run := &moduleRun{index: index, module: types.Module{
		Name:        ref.URI,
		Kind:        ref.Kind,
		ContextRoot: ref.ContextRoot,
		Inspection:  types.StatusSkipped,
		Classes:     []types.ClassUnit{},
		Components:  []types.ComponentNode{},
	}}
	logger := a.logger.With("module", ref.URI)

	packed, err := archive.ResolveEntry(root, ref.URI)
	if err != nil {
		run.diag(types.UnreadableModule, types.ModuleScope, ref.URI, err.Error())
		return run.module
	}
	if _, err := os.Stat(packed); err != nil {
		logger.Warn("declared module not found")
		run.diag(types.MissingModule, types.ModuleScope, ref.URI, "declared module is not present in the archive")
		return run.module
	}

	dir, err := archive.ExtractNested(packed, ws.ModuleDir(index, ref.URI))
	if err != nil {
		logger.Warn("module unreadable", "error", err)
		run.diag(types.UnreadableModule, types.ModuleScope, ref.URI, err.Error())
		return run.module
	}
	if a.opts.KeepScratch {
		run.module.Path = dir
	}

	run.module.Components = append(run.module.Components, a.declaredComponents(run, dir)...)
	a.vendorBindings(run, dir)

	contents, err := a.scanner.Scan(dir, ref.Kind)
	if err != nil {
		run.diag(types.UnreadableModule, types.ModuleScope, ref.URI, err.Error())
		return run.module
	}
	entries := contents.Classes
	if a.opts.IncludeLibraries {
		entries = append(entries, a.libraryEntries(run, ws, contents.Libraries)...)
	}
	if contents.Excluded > 0 {
		logger.Debug("class entries excluded", "count", contents.Excluded)
	}

	inspected := a.inspector.InspectModule(ctx, entries)
	run.module.Inspection = inspected.Status
	run.module.Strategy = inspected.Strategy
	if inspected.Classes != nil {
		run.module.Classes = inspected.Classes
	}
	for _, d := range inspected.Diagnostics {
		d.Module = ref.URI
		if d.Subject == "" {
			d.Subject = ref.URI
		}
		run.module.Diagnostics = append(run.module.Diagnostics, d)
	}
	if inspected.Status == types.StatusUnavailable {
		logger.Warn("class inspection unavailable", "strategy", inspected.Strategy)
	}

	run.module.Components = mergeAnnotated(run.module.Components, inspected.Components)
	a.applySources(run, contents.Sources)

	logger.Debug("module analyzed",
		"classes", len(run.module.Classes),
		"components", len(run.module.Components),
		"status", run.module.Inspection,
	)
	return run.module
}

// declaredComponents parses the module's own descriptors. A web module may
// also carry EJB 3.1 beans in WEB-INF/ejb-jar.xml, which is optional.
func (a *Analyzer) declaredComponents(run *moduleRun, dir string) []types.ComponentNode {
	type descriptorFile struct {
		path     string
		optional bool
		parse    func([]byte) ([]types.ComponentNode, error)
	}

	var files []descriptorFile
	if run.module.Kind == types.WebModule {
		files = []descriptorFile{
			{descriptor.WebPath, false, descriptor.ParseWeb},
			{descriptor.WebEJBJarPath, true, descriptor.ParseEJBJar},
		}
	} else {
		files = []descriptorFile{{descriptor.EJBJarPath, false, descriptor.ParseEJBJar}}
	}

	var components []types.ComponentNode
	names := make(map[string]bool)
	for _, s := range files {
		data, err := descriptor.ReadDescriptor(dir, s.path)
		if err != nil {
			if errors.Is(err, descriptor.ErrMissingDescriptor) {
				if !s.optional {
					run.diag(types.MissingDescriptor, types.DescriptorScope, s.path, err.Error())
				}
				continue
			}
			run.diag(types.MalformedDescriptor, types.DescriptorScope, s.path, err.Error())
			continue
		}

		parsed, err := s.parse(data)
		if err != nil {
			a.logger.Warn("malformed descriptor", "module", run.module.Name, "descriptor", s.path, "error", err)
			run.diag(types.MalformedDescriptor, types.DescriptorScope, s.path, err.Error())
			continue
		}
		for _, c := range parsed {
			if names[c.Name] {
				continue
			}
			names[c.Name] = true
			components = append(components, c)
		}
	}
	return components
}

// vendorBindings records the WebSphere bindings of the module's deployment
// files. Binding files that only scan as text become descriptor diagnostics.
func (a *Analyzer) vendorBindings(run *moduleRun, dir string) {
	bindings, problems, err := descriptor.ScanVendorBindings(dir)
	if err != nil {
		a.logger.Warn("vendor binding scan failed", "module", run.module.Name, "error", err)
		run.diag(types.UnreadableModule, types.ModuleScope, run.module.Name, err.Error())
	}
	for _, p := range problems {
		run.diag(types.MalformedDescriptor, types.DescriptorScope, p.Path, p.Err.Error())
	}
	run.module.Bindings = bindings
	if len(bindings) > 0 {
		a.logger.Debug("vendor bindings found", "module", run.module.Name, "count", len(bindings))
	}
}

// libraryEntries unpacks the bundled jars of a web module into sibling
// scratch directories and returns their class entries, rooted at the jar.
func (a *Analyzer) libraryEntries(run *moduleRun, ws *archive.Workspace, libs []scanner.Entry) []scanner.Entry {
	var entries []scanner.Entry
	for j, lib := range libs {
		dir, err := archive.ExtractNested(lib.FullPath, ws.LibraryDir(run.index, j, lib.Path))
		if err != nil {
			a.logger.Warn("library unreadable", "module", run.module.Name, "library", lib.Path, "error", err)
			run.diag(types.UnreadableModule, types.ModuleScope, lib.Path, err.Error())
			continue
		}
		contents, err := a.scanner.Scan(dir, types.EJBModule)
		if err != nil {
			run.diag(types.UnreadableModule, types.ModuleScope, lib.Path, err.Error())
			continue
		}
		for _, e := range contents.Classes {
			e.Root = lib.Path
			entries = append(entries, e)
		}
	}
	return entries
}

// mergeAnnotated appends annotation-declared components for classes the
// descriptors do not already declare. Descriptors win on conflicts, as they
// do in a container.
func mergeAnnotated(declared, annotated []types.ComponentNode) []types.ComponentNode {
	names := make(map[string]bool, len(declared))
	classes := make(map[string]bool, len(declared))
	for _, c := range declared {
		names[c.Name] = true
		if c.Class != "" && c.Kind != types.BeanReference {
			classes[c.Class] = true
		}
	}
	for _, c := range annotated {
		if names[c.Name] || classes[c.Class] {
			continue
		}
		names[c.Name] = true
		classes[c.Class] = true
		declared = append(declared, c)
	}
	return declared
}

// applySources replaces bytecode-derived bodies with the bodies of shipped
// Java sources for the classes both describe.
func (a *Analyzer) applySources(run *moduleRun, sources []scanner.Entry) {
	if len(sources) == 0 {
		return
	}
	index := make(map[string]int, len(run.module.Classes))
	for i, c := range run.module.Classes {
		index[c.Name] = i
	}

	for _, s := range sources {
		classes, err := source.ExtractFile(s.FullPath)
		if err != nil {
			a.logger.Debug("skipping source", "module", run.module.Name, "source", s.Path, "error", err)
			continue
		}
		for _, sc := range classes {
			i, ok := index[sc.Name]
			if !ok {
				continue
			}
			unit := &run.module.Classes[i]
			bodies := make(map[string]string, len(unit.Bodies)+len(sc.Bodies))
			for name, body := range unit.Bodies {
				bodies[name] = body
			}
			for name, body := range sc.Bodies {
				bodies[name] = body
			}
			unit.Bodies = bodies
			unit.BodySource = "source"
		}
	}
}
