// Package inspector extracts per-class facts from the compiled units of a
// module: the method inventory, the method body text the flow tracer scans,
// JNDI lookup literals and component-declaring annotations. Method
// extraction is pluggable (direct class file parsing or javap delegation);
// when no strategy can run the module is marked unavailable instead of
// reported as empty.
package inspector

import (
	"context"
	"fmt"
	"os"

	"github.com/l3aro/earscope/internal/log"
	"github.com/l3aro/earscope/internal/scanner"
	"github.com/l3aro/earscope/pkg/classfile"
	"github.com/l3aro/earscope/pkg/types"
)

// Options configures an Inspector.
type Options struct {
	Strategy  Strategy
	JavapPath string
	// Runner and LookPath replace process execution, mainly in tests.
	Runner   Runner
	LookPath func(string) (string, error)
	Logger   log.Logger
}

// Inspector inspects the class units of one module at a time. It holds no
// per-module state and may be shared by concurrent module inspections.
type Inspector struct {
	strategy Strategy
	method   MethodInspector
	javap    *Javap
	logger   log.Logger
}

// New builds an Inspector for the configured strategy.
func New(opts Options) (*Inspector, error) {
	strategy, err := ParseStrategy(string(opts.Strategy))
	if err != nil {
		return nil, err
	}

	javap := &Javap{Path: opts.JavapPath, Runner: opts.Runner, LookPath: opts.LookPath}

	var method MethodInspector
	switch strategy {
	case StrategyClassfile:
		method = Direct{}
	case StrategyJavap:
		method = javap
	default:
		method = &Auto{Inspectors: []MethodInspector{Direct{}, javap}}
	}

	return &Inspector{
		strategy: strategy,
		method:   method,
		javap:    javap,
		logger:   log.OrDefault(opts.Logger),
	}, nil
}

// Strategy returns the configured strategy.
func (i *Inspector) Strategy() Strategy { return i.strategy }

// Available reports whether the configured strategy can run.
func (i *Inspector) Available() error { return i.method.Available() }

// Javap exposes the disassembler strategy, e.g. for health checks.
func (i *Inspector) Javap() *Javap { return i.javap }

// ModuleInspection is the outcome of inspecting one module's class units.
// Diagnostics carry no module name; the caller attaches it.
type ModuleInspection struct {
	Status      types.InspectionStatus
	Strategy    string
	Classes     []types.ClassUnit
	Components  []types.ComponentNode
	Diagnostics []types.Diagnostic
}

// InspectModule inspects every class entry in order. Unreadable entries are
// skipped with a diagnostic; an unavailable strategy yields classes with
// empty method inventories and a single InspectionUnavailable diagnostic.
func (i *Inspector) InspectModule(ctx context.Context, entries []scanner.Entry) *ModuleInspection {
	res := &ModuleInspection{Strategy: i.method.Name()}
	if len(entries) == 0 {
		res.Status = types.StatusEmpty
		return res
	}

	availErr := i.method.Available()
	if availErr != nil {
		res.Status = types.StatusUnavailable
		res.Diagnostics = append(res.Diagnostics, types.Diagnostic{
			Kind:    types.InspectionUnavailable,
			Scope:   types.ModuleScope,
			Message: availErr.Error(),
		})
	}

	skipped := 0
	for _, e := range entries {
		unit, in, err := i.inspectEntry(ctx, e, availErr == nil)
		if err != nil {
			skipped++
			i.logger.Debug("skipping class entry", "entry", e.Path, "error", err)
			res.Diagnostics = append(res.Diagnostics, types.Diagnostic{
				Kind:    types.UnreadableClassEntry,
				Scope:   types.ClassScope,
				Subject: e.Path,
				Message: err.Error(),
			})
			continue
		}
		res.Classes = append(res.Classes, unit)

		if in != nil {
			if c, ok := AnnotatedComponent(unit.Name, in); ok {
				res.Components = append(res.Components, c)
			}
		}
	}

	if res.Status == "" {
		res.Status = types.StatusOK
		if skipped > 0 {
			res.Status = types.StatusPartial
		}
	}
	return res
}

// inspectEntry builds the class unit of one entry. Method extraction is
// skipped when extract is false.
func (i *Inspector) inspectEntry(ctx context.Context, e scanner.Entry, extract bool) (types.ClassUnit, *Inspection, error) {
	unit := types.ClassUnit{
		Name:      classfile.ClassNameFromPath(e.Path),
		Path:      e.Path,
		Container: e.Root,
		Methods:   []types.MethodSignature{},
	}

	data, err := os.ReadFile(e.FullPath)
	if err != nil {
		return unit, nil, fmt.Errorf("reading %s: %w", e.Path, err)
	}
	unit.Jndi = ClassJndi(data)

	if !extract {
		return unit, nil, nil
	}

	in, err := i.method.Inspect(ctx, e.FullPath, data)
	if err != nil {
		return unit, nil, err
	}
	if in.Methods != nil {
		unit.Methods = in.Methods
	}
	unit.Super = in.Super
	unit.Interfaces = in.Interfaces
	unit.Bodies = in.Bodies
	unit.BodySource = in.BodySource
	unit.Annotations = AnnotationNames(in.Annotations)
	return unit, in, nil
}
