// Package report runs the whole analysis pipeline over one archive and
// assembles its single Result: extraction, descriptor parsing, per-module
// class inspection and flow tracing, in that order. Only a corrupt outer
// archive fails a run; every other problem becomes a diagnostic attached to
// the smallest scope it affects.
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/earscope/internal/log"
	"github.com/l3aro/earscope/internal/scanner"
	"github.com/l3aro/earscope/pkg/archive"
	"github.com/l3aro/earscope/pkg/cache"
	"github.com/l3aro/earscope/pkg/callgraph"
	"github.com/l3aro/earscope/pkg/descriptor"
	"github.com/l3aro/earscope/pkg/inspector"
	"github.com/l3aro/earscope/pkg/types"
)

// DefaultConcurrency bounds concurrent module inspections when unset.
const DefaultConcurrency = 4

// Options configures an Analyzer.
type Options struct {
	Strategy  inspector.Strategy
	JavapPath string
	// Runner and LookPath replace javap process execution, mainly in tests.
	Runner   inspector.Runner
	LookPath func(string) (string, error)

	// ScratchDir is the parent of each run's workspace; empty means the OS temp dir.
	ScratchDir  string
	KeepScratch bool

	Concurrency      int
	IncludeLibraries bool
	// Excludes are gitignore-style patterns for class paths to skip.
	Excludes []string

	// Cache, when set, short-circuits re-analysis of an unchanged archive.
	Cache  *cache.ResultStore
	Logger log.Logger
	Now    func() time.Time
}

// Analyzer runs analyses. Each Analyze call owns its own workspace, so one
// Analyzer may serve concurrent runs.
type Analyzer struct {
	opts      Options
	inspector *inspector.Inspector
	scanner   *scanner.Scanner
	logger    log.Logger
}

// New creates an Analyzer.
func New(opts Options) (*Analyzer, error) {
	logger := log.OrDefault(opts.Logger)
	insp, err := inspector.New(inspector.Options{
		Strategy:  opts.Strategy,
		JavapPath: opts.JavapPath,
		Runner:    opts.Runner,
		LookPath:  opts.LookPath,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	scanOpts := scanner.DefaultOptions()
	scanOpts.Excludes = opts.Excludes

	return &Analyzer{
		opts:      opts,
		inspector: insp,
		scanner:   scanner.New(scanOpts),
		logger:    logger,
	}, nil
}

// Inspector exposes the configured class inspector.
func (a *Analyzer) Inspector() *inspector.Inspector {
	return a.inspector
}

// Analyze runs the pipeline over the archive (or exploded archive directory)
// at path. The returned error is non-nil only when the archive itself cannot
// be opened, in which case it wraps archive.ErrCorruptArchive, or when ctx
// is cancelled.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*types.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", archive.ErrCorruptArchive, err)
	}

	var digest, key string
	if !info.IsDir() {
		digest, err = cache.Digest(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", archive.ErrCorruptArchive, err)
		}
		if a.opts.Cache != nil {
			key = cache.Key(digest, cache.KeyOptions{
				Strategy:         string(a.inspector.Strategy()),
				IncludeLibraries: a.opts.IncludeLibraries,
				Excludes:         a.opts.Excludes,
			})
			if r, ok := a.opts.Cache.Get(key); ok {
				a.logger.Info("using cached result", "archive", path, "digest", digest[:12])
				// the same bytes may have been analyzed under another name
				r.Archive.Path = path
				return r, nil
			}
		}
	}

	ws, err := archive.NewWorkspace(a.opts.ScratchDir)
	if err != nil {
		return nil, err
	}
	if a.opts.KeepScratch {
		a.logger.Info("keeping scratch directory", "dir", ws.Root())
	} else {
		defer func() {
			if err := ws.Cleanup(); err != nil {
				a.logger.Warn("failed to remove scratch directory", "dir", ws.Root(), "error", err)
			}
		}()
	}

	root, err := archive.ExtractNested(path, ws.ArchiveDir())
	if err != nil {
		if errors.Is(err, archive.ErrCorruptArchive) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", archive.ErrCorruptArchive, err)
	}
	a.logger.Debug("archive extracted", "archive", path, "root", root)

	result := &types.Result{
		Archive: types.Archive{
			Path:    path,
			Kind:    archiveKind(path),
			Modules: []types.Module{},
		},
		Edges:  []types.Edge{},
		Paths:  []types.FlowPath{},
		Digest: digest,
	}

	refs := a.declaredModules(root, result)
	modules, err := a.inspectModules(ctx, ws, root, refs)
	if err != nil {
		return nil, err
	}
	result.Archive.Modules = modules

	a.trace(result)

	sortDiagnostics(result.Diagnostics)
	for i := range result.Archive.Modules {
		sortDiagnostics(result.Archive.Modules[i].Diagnostics)
	}
	result.AnalyzedAt = a.opts.Now()
	result.ComputeStats()

	a.logger.Info("analysis complete",
		"archive", path,
		"modules", result.Stats.Modules,
		"components", result.Stats.Components,
		"classes", result.Stats.Classes,
		"edges", result.Stats.Edges,
		"diagnostics", result.Stats.Diagnostics,
	)

	if key != "" && cacheable(result) {
		if err := a.opts.Cache.Put(key, result); err != nil {
			a.logger.Warn("failed to cache result", "error", err)
		}
	}
	return result, nil
}

// declaredModules reads application.xml. Absence and malformation are both
// recorded on the result and yield no modules.
func (a *Analyzer) declaredModules(root string, result *types.Result) []descriptor.ModuleRef {
	data, err := descriptor.ReadDescriptor(root, descriptor.ApplicationPath)
	if err != nil {
		kind := types.MissingDescriptor
		if !errors.Is(err, descriptor.ErrMissingDescriptor) {
			kind = types.MalformedDescriptor
		}
		a.logger.Warn("no application descriptor", "error", err)
		result.Diagnostics = append(result.Diagnostics, types.Diagnostic{
			Kind:    kind,
			Scope:   types.ArchiveScope,
			Subject: descriptor.ApplicationPath,
			Message: err.Error(),
		})
		return nil
	}
	result.Archive.DescriptorFound = true

	refs, err := descriptor.ParseApplication(data)
	if err != nil {
		a.logger.Warn("malformed application descriptor", "error", err)
		result.Diagnostics = append(result.Diagnostics, types.Diagnostic{
			Kind:    types.MalformedDescriptor,
			Scope:   types.DescriptorScope,
			Subject: descriptor.ApplicationPath,
			Message: err.Error(),
		})
		return nil
	}

	seen := make(map[string]bool, len(refs))
	unique := refs[:0:0]
	for _, ref := range refs {
		if seen[ref.URI] {
			result.Diagnostics = append(result.Diagnostics, types.Diagnostic{
				Kind:    types.DuplicateModule,
				Scope:   types.ArchiveScope,
				Module:  ref.URI,
				Subject: ref.URI,
				Message: "module declared more than once; later declaration ignored",
			})
			continue
		}
		seen[ref.URI] = true
		unique = append(unique, ref)
	}
	return unique
}

// inspectModules analyzes the declared modules concurrently. Results are
// stored by declaration index so the output order never depends on scheduling.
func (a *Analyzer) inspectModules(ctx context.Context, ws *archive.Workspace, root string, refs []descriptor.ModuleRef) ([]types.Module, error) {
	modules := make([]types.Module, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			modules[i] = a.analyzeModule(gctx, ws, root, i, ref)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return modules, nil
}

// trace runs the flow tracer over every module and records components it
// could not resolve on their modules.
func (a *Analyzer) trace(result *types.Result) {
	graph := callgraph.Trace(result.Archive.Modules...)
	result.Edges = append(result.Edges, graph.Edges...)
	result.Paths = append(result.Paths, graph.Paths()...)

	for _, u := range graph.Unresolved {
		m, ok := result.Module(u.Module)
		if !ok {
			continue
		}
		subject := u.Component
		msg := string(u.Reason)
		if u.Class != "" {
			msg = fmt.Sprintf("%s: %s", u.Reason, u.Class)
		}
		m.Diagnostics = append(m.Diagnostics, types.Diagnostic{
			Kind:    types.UnresolvedComponent,
			Scope:   types.ComponentScope,
			Module:  u.Module,
			Subject: subject,
			Message: msg,
		})
	}
	a.logger.Debug("flow trace complete", "expanded", len(graph.Expanded), "edges", len(graph.Edges))
}

func archiveKind(path string) types.ArchiveKind {
	if strings.EqualFold(filepath.Ext(path), ".ear") {
		return types.EnterpriseArchive
	}
	return types.ContainerArchive
}

// cacheable rejects results whose gaps depend on the environment (a missing
// disassembler) rather than on the archive.
func cacheable(r *types.Result) bool {
	for _, m := range r.Archive.Modules {
		if m.Inspection == types.StatusUnavailable {
			return false
		}
	}
	return true
}

func sortDiagnostics(ds []types.Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].Module != ds[j].Module {
			return ds[i].Module < ds[j].Module
		}
		if ds[i].Kind != ds[j].Kind {
			return ds[i].Kind < ds[j].Kind
		}
		return ds[i].Subject < ds[j].Subject
	})
}
