package inspector

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/l3aro/earscope/pkg/classfile"
	"github.com/l3aro/earscope/pkg/types"
)

// Strategy selects how method inventories are extracted.
type Strategy string

const (
	// StrategyAuto parses class files directly and falls back to javap for
	// classes the parser rejects.
	StrategyAuto Strategy = "auto"
	// StrategyClassfile only uses the built-in class file parser.
	StrategyClassfile Strategy = "classfile"
	// StrategyJavap only uses the external disassembler.
	StrategyJavap Strategy = "javap"
)

// Strategies lists the valid strategy names.
var Strategies = []Strategy{StrategyAuto, StrategyClassfile, StrategyJavap}

// ParseStrategy validates a strategy name; empty means auto.
func ParseStrategy(s string) (Strategy, error) {
	if s == "" {
		return StrategyAuto, nil
	}
	for _, known := range Strategies {
		if Strategy(strings.ToLower(s)) == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown inspection strategy %q (want auto, classfile or javap)", s)
}

// ErrInspectionUnavailable is returned when no method extraction strategy can run.
var ErrInspectionUnavailable = errors.New("inspection unavailable")

// Inspection is what a MethodInspector recovers from one class.
type Inspection struct {
	Methods []types.MethodSignature
	// Bodies maps method names to listing text; overloads are concatenated.
	Bodies     map[string]string
	BodySource string
	Super      string
	Interfaces []string
	// Annotations is only filled by strategies that can see them.
	Annotations []classfile.Annotation
}

// MethodInspector is one interchangeable method extraction strategy.
type MethodInspector interface {
	Name() string
	// Available returns ErrInspectionUnavailable (wrapped) when the
	// strategy cannot run in this environment.
	Available() error
	// Inspect examines one compiled unit stored at path with content data.
	Inspect(ctx context.Context, path string, data []byte) (*Inspection, error)
}

// Direct parses the class file's own method table.
type Direct struct{}

func (Direct) Name() string { return string(StrategyClassfile) }

func (Direct) Available() error { return nil }

func (Direct) Inspect(_ context.Context, _ string, data []byte) (*Inspection, error) {
	c, err := classfile.Parse(data)
	if err != nil {
		return nil, err
	}

	in := &Inspection{
		Bodies:      make(map[string]string),
		BodySource:  "bytecode",
		Super:       c.Super,
		Interfaces:  c.Interfaces,
		Annotations: c.Annotations,
	}
	for _, m := range c.Methods {
		if m.Initializer() {
			continue
		}
		// a listing cut short by an unknown opcode still carries useful references
		listing, _ := c.Listing(m)
		if m.Synthetic() {
			// lambdas and bridges are traced, not listed
			appendBody(in.Bodies, m.Name, listing)
			continue
		}

		params, ret, err := classfile.DecodeDescriptor(m.Descriptor)
		if err != nil {
			return nil, err
		}
		in.Methods = append(in.Methods, types.MethodSignature{
			Name:       m.Name,
			Params:     strings.Join(params, ", "),
			ReturnType: ret,
			Access:     m.Visibility(),
		})
		appendBody(in.Bodies, m.Name, listing)
	}
	foldLambdas(in)
	return in, nil
}

// Auto tries each strategy in order and returns the first success.
type Auto struct {
	Inspectors []MethodInspector
}

func (a *Auto) Name() string { return string(StrategyAuto) }

// Available succeeds when at least one strategy is available.
func (a *Auto) Available() error {
	var errs []error
	for _, in := range a.Inspectors {
		err := in.Available()
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return fmt.Errorf("%w: no strategies configured", ErrInspectionUnavailable)
	}
	return errors.Join(errs...)
}

func (a *Auto) Inspect(ctx context.Context, path string, data []byte) (*Inspection, error) {
	var errs []error
	for _, in := range a.Inspectors {
		if in.Available() != nil {
			continue
		}
		res, err := in.Inspect(ctx, path, data)
		if err == nil {
			return res, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", in.Name(), err))
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no strategy available", ErrInspectionUnavailable)
	}
	return nil, errors.Join(errs...)
}

var lambdaMethod = regexp.MustCompile(`^lambda\$(.+)\$\d+$`)

// foldLambdas moves the body of each compiler-generated lambda method into the
// declared method it was written in, so calls made inside a lambda are traced
// from that method. Lambdas whose enclosing method is not declared (field
// initializers, lambda$static$0) keep their own entry.
func foldLambdas(in *Inspection) {
	declared := make(map[string]bool, len(in.Methods))
	for _, m := range in.Methods {
		if !lambdaMethod.MatchString(m.Name) {
			declared[m.Name] = true
		}
	}

	names := make([]string, 0, len(in.Bodies))
	for name := range in.Bodies {
		names = append(names, name)
	}
	sort.Strings(names)

	folded := make(map[string]bool)
	for _, name := range names {
		m := lambdaMethod.FindStringSubmatch(name)
		if m == nil || !declared[m[1]] {
			continue
		}
		appendBody(in.Bodies, m[1], in.Bodies[name])
		delete(in.Bodies, name)
		folded[name] = true
	}
	if len(folded) == 0 {
		return
	}

	methods := in.Methods[:0]
	for _, m := range in.Methods {
		if !folded[m.Name] {
			methods = append(methods, m)
		}
	}
	in.Methods = methods
}

func appendBody(bodies map[string]string, name, text string) {
	if text == "" {
		if _, ok := bodies[name]; !ok {
			bodies[name] = ""
		}
		return
	}
	if prev := bodies[name]; prev != "" {
		bodies[name] = prev + "\n" + text
		return
	}
	bodies[name] = text
}
