package inspector

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/l3aro/earscope/pkg/types"
)

// DefaultJavap is the disassembler looked up on PATH when none is configured.
const DefaultJavap = "javap"

// Runner executes an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Javap delegates to the JDK disassembler ("javap -c -p").
type Javap struct {
	// Path is the executable name or path; DefaultJavap when empty.
	Path   string
	Runner Runner
	// LookPath resolves Path; exec.LookPath when nil.
	LookPath func(string) (string, error)

	once     sync.Once
	resolved string
	err      error
}

// NewJavap returns a javap strategy using the given executable and runner.
func NewJavap(path string, runner Runner) *Javap {
	return &Javap{Path: path, Runner: runner}
}

func (j *Javap) Name() string { return string(StrategyJavap) }

// Available resolves the executable once and caches the outcome.
func (j *Javap) Available() error {
	j.once.Do(func() {
		path := j.Path
		if path == "" {
			path = DefaultJavap
		}
		look := j.LookPath
		if look == nil {
			look = exec.LookPath
		}
		resolved, err := look(path)
		if err != nil {
			j.err = fmt.Errorf("%w: %s not found: %v", ErrInspectionUnavailable, path, err)
			return
		}
		j.resolved = resolved
	})
	return j.err
}

// Resolved returns the executable path found by Available.
func (j *Javap) Resolved() string {
	if j.Available() != nil {
		return ""
	}
	return j.resolved
}

func (j *Javap) Inspect(ctx context.Context, path string, _ []byte) (*Inspection, error) {
	if err := j.Available(); err != nil {
		return nil, err
	}
	runner := j.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	out, err := runner.Run(ctx, j.resolved, "-c", "-p", path)
	if err != nil {
		return nil, err
	}
	return ParseJavap(out), nil
}

// javapDecl matches a method declaration of "javap -c -p" output. Constructors
// print without a return type and therefore never match.
var javapDecl = regexp.MustCompile(`^\s+(public|protected|private)\s+(.*)\s+([a-zA-Z0-9_$<>]+)\((.*)\)(?:\s+throws\s+[^;]+)?;\s*$`)

// javapMember matches any member declaration line, methods and fields alike.
var javapMember = regexp.MustCompile(`^ {2}\S.*;\s*$`)

var javapHeader = regexp.MustCompile(`^(?:.*\s)?(?:class|interface|enum)\s+(\S+)(?:\s+extends\s+([^{]+?))?(?:\s+implements\s+([^{]+?))?\s*\{\s*$`)

// ParseJavap extracts the public, protected and private methods of a javap
// listing together with the instruction text that follows each declaration.
func ParseJavap(out []byte) *Inspection {
	in := &Inspection{Bodies: make(map[string]string), BodySource: "javap"}

	current := ""
	var body []string
	flush := func() {
		if current != "" {
			appendBody(in.Bodies, current, strings.Join(body, "\n"))
		}
		current, body = "", nil
	}

	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()

		if m := javapHeader.FindStringSubmatch(line); m != nil && !strings.HasPrefix(line, " ") {
			flush()
			extends := m[2]
			if isInterfaceHeader(line) {
				// an interface "extends" its super-interfaces
				m[3], extends = m[2], ""
			}
			in.Super = strings.TrimSpace(extends)
			for _, iface := range strings.Split(m[3], ",") {
				if iface = strings.TrimSpace(iface); iface != "" {
					in.Interfaces = append(in.Interfaces, iface)
				}
			}
			continue
		}

		if m := javapDecl.FindStringSubmatch(line); m != nil {
			flush()
			name := m[3]
			if name == "<init>" || name == "<clinit>" {
				continue
			}
			in.Methods = append(in.Methods, types.MethodSignature{
				Name:       name,
				Params:     strings.TrimSpace(m[4]),
				ReturnType: returnType(m[2]),
				Access:     m[1],
			})
			current = name
			continue
		}

		if javapMember.MatchString(line) || strings.TrimSpace(line) == "}" {
			flush()
			continue
		}

		if current != "" {
			if trimmed := strings.TrimSpace(line); trimmed != "" && trimmed != "Code:" {
				body = append(body, trimmed)
			}
		}
	}
	flush()
	foldLambdas(in)
	return in
}

func isInterfaceHeader(line string) bool {
	return strings.HasPrefix(line, "interface ") || strings.Contains(line, " interface ")
}

// returnType keeps the last token of the modifier and type prefix.
func returnType(prefix string) string {
	fields := strings.Fields(prefix)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
