// Package render describes the command line of the ray-tracing engine and
// runs it on a scene file.
//
// The engine takes single-dash flags, some with several operands:
//
//	-input <file> -output <file> -size <w> <h> -depth <min> <max> <file>
//	-normals <file> -bounces <n> -shadows -jitter -filter -casting
//	-blurry <focus> [<file>] -pixelated
package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sambeau/scenery/pkg/scene/scene"
)

// DefaultOutput is where the engine writes when no output is given
const DefaultOutput = "output/1.bmp"

// Arguments are the engine's options. Zero values leave the engine default
// in place.
type Arguments struct {
	Input  string `yaml:"input" toml:"input"`
	Output string `yaml:"output" toml:"output"`

	Width  int `yaml:"width" toml:"width"`
	Height int `yaml:"height" toml:"height"`

	DepthFile string  `yaml:"depth_file" toml:"depth_file"`
	DepthMin  float64 `yaml:"depth_min" toml:"depth_min"`
	DepthMax  float64 `yaml:"depth_max" toml:"depth_max"`

	NormalsFile string `yaml:"normals_file" toml:"normals_file"`

	Bounces int  `yaml:"bounces" toml:"bounces"`
	Shadows bool `yaml:"shadows" toml:"shadows"`

	Jitter bool `yaml:"jitter" toml:"jitter"`
	Filter bool `yaml:"filter" toml:"filter"`

	RayCasting bool `yaml:"ray_casting" toml:"ray_casting"`

	Blurry     float64 `yaml:"blurry" toml:"blurry"` // focus distance
	BlurryFile string  `yaml:"blurry_file" toml:"blurry_file"`

	Pixelated bool `yaml:"pixelated" toml:"pixelated"`
}

// Defaults returns the arguments the editor starts from
func Defaults() Arguments {
	return Arguments{
		Output:   DefaultOutput,
		Width:    100,
		Height:   100,
		DepthMax: 1,
		Bounces:  4,
	}
}

// Validate checks the arguments before the engine sees them
func (a Arguments) Validate() error {
	var problems []string
	if a.Input == "" {
		problems = append(problems, "input file is required")
	}
	if a.Output == "" {
		problems = append(problems, "output file is required")
	}
	if a.Width < 0 || a.Height < 0 {
		problems = append(problems, fmt.Sprintf("size must be positive, got %dx%d", a.Width, a.Height))
	}
	if a.Bounces < 0 {
		problems = append(problems, fmt.Sprintf("bounces must not be negative, got %d", a.Bounces))
	}
	if a.DepthFile != "" && a.DepthMin >= a.DepthMax {
		problems = append(problems, fmt.Sprintf("depth range is empty: %g..%g", a.DepthMin, a.DepthMax))
	}
	if a.Blurry < 0 {
		problems = append(problems, fmt.Sprintf("blurry focus distance must not be negative, got %g", a.Blurry))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid render arguments: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Flags returns the engine command line for a. A size with only one
// dimension set fills the other with 100.
func (a Arguments) Flags() []string {
	var res []string
	if a.Input != "" {
		res = append(res, "-input", a.Input)
	}
	if a.Output != "" {
		res = append(res, "-output", a.Output)
	}
	if a.Width != 0 || a.Height != 0 {
		w, h := a.Width, a.Height
		if w == 0 {
			w = 100
		}
		if h == 0 {
			h = 100
		}
		res = append(res, "-size", strconv.Itoa(w), strconv.Itoa(h))
	}
	if a.DepthFile != "" {
		res = append(res, "-depth", formatFloat(a.DepthMin), formatFloat(a.DepthMax), a.DepthFile)
	}
	if a.NormalsFile != "" {
		res = append(res, "-normals", a.NormalsFile)
	}
	if a.Bounces != 0 {
		res = append(res, "-bounces", strconv.Itoa(a.Bounces))
	}
	if a.Shadows {
		res = append(res, "-shadows")
	}
	if a.Jitter {
		res = append(res, "-jitter")
	}
	if a.Filter {
		res = append(res, "-filter")
	}
	if a.RayCasting {
		res = append(res, "-casting")
	}
	if a.Blurry != 0 {
		res = append(res, "-blurry", formatFloat(a.Blurry))
		if a.BlurryFile != "" {
			res = append(res, a.BlurryFile)
		}
	}
	if a.Pixelated {
		res = append(res, "-pixelated")
	}
	return res
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ParseFlags reads an engine command line on top of base. Unknown flags and
// missing or malformed operands are errors.
func ParseFlags(base Arguments, args []string) (Arguments, error) {
	a := base
	for i := 0; i < len(args); i++ {
		flag := args[i]
		operands := func(n int) ([]string, error) {
			if i+n >= len(args) {
				return nil, fmt.Errorf("%s needs %d operand(s)", flag, n)
			}
			ops := args[i+1 : i+1+n]
			i += n
			return ops, nil
		}

		var err error
		switch flag {
		case "-input":
			err = stringOperand(operands, &a.Input)
		case "-output":
			err = stringOperand(operands, &a.Output)
		case "-normals":
			err = stringOperand(operands, &a.NormalsFile)
		case "-size":
			var ops []string
			if ops, err = operands(2); err == nil {
				if a.Width, err = parseInt(flag, ops[0]); err == nil {
					a.Height, err = parseInt(flag, ops[1])
				}
			}
		case "-depth":
			var ops []string
			if ops, err = operands(3); err == nil {
				if a.DepthMin, err = parseFloat(flag, ops[0]); err == nil {
					if a.DepthMax, err = parseFloat(flag, ops[1]); err == nil {
						a.DepthFile = ops[2]
					}
				}
			}
		case "-bounces":
			var ops []string
			if ops, err = operands(1); err == nil {
				a.Bounces, err = parseInt(flag, ops[0])
			}
		case "-blurry":
			var ops []string
			if ops, err = operands(1); err == nil {
				a.Blurry, err = parseFloat(flag, ops[0])
			}
			if err == nil && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
				a.BlurryFile = args[i]
			}
		case "-shadows":
			a.Shadows = true
		case "-jitter":
			a.Jitter = true
		case "-filter":
			a.Filter = true
		case "-casting":
			a.RayCasting = true
		case "-pixelated":
			a.Pixelated = true
		default:
			err = fmt.Errorf("unknown render flag %q", flag)
		}
		if err != nil {
			return base, err
		}
	}
	return a, nil
}

func stringOperand(operands func(int) ([]string, error), dst *string) error {
	ops, err := operands(1)
	if err != nil {
		return err
	}
	*dst = ops[0]
	return nil
}

func parseInt(flag, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", flag, s)
	}
	return n, nil
}

func parseFloat(flag, s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", flag, s)
	}
	return f, nil
}

// CheckError is returned by Check when the input scene does not build.
type CheckError struct {
	File   string
	Result *scene.Result
}

func (e *CheckError) Error() string {
	errs := e.Result.Errors()
	if len(errs) == 0 {
		return e.File + ": scene does not build"
	}
	return errs[0].WithFile(e.File).String()
}

// Check parses the input scene so the engine never sees a broken file.
func Check(a Arguments, opts ...scene.Option) error {
	data, err := os.ReadFile(a.Input)
	if err != nil {
		return fmt.Errorf("reading scene: %w", err)
	}
	if res := scene.Parse(string(data), opts...); !res.OK() {
		return &CheckError{File: a.Input, Result: res}
	}
	return nil
}

// Run validates a, creates the output directories and runs engine with the
// flags of a. The engine's output goes to stdout and stderr.
func Run(ctx context.Context, engine string, a Arguments, stdout, stderr io.Writer) error {
	if err := a.Validate(); err != nil {
		return err
	}
	for _, out := range []string{a.Output, a.DepthFile, a.NormalsFile, a.BlurryFile} {
		if out == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, engine, a.Flags()...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s: %w", engine, err)
	}
	return nil
}
