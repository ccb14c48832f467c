// Package shader compiles WGSL shader source files to SPIR-V and
// reflects their entry points. It wraps the naga compiler pipeline
// (parse, lower, validate, generate) behind a small loader API keyed
// by file path, which is the unit the watch session works in.
package shader

import (
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
	"github.com/spf13/afero"

	"github.com/conneroisu/shaderwatch/internal/errors"
)

// CompiledShaders holds the SPIR-V output of one load, one stage per
// slot. The lowered IR modules are retained so entry-point reflection
// does not recompile.
type CompiledShaders struct {
	Vertex   []byte
	Fragment []byte
	Compute  []byte

	vertexIR   *ir.Module
	fragmentIR *ir.Module
	computeIR  *ir.Module
}

// EntryPoint describes one reflected shader entry point.
type EntryPoint struct {
	Name      string
	Stage     ir.ShaderStage
	Workgroup [3]uint32 // compute only
}

// Entry is the reflected entry-point metadata of a compiled bundle.
// Parse fills Vertex and Fragment; ParseCompute fills Compute.
type Entry struct {
	Vertex   EntryPoint
	Fragment EntryPoint
	Compute  EntryPoint
}

// Options configures a Compiler.
type Options struct {
	// SPIRVVersion is the target SPIR-V version (default 1.3).
	SPIRVVersion spirv.Version

	// Debug enables debug info in the SPIR-V output.
	Debug bool

	// Validate runs IR validation before code generation. Off by
	// default: the reference compiler's own suite compiles without it,
	// and a hot-reload loop should not be stricter than the compiler.
	Validate bool

	// Fs is the filesystem sources are read from (default OS).
	Fs afero.Fs
}

// DefaultOptions returns the default compiler options.
func DefaultOptions() Options {
	return Options{
		SPIRVVersion: spirv.Version1_3,
		Fs:           afero.NewOsFs(),
	}
}

// Compiler loads WGSL files and compiles them to SPIR-V.
type Compiler struct {
	fs   afero.Fs
	opts Options
}

// NewCompiler creates a Compiler with the given options.
func NewCompiler(opts Options) *Compiler {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.SPIRVVersion == (spirv.Version{}) {
		opts.SPIRVVersion = spirv.Version1_3
	}

	return &Compiler{fs: opts.Fs, opts: opts}
}

// Load compiles a vertex+fragment shader pair from disk.
func (c *Compiler) Load(vertexPath, fragmentPath string) (*CompiledShaders, error) {
	vertSPIRV, vertIR, err := c.compileFile(vertexPath)
	if err != nil {
		return nil, err
	}

	fragSPIRV, fragIR, err := c.compileFile(fragmentPath)
	if err != nil {
		return nil, err
	}

	return &CompiledShaders{
		Vertex:     vertSPIRV,
		Fragment:   fragSPIRV,
		vertexIR:   vertIR,
		fragmentIR: fragIR,
	}, nil
}

// LoadCompute compiles a single compute shader from disk.
func (c *Compiler) LoadCompute(computePath string) (*CompiledShaders, error) {
	spirvBytes, module, err := c.compileFile(computePath)
	if err != nil {
		return nil, err
	}

	return &CompiledShaders{
		Compute:   spirvBytes,
		computeIR: module,
	}, nil
}

// Parse reflects the vertex and fragment entry points of a graphics
// bundle. It fails if either stage has no entry point.
func (c *Compiler) Parse(shaders *CompiledShaders) (Entry, error) {
	vertex, err := findEntry(shaders.vertexIR, ir.StageVertex)
	if err != nil {
		return Entry{}, err
	}

	fragment, err := findEntry(shaders.fragmentIR, ir.StageFragment)
	if err != nil {
		return Entry{}, err
	}

	return Entry{Vertex: vertex, Fragment: fragment}, nil
}

// ParseCompute reflects the compute entry point of a compute bundle.
func (c *Compiler) ParseCompute(shaders *CompiledShaders) (Entry, error) {
	compute, err := findEntry(shaders.computeIR, ir.StageCompute)
	if err != nil {
		return Entry{}, err
	}

	return Entry{Compute: compute}, nil
}

// compileFile runs the full naga pipeline on one source file.
func (c *Compiler) compileFile(path string) ([]byte, *ir.Module, error) {
	source, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return nil, nil, errors.NewIOError("SHADER_READ", "reading shader source").
			WithPath(path).
			WithCause(err)
	}

	ast, err := naga.Parse(string(source))
	if err != nil {
		return nil, nil, errors.NewCompileError("WGSL_PARSE", "parsing WGSL source").
			WithPath(path).
			WithCause(err)
	}

	module, err := naga.LowerWithSource(ast, string(source))
	if err != nil {
		return nil, nil, errors.NewCompileError("WGSL_LOWER", "lowering WGSL to IR").
			WithPath(path).
			WithCause(err)
	}

	if c.opts.Validate {
		validationErrors, err := naga.Validate(module)
		if err != nil {
			return nil, nil, errors.NewCompileError("IR_VALIDATE", "validating IR").
				WithPath(path).
				WithCause(err)
		}
		if len(validationErrors) > 0 {
			return nil, nil, errors.NewCompileError("IR_VALIDATE", "IR validation failed").
				WithPath(path).
				WithCause(&validationErrors[0]).
				WithContext("error_count", len(validationErrors))
		}
	}

	spirvBytes, err := naga.GenerateSPIRV(module, spirv.Options{
		Version: c.opts.SPIRVVersion,
		Debug:   c.opts.Debug,
	})
	if err != nil {
		return nil, nil, errors.NewCompileError("SPIRV_GEN", "generating SPIR-V").
			WithPath(path).
			WithCause(err)
	}

	return spirvBytes, module, nil
}

func findEntry(module *ir.Module, stage ir.ShaderStage) (EntryPoint, error) {
	if module == nil {
		return EntryPoint{}, errors.NewReflectError("ENTRY_MISSING", "no IR module for stage").
			WithContext("stage", stageName(stage))
	}

	for _, ep := range module.EntryPoints {
		if ep.Stage == stage {
			return EntryPoint{
				Name:      ep.Name,
				Stage:     ep.Stage,
				Workgroup: ep.Workgroup,
			}, nil
		}
	}

	return EntryPoint{}, errors.NewReflectError("ENTRY_MISSING", "shader has no entry point for stage").
		WithContext("stage", stageName(stage)).
		WithContext("entry_points", len(module.EntryPoints))
}

func stageName(stage ir.ShaderStage) string {
	switch stage {
	case ir.StageVertex:
		return "vertex"
	case ir.StageFragment:
		return "fragment"
	case ir.StageCompute:
		return "compute"
	default:
		return "unknown"
	}
}
