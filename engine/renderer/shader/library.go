package shader

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

//go:embed wgsl/*.wgsl
var builtin embed.FS

// Prelude is prepended to every builtin shader.
const Prelude = "common.wgsl"

// Builtin returns the shaders shipped with the engine.
func Builtin() fs.FS {
	sub, err := fs.Sub(builtin, "wgsl")
	if err != nil {
		panic(err)
	}
	return sub
}

// Key identifies one compiled entry point.
type Key struct {
	Name       string
	Path       string
	EntryPoint string
	Profile    string
}

func (k Key) String() string {
	return fmt.Sprintf("%s (%s:%s %s)", k.Name, k.Path, k.EntryPoint, k.Profile)
}

// Library resolves keys to bytecode, compiling each key once.
type Library struct {
	fsys     fs.FS
	compiler gpu.ShaderCompiler
	prelude  []string
	cache    map[Key]gpu.Bytecode
}

// NewLibrary reads sources from fsys. The prelude files are concatenated in
// front of every source.
func NewLibrary(fsys fs.FS, compiler gpu.ShaderCompiler, prelude ...string) *Library {
	return &Library{
		fsys:     fsys,
		compiler: compiler,
		prelude:  prelude,
		cache:    map[Key]gpu.Bytecode{},
	}
}

// NewBuiltinLibrary serves the embedded shaders.
func NewBuiltinLibrary(compiler gpu.ShaderCompiler) *Library {
	return NewLibrary(Builtin(), compiler, Prelude)
}

// Source returns the full text compiled for path.
func (l *Library) Source(path string) (string, error) {
	var sb strings.Builder
	for _, p := range append(append([]string(nil), l.prelude...), path) {
		data, err := fs.ReadFile(l.fsys, p)
		if err != nil {
			return "", err
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// Resolve returns the bytecode of key. Compile failures are
// *core.ShaderCompileError named after key.Name.
func (l *Library) Resolve(key Key) (gpu.Bytecode, error) {
	if code, ok := l.cache[key]; ok {
		return code, nil
	}
	src, err := l.Source(key.Path)
	if err != nil {
		return nil, &core.ShaderCompileError{Name: key.Name, Message: err.Error()}
	}
	code, err := l.compiler.Compile(src, key.EntryPoint, key.Profile)
	if err != nil {
		var sce *core.ShaderCompileError
		if errors.As(err, &sce) {
			return nil, &core.ShaderCompileError{Name: key.Name, Message: sce.Message}
		}
		return nil, &core.ShaderCompileError{Name: key.Name, Message: err.Error()}
	}
	core.LogDebug("compiled shader %s (%d bytes)", key, len(code))
	l.cache[key] = code
	return code, nil
}

// Invalidate drops every cached result.
func (l *Library) Invalidate() {
	l.cache = map[Key]gpu.Bytecode{}
}

// Check compiles every key and returns one error per failing key.
func (l *Library) Check(keys []Key) []error {
	var errs []error
	for _, k := range keys {
		if _, err := l.Resolve(k); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
