// Package shader compiles WGSL to SPIR-V and caches the results.
package shader

import (
	"encoding/binary"
	"fmt"
	"regexp"
	"strings"

	"github.com/gogpu/naga"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

// Stage attributes for each target profile prefix.
var profileStages = map[string]string{
	"vs": "vertex",
	"ps": "fragment",
	"fs": "fragment",
	"cs": "compute",
}

var entryPointRe = regexp.MustCompile(`@(vertex|fragment|compute)\b[^{;]*?\bfn\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// Compiler turns WGSL into SPIR-V with naga.
type Compiler struct {
	opts    naga.CompileOptions
	compile func(source string, opts naga.CompileOptions) ([]byte, error)
}

func NewCompiler(debug bool) *Compiler {
	opts := naga.DefaultOptions()
	opts.Debug = debug
	return &Compiler{opts: opts, compile: naga.CompileWithOptions}
}

// Compile checks that source declares entryPoint for the stage of profile
// (vs_*, ps_*, cs_*) and compiles the whole module. Compiler diagnostics
// are returned untouched in a *core.ShaderCompileError.
func (c *Compiler) Compile(source, entryPoint, profile string) (gpu.Bytecode, error) {
	stage, ok := profileStages[strings.SplitN(profile, "_", 2)[0]]
	if !ok {
		return nil, &core.ShaderCompileError{Message: fmt.Sprintf("unknown target profile %q", profile)}
	}
	if !hasEntryPoint(source, stage, entryPoint) {
		return nil, &core.ShaderCompileError{Message: fmt.Sprintf("entry point @%s fn %s not found", stage, entryPoint)}
	}

	code, err := c.compile(source, c.opts)
	if err != nil {
		return nil, &core.ShaderCompileError{Message: err.Error()}
	}
	if err := checkSPIRV(code); err != nil {
		return nil, &core.ShaderCompileError{Message: err.Error()}
	}
	return gpu.Bytecode(code), nil
}

func hasEntryPoint(source, stage, entryPoint string) bool {
	for _, m := range entryPointRe.FindAllStringSubmatch(source, -1) {
		if m[1] == stage && m[2] == entryPoint {
			return true
		}
	}
	return false
}

func checkSPIRV(code []byte) error {
	if len(code) < 4 || len(code)%4 != 0 {
		return fmt.Errorf("invalid SPIR-V size %d", len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != SPIRVMagic {
		return fmt.Errorf("invalid SPIR-V magic %#08x", magic)
	}
	return nil
}

// Words reinterprets SPIR-V bytecode as little endian words.
func Words(code gpu.Bytecode) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words
}
