package gpu

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
)

type ShaderVisibility uint8

const (
	VisibilityAll ShaderVisibility = iota
	VisibilityVertex
	VisibilityPixel
	VisibilityCompute
)

type RootParameterType uint8

const (
	ParamDescriptorTable RootParameterType = iota
	ParamConstants
	ParamConstantBufferView
)

type DescriptorRangeType uint8

const (
	RangeSRV DescriptorRangeType = iota
	RangeUAV
	RangeCBV
	RangeSampler
)

// Unbounded marks a descriptor range whose size is only known at draw time.
const Unbounded = ^uint32(0)

// MaxRootDWords is the size limit of a root signature. Constants cost one
// DWORD each, tables one and root descriptors two.
const MaxRootDWords = 32

type DescriptorRange struct {
	Type         DescriptorRangeType
	Count        uint32
	BaseRegister uint32
	Space        uint32
	// Offset is the slot of the range relative to the table base.
	Offset uint32
}

type RootParameter struct {
	Type       RootParameterType
	Visibility ShaderVisibility
	Ranges     []DescriptorRange
	// Register and Space locate constants and root descriptors.
	Register       uint32
	Space          uint32
	Num32BitValues uint32
}

type StaticSampler struct {
	Sampler    SamplerDesc
	Register   uint32
	Space      uint32
	Visibility ShaderVisibility
}

type RootSignatureFlags uint32

const (
	RootSignatureAllowInputLayout RootSignatureFlags = 1 << 0
)

type RootSignatureDesc struct {
	Parameters     []RootParameter
	StaticSamplers []StaticSampler
	Flags          RootSignatureFlags
}

func TableParam(vis ShaderVisibility, ranges ...DescriptorRange) RootParameter {
	return RootParameter{Type: ParamDescriptorTable, Visibility: vis, Ranges: ranges}
}

func ConstantsParam(vis ShaderVisibility, register, num uint32) RootParameter {
	return RootParameter{Type: ParamConstants, Visibility: vis, Register: register, Num32BitValues: num}
}

func CBVParam(vis ShaderVisibility, register uint32) RootParameter {
	return RootParameter{Type: ParamConstantBufferView, Visibility: vis, Register: register}
}

const (
	signatureMagic   uint32 = 0x3153524c // "LRS1"
	signatureVersion uint16 = 1
)

// SerializeRootSignature validates desc and encodes it. Failures are
// *core.RootSignatureError and nothing is created on the device.
func SerializeRootSignature(desc RootSignatureDesc) ([]byte, error) {
	if err := validateRootSignature(desc); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := func(v interface{}) {
		// bytes.Buffer writes never fail.
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	w(signatureMagic)
	w(signatureVersion)
	w(uint32(desc.Flags))
	w(uint16(len(desc.Parameters)))
	for _, p := range desc.Parameters {
		w(uint8(p.Type))
		w(uint8(p.Visibility))
		switch p.Type {
		case ParamDescriptorTable:
			w(uint16(len(p.Ranges)))
			for _, r := range p.Ranges {
				w(uint8(r.Type))
				w(r.Count)
				w(r.BaseRegister)
				w(r.Space)
				w(r.Offset)
			}
		case ParamConstants:
			w(p.Register)
			w(p.Space)
			w(p.Num32BitValues)
		case ParamConstantBufferView:
			w(p.Register)
			w(p.Space)
		}
	}
	w(uint16(len(desc.StaticSamplers)))
	for _, s := range desc.StaticSamplers {
		w(uint8(s.Sampler.Filter))
		w(uint8(s.Sampler.Address))
		w(uint8(s.Sampler.Border))
		w(uint8(s.Visibility))
		w(s.Register)
		w(s.Space)
	}
	return buf.Bytes(), nil
}

// DeserializeRootSignature decodes a blob produced by
// SerializeRootSignature.
func DeserializeRootSignature(blob []byte) (RootSignatureDesc, error) {
	var desc RootSignatureDesc
	r := bytes.NewReader(blob)
	var err error
	read := func(v interface{}) {
		if err == nil {
			err = binary.Read(r, binary.LittleEndian, v)
		}
	}

	var magic uint32
	var version uint16
	read(&magic)
	read(&version)
	if err != nil {
		return desc, &core.RootSignatureError{Message: "truncated header"}
	}
	if magic != signatureMagic || version != signatureVersion {
		return desc, &core.RootSignatureError{Message: fmt.Sprintf("unsupported blob (magic %#x, version %d)", magic, version)}
	}

	var flags uint32
	var numParams uint16
	read(&flags)
	read(&numParams)
	desc.Flags = RootSignatureFlags(flags)
	for i := 0; i < int(numParams) && err == nil; i++ {
		var typ, vis uint8
		read(&typ)
		read(&vis)
		p := RootParameter{Type: RootParameterType(typ), Visibility: ShaderVisibility(vis)}
		switch p.Type {
		case ParamDescriptorTable:
			var n uint16
			read(&n)
			for j := 0; j < int(n) && err == nil; j++ {
				var rt uint8
				var dr DescriptorRange
				read(&rt)
				read(&dr.Count)
				read(&dr.BaseRegister)
				read(&dr.Space)
				read(&dr.Offset)
				dr.Type = DescriptorRangeType(rt)
				p.Ranges = append(p.Ranges, dr)
			}
		case ParamConstants:
			read(&p.Register)
			read(&p.Space)
			read(&p.Num32BitValues)
		case ParamConstantBufferView:
			read(&p.Register)
			read(&p.Space)
		default:
			return desc, &core.RootSignatureError{Message: fmt.Sprintf("parameter %d: unknown type %d", i, typ)}
		}
		desc.Parameters = append(desc.Parameters, p)
	}

	var numSamplers uint16
	read(&numSamplers)
	for i := 0; i < int(numSamplers) && err == nil; i++ {
		var filter, address, border, vis uint8
		var s StaticSampler
		read(&filter)
		read(&address)
		read(&border)
		read(&vis)
		read(&s.Register)
		read(&s.Space)
		s.Sampler = SamplerDesc{Filter: Filter(filter), Address: AddressMode(address), Border: BorderColor(border)}
		s.Visibility = ShaderVisibility(vis)
		desc.StaticSamplers = append(desc.StaticSamplers, s)
	}
	if err != nil {
		return desc, &core.RootSignatureError{Message: "truncated blob: " + err.Error()}
	}
	return desc, nil
}

func validateRootSignature(desc RootSignatureDesc) error {
	fail := func(format string, args ...interface{}) error {
		return &core.RootSignatureError{Message: fmt.Sprintf(format, args...)}
	}

	dwords := uint32(0)
	for i, p := range desc.Parameters {
		switch p.Type {
		case ParamDescriptorTable:
			dwords++
			if len(p.Ranges) == 0 {
				return fail("parameter %d: descriptor table has no ranges", i)
			}
			samplers := 0
			for j, r := range p.Ranges {
				if r.Count == 0 {
					return fail("parameter %d range %d: empty range", i, j)
				}
				if r.Count == Unbounded && j != len(p.Ranges)-1 {
					return fail("parameter %d range %d: only the last range of a table can be unbounded", i, j)
				}
				if r.Type == RangeSampler {
					samplers++
				}
			}
			if samplers != 0 && samplers != len(p.Ranges) {
				return fail("parameter %d: sampler ranges cannot share a table with other ranges", i)
			}
		case ParamConstants:
			if p.Num32BitValues == 0 {
				return fail("parameter %d: root constants need at least one value", i)
			}
			dwords += p.Num32BitValues
		case ParamConstantBufferView:
			dwords += 2
		default:
			return fail("parameter %d: unknown type %d", i, p.Type)
		}
	}
	if dwords > MaxRootDWords {
		return fail("root signature takes %d DWORDs, limit is %d", dwords, MaxRootDWords)
	}
	for i, s := range desc.StaticSamplers {
		if s.Sampler.Address > AddressBorder || s.Sampler.Filter > FilterLinear {
			return fail("static sampler %d: invalid state", i)
		}
	}
	return nil
}

// ParamSlot is where a root parameter lives in the backend binding model.
// Tables and constants are packed into the push constant block, root
// constant buffer views get their own descriptor set.
type ParamSlot struct {
	Type       RootParameterType
	PushOffset uint32
	PushWords  uint32
	Set        uint32
}

// RootLayout is the resolved binding model of a root signature.
type RootLayout struct {
	Params    []ParamSlot
	PushWords uint32
	// CBVSets is the number of descriptor sets used by root constant
	// buffer views. They follow the heap and static sampler sets.
	CBVSets uint32
}

// Descriptor sets every pipeline layout starts with.
const (
	SetResourceHeap uint32 = iota
	SetSamplerHeap
	SetStaticSamplers
	SetFirstRootCBV
)

// ResolveLayout assigns push constant words and descriptor sets to the
// parameters of desc, in parameter order.
func ResolveLayout(desc RootSignatureDesc) RootLayout {
	var l RootLayout
	for _, p := range desc.Parameters {
		slot := ParamSlot{Type: p.Type}
		switch p.Type {
		case ParamDescriptorTable:
			slot.PushOffset = l.PushWords
			slot.PushWords = 1
		case ParamConstants:
			slot.PushOffset = l.PushWords
			slot.PushWords = p.Num32BitValues
		case ParamConstantBufferView:
			slot.Set = SetFirstRootCBV + l.CBVSets
			l.CBVSets++
		}
		l.PushWords += slot.PushWords
		l.Params = append(l.Params, slot)
	}
	return l
}
