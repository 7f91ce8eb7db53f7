package vulkan

import (
	"errors"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// rootSignature is a pipeline layout. Set 2 holds the static samplers as
// immutable samplers bound at their register.
type rootSignature struct {
	dev    *Device
	desc   gpu.RootSignatureDesc
	layout gpu.RootLayout

	pipelineLayout vk.PipelineLayout
	staticLayout   vk.DescriptorSetLayout
	staticPool     vk.DescriptorPool
	staticSet      vk.DescriptorSet
	samplers       []vk.Sampler
}

var _ gpu.RootSignature = (*rootSignature)(nil)

func (s *rootSignature) Desc() gpu.RootSignatureDesc { return s.desc }

func (s *rootSignature) Release() {
	d := s.dev.handle
	if s.pipelineLayout != nil {
		vk.DestroyPipelineLayout(d, s.pipelineLayout, nil)
		s.pipelineLayout = nil
	}
	if s.staticPool != nil {
		vk.DestroyDescriptorPool(d, s.staticPool, nil)
		s.staticPool = nil
	}
	if s.staticLayout != nil {
		vk.DestroyDescriptorSetLayout(d, s.staticLayout, nil)
		s.staticLayout = nil
	}
	for _, smp := range s.samplers {
		vk.DestroySampler(d, smp, nil)
	}
	s.samplers = nil
}

func asSignature(s gpu.RootSignature) (*rootSignature, error) {
	sig, ok := s.(*rootSignature)
	if !ok || sig == nil {
		return nil, errors.New("root signature was not created by this device")
	}
	return sig, nil
}

// CreateRootSignature needs both descriptor heaps to exist, their set
// layouts start every pipeline layout.
func (d *Device) CreateRootSignature(blob []byte) (gpu.RootSignature, error) {
	desc, err := gpu.DeserializeRootSignature(blob)
	if err != nil {
		return nil, err
	}
	if d.heapLayouts[gpu.HeapKindResourceView] == nil || d.heapLayouts[gpu.HeapKindSampler] == nil {
		return nil, core.NewResourceCreationError("root signature", errors.New("descriptor heaps must be created first"))
	}
	s := &rootSignature{dev: d, desc: desc, layout: gpu.ResolveLayout(desc)}
	if err := s.createStaticSamplers(); err != nil {
		s.Release()
		return nil, core.NewResourceCreationError("root signature static samplers", err)
	}

	setLayouts := []vk.DescriptorSetLayout{
		d.heapLayouts[gpu.HeapKindResourceView],
		d.heapLayouts[gpu.HeapKindSampler],
		s.staticLayout,
	}
	for i := uint32(0); i < s.layout.CBVSets; i++ {
		setLayouts = append(setLayouts, d.cbvLayout)
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	if s.layout.PushWords > 0 {
		info.PushConstantRangeCount = 1
		info.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageAll),
			Size:       s.layout.PushWords * 4,
		}}
	}
	res := vk.CreatePipelineLayout(d.handle, &info, nil, &s.pipelineLayout)
	if err := creation("root signature", "vkCreatePipelineLayout", res); err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}

func (s *rootSignature) createStaticSamplers() error {
	d := s.dev
	bindings := make([]vk.DescriptorSetLayoutBinding, 0, len(s.desc.StaticSamplers))
	for _, ss := range s.desc.StaticSamplers {
		smp, err := d.newSampler(ss.Sampler)
		if err != nil {
			return err
		}
		s.samplers = append(s.samplers, smp)
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:            ss.Register,
			DescriptorType:     vk.DescriptorTypeSampler,
			DescriptorCount:    1,
			StageFlags:         toStages(ss.Visibility),
			PImmutableSamplers: []vk.Sampler{smp},
		})
	}
	res := vk.CreateDescriptorSetLayout(d.handle, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, nil, &s.staticLayout)
	if err := check("vkCreateDescriptorSetLayout", res); err != nil {
		return err
	}
	if len(bindings) == 0 {
		return nil
	}

	res = vk.CreateDescriptorPool(d.handle, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: 1,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeSampler,
			DescriptorCount: uint32(len(bindings)),
		}},
	}, nil, &s.staticPool)
	if err := check("vkCreateDescriptorPool", res); err != nil {
		return err
	}
	res = vk.AllocateDescriptorSets(d.handle, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     s.staticPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{s.staticLayout},
	}, &s.staticSet)
	return check("vkAllocateDescriptorSets", res)
}
