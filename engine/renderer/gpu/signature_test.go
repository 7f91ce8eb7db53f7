package gpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

func lightingLikeSignature() gpu.RootSignatureDesc {
	return gpu.RootSignatureDesc{
		Parameters: []gpu.RootParameter{
			gpu.TableParam(gpu.VisibilityCompute, gpu.DescriptorRange{Type: gpu.RangeUAV, Count: 1}),
			gpu.TableParam(gpu.VisibilityCompute, gpu.DescriptorRange{Type: gpu.RangeSRV, Count: 1}),
			gpu.TableParam(gpu.VisibilityCompute, gpu.DescriptorRange{Type: gpu.RangeSRV, Count: gpu.Unbounded, Space: 1}),
			gpu.ConstantsParam(gpu.VisibilityCompute, 0, 1),
			gpu.CBVParam(gpu.VisibilityCompute, 1),
		},
		StaticSamplers: []gpu.StaticSampler{{
			Sampler:  gpu.SamplerDesc{Filter: gpu.FilterLinear, Address: gpu.AddressClamp},
			Register: 0,
		}},
	}
}

func TestRootSignatureRoundTrip(t *testing.T) {
	desc := lightingLikeSignature()
	blob, err := gpu.SerializeRootSignature(desc)
	require.NoError(t, err)

	got, err := gpu.DeserializeRootSignature(blob)
	require.NoError(t, err)
	assert.Equal(t, desc, got)
}

func TestRootSignatureValidation(t *testing.T) {
	tests := []struct {
		name string
		desc gpu.RootSignatureDesc
		msg  string
	}{
		{
			name: "empty table",
			desc: gpu.RootSignatureDesc{Parameters: []gpu.RootParameter{gpu.TableParam(gpu.VisibilityAll)}},
			msg:  "no ranges",
		},
		{
			name: "unbounded range not last",
			desc: gpu.RootSignatureDesc{Parameters: []gpu.RootParameter{gpu.TableParam(gpu.VisibilityAll,
				gpu.DescriptorRange{Type: gpu.RangeSRV, Count: gpu.Unbounded},
				gpu.DescriptorRange{Type: gpu.RangeSRV, Count: 1},
			)}},
			msg: "unbounded",
		},
		{
			name: "mixed sampler table",
			desc: gpu.RootSignatureDesc{Parameters: []gpu.RootParameter{gpu.TableParam(gpu.VisibilityAll,
				gpu.DescriptorRange{Type: gpu.RangeSRV, Count: 1},
				gpu.DescriptorRange{Type: gpu.RangeSampler, Count: 1},
			)}},
			msg: "sampler",
		},
		{
			name: "zero constants",
			desc: gpu.RootSignatureDesc{Parameters: []gpu.RootParameter{gpu.ConstantsParam(gpu.VisibilityAll, 0, 0)}},
			msg:  "at least one value",
		},
		{
			name: "too large",
			desc: gpu.RootSignatureDesc{Parameters: []gpu.RootParameter{
				gpu.ConstantsParam(gpu.VisibilityAll, 0, 31),
				gpu.CBVParam(gpu.VisibilityAll, 0),
			}},
			msg: "limit is 32",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := gpu.SerializeRootSignature(tt.desc)
			assert.Nil(t, blob)
			var rse *core.RootSignatureError
			require.ErrorAs(t, err, &rse)
			assert.Contains(t, rse.Message, tt.msg)
		})
	}
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	_, err := gpu.DeserializeRootSignature([]byte{1, 2, 3})
	var rse *core.RootSignatureError
	assert.ErrorAs(t, err, &rse)

	blob, err := gpu.SerializeRootSignature(lightingLikeSignature())
	require.NoError(t, err)
	_, err = gpu.DeserializeRootSignature(blob[:len(blob)-3])
	assert.ErrorAs(t, err, &rse)
}

func TestResolveLayout(t *testing.T) {
	l := gpu.ResolveLayout(lightingLikeSignature())
	require.Len(t, l.Params, 5)
	assert.Equal(t, uint32(0), l.Params[0].PushOffset)
	assert.Equal(t, uint32(1), l.Params[1].PushOffset)
	assert.Equal(t, uint32(2), l.Params[2].PushOffset)
	assert.Equal(t, uint32(3), l.Params[3].PushOffset)
	assert.Equal(t, uint32(1), l.Params[3].PushWords)
	assert.Equal(t, uint32(0), l.Params[4].PushWords)
	assert.Equal(t, gpu.SetFirstRootCBV, l.Params[4].Set)
	assert.Equal(t, uint32(4), l.PushWords)
	assert.Equal(t, uint32(1), l.CBVSets)
}

func TestResourceStateString(t *testing.T) {
	assert.Equal(t, "Common", gpu.StateCommon.String())
	assert.Equal(t, "RenderTarget", gpu.StateRenderTarget.String())
	assert.Equal(t, "NonPixelShaderResource|PixelShaderResource", gpu.StateShaderResource.String())
	assert.True(t, gpu.StateGenericRead.Has(gpu.StateIndexBuffer))
	assert.False(t, gpu.StateCopyDest.Has(gpu.StateShaderResource))
}
