package scene

// PointLight matches the shader layout: position then intensity.
type PointLight struct {
	Position  [3]float32
	Intensity float32
}

// PointLightSize is the size of a PointLight in the light buffer.
const PointLightSize = 16

// DefaultLights lines up n lights along the X axis with increasing
// intensity.
func DefaultLights(n int) []PointLight {
	lights := make([]PointLight, n)
	for i := range lights {
		lights[i] = PointLight{
			Position:  [3]float32{-1100 + float32(i)*250, 80, 0},
			Intensity: 1000 * float32(i),
		}
	}
	return lights
}
