package assets

import "github.com/spaghettifunk/lumen/engine/assets/loaders"

// Loader reads one resource type from disk. params is loader specific and
// may be nil.
type Loader interface {
	Load(path string, params interface{}) (*loaders.Resource, error)
	Unload(*loaders.Resource) error
}
