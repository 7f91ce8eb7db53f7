// Package assets reads scenes, meshes and images from an asset directory
// and watches it for changes.
package assets

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/lumen/engine/assets/loaders"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/scene"
)

type AssetInfo struct {
	Path       string
	Type       loaders.ResourceType
	LastLoaded time.Time
}

// AssetManager resolves paths against its root. When watching, changes to
// known asset files are reported on Changes, coalesced until read.
type AssetManager struct {
	root    string
	assets  map[string]AssetInfo
	loaders map[loaders.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	changes  chan string
}

func NewAssetManager(root string) (*AssetManager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	am := &AssetManager{
		root:    abs,
		assets:  make(map[string]AssetInfo),
		loaders: make(map[loaders.ResourceType]Loader),
		changes: make(chan string, 1),
	}
	models := &loaders.ModelLoader{}
	am.registerLoader(loaders.ResourceTypeScene, &loaders.SceneLoader{Models: models})
	am.registerLoader(loaders.ResourceTypeMesh, models)
	am.registerLoader(loaders.ResourceTypeImage, &loaders.ImageLoader{})
	return am, nil
}

func (am *AssetManager) Root() string {
	return am.root
}

// Watch starts reporting changes under the root directory and all of its
// sub-directories.
func (am *AssetManager) Watch() error {
	if am.fsnotify != nil {
		return errors.New("asset manager is already watching")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	am.fsnotify = w
	am.done = make(chan struct{})
	am.stopped = make(chan struct{})
	if err := am.watchRecursive(am.root); err != nil {
		w.Close()
		am.fsnotify = nil
		return err
	}
	go am.start()
	core.LogInfo("watching assets under %s", am.root)
	return nil
}

// Changes delivers the path of the last changed asset file.
func (am *AssetManager) Changes() <-chan string {
	return am.changes
}

func (am *AssetManager) registerLoader(assetType loaders.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

func (am *AssetManager) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(am.root, path)
}

// LoadAsset picks the loader from the file extension.
func (am *AssetManager) LoadAsset(path string, params interface{}) (*loaders.Resource, error) {
	full := am.resolve(path)
	assetType := loaders.TypeOf(full)
	loader, ok := am.loaders[assetType]
	if !ok {
		return nil, fmt.Errorf("no loader registered for %s", path)
	}
	res, err := loader.Load(full, params)
	if err != nil {
		return nil, err
	}
	am.mutex.Lock()
	am.assets[full] = AssetInfo{Path: full, Type: assetType, LastLoaded: time.Now()}
	am.mutex.Unlock()
	core.LogDebug("loaded %s %s (%d bytes)", assetType, res.Name, res.DataSize)
	return res, nil
}

// LoadScene reads a scene manifest.
func (am *AssetManager) LoadScene(path string) (*scene.Source, error) {
	if loaders.TypeOf(path) != loaders.ResourceTypeScene {
		return nil, fmt.Errorf("%w: %s is not a scene manifest", core.ErrSceneLoad, path)
	}
	res, err := am.LoadAsset(path, nil)
	if err != nil {
		return nil, err
	}
	return res.Data.(*scene.Source), nil
}

// LoadImage decodes an image file. Its signature matches
// upload.ImageSource.
func (am *AssetManager) LoadImage(path string) (image.Image, error) {
	if loaders.TypeOf(path) != loaders.ResourceTypeImage {
		return nil, fmt.Errorf("%s is not an image", path)
	}
	res, err := am.LoadAsset(path, nil)
	if err != nil {
		return nil, err
	}
	return res.Data.(image.Image), nil
}

// Loaded reports the assets read so far.
func (am *AssetManager) Loaded() []AssetInfo {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	out := make([]AssetInfo, 0, len(am.assets))
	for _, a := range am.assets {
		out = append(out, a)
	}
	return out
}

// Shutdown stops the watcher, if any.
func (am *AssetManager) Shutdown() error {
	if am.fsnotify == nil || am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	<-am.stopped
	return nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)
		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %v", err)
		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.watchRecursive(e.Name); err != nil {
				core.LogWarn("failed to watch %s: %v", e.Name, err)
			}
			return
		}
	}
	if e.Op&fsnotify.Chmod == e.Op {
		return
	}
	if loaders.TypeOf(e.Name) == loaders.ResourceTypeNone {
		return
	}
	if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		am.mutex.Lock()
		delete(am.assets, e.Name)
		am.mutex.Unlock()
	}
	// A pending change already covers this one.
	select {
	case am.changes <- e.Name:
	default:
	}
}

// watchRecursive adds every directory under path. Removed directories drop
// out of the watch list on their own.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return nil
		}
		return am.fsnotify.Add(walkPath)
	})
}
