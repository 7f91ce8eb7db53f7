package engine

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/lumen/engine/assets"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/platform"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/components"
	"github.com/spaghettifunk/lumen/engine/renderer/shader"
	"github.com/spaghettifunk/lumen/engine/renderer/vulkan"
	"github.com/spaghettifunk/lumen/engine/scene"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// titleInterval is how often the frame time in the window title refreshes.
const titleInterval = 500 * time.Millisecond

type Engine struct {
	currentStage Stage
	config       *core.Config
	isRunning    bool
	isSuspended  bool
	quit         atomic.Bool

	platform     *platform.Platform
	assetManager *assets.AssetManager
	instance     *vulkan.Instance
	renderer     *renderer.Renderer

	events  *core.EventBus
	input   *core.Input
	camera  *components.Camera
	clock   *core.Clock
	metrics *core.Metrics

	lastTime      time.Duration
	lastTitle     time.Duration
	reloadPending bool
}

func New(cfg *core.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	am, err := assets.NewAssetManager(cfg.Scene.Assets)
	if err != nil {
		return nil, err
	}
	events := core.NewEventBus()
	input := core.NewInput(core.DefaultBindings(), events)
	return &Engine{
		currentStage: EngineStageUninitialized,
		config:       cfg,
		platform:     platform.New(input, events),
		assetManager: am,
		events:       events,
		input:        input,
		camera:       components.NewCamera(),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}, nil
}

// Initialize opens the window, creates the renderer and uploads the first
// scene. Every failure is fatal.
func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	cfg := e.config

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)
	e.events.Register(core.EVENT_CODE_SCENE_CHANGED, e, e.onSceneChanged)

	if err := e.platform.Startup(cfg.Window.Title, cfg.Window.Width, cfg.Window.Height, true); err != nil {
		return fmt.Errorf("%w: %w", core.ErrInitialization, err)
	}

	var err error
	if e.instance, err = vulkan.NewInstance(e.platform, vulkan.Config{
		AppName:    cfg.Window.Title,
		Validation: cfg.Renderer.Validation,
	}); err != nil {
		return err
	}
	if e.renderer, err = renderer.New(renderer.Config{
		Instance: e.instance,
		Compiler: shader.NewCompiler(cfg.Renderer.Validation),
		Renderer: cfg.Renderer,
		Width:    cfg.Window.Width,
		Height:   cfg.Window.Height,
		Images:   e.assetManager.LoadImage,
	}); err != nil {
		return err
	}

	src, err := e.loadSource()
	if err != nil {
		return err
	}
	if err := e.renderer.LoadScene(src); err != nil {
		return err
	}
	if cfg.Scene.Watch && cfg.Scene.Path != "" {
		if err := e.assetManager.Watch(); err != nil {
			core.LogWarn("scene hot reload disabled: %v", err)
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) loadSource() (*scene.Source, error) {
	if e.config.Scene.Path == "" {
		return scene.Triangle(), nil
	}
	return e.assetManager.LoadScene(e.config.Scene.Path)
}

// Run drives the frame loop until quit. Device timeouts end the loop with
// an error.
func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return errors.New("engine is not initialized")
	}
	e.currentStage = EngineStageRunning
	e.isRunning = true
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		if !e.platform.PumpMessages() {
			e.isRunning = false
		}
		e.pollAssets()
		if e.quit.Load() {
			e.isRunning = false
		}
		if !e.isRunning {
			break
		}
		if e.isSuspended {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		e.lastTime = currentTime

		if e.reloadPending {
			e.reloadPending = false
			if err := e.reload(); err != nil {
				return err
			}
		}

		e.camera.Update(e.input, float32(delta.Seconds()))
		width, height := e.renderer.Size()

		frameStart := time.Now()
		if err := e.renderer.RenderFrame(e.camera.ViewData(width, height)); err != nil {
			return err
		}
		e.metrics.Update(float64(time.Since(frameStart).Microseconds()) / 1000)
		if currentTime-e.lastTitle >= titleInterval {
			e.lastTitle = currentTime
			e.platform.SetTitle(fmt.Sprintf("%s - %.2f ms (%.0f fps)", e.config.Window.Title, e.metrics.FrameTime(), e.metrics.FPS()))
		}

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded.
		e.input.Update()
	}
	return nil
}

// Quit stops the loop at its next iteration. Safe from any goroutine.
func (e *Engine) Quit() {
	e.quit.Store(true)
	platform.Wake()
}

// Shutdown drains the GPU once and releases everything.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var errs []error
	if e.renderer != nil {
		if err := e.renderer.Shutdown(); err != nil {
			errs = append(errs, err)
		}
		e.renderer = nil
	}
	if e.instance != nil {
		e.instance.Release()
		e.instance = nil
	}
	if err := e.assetManager.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if e.platform.Window != nil {
		if err := e.platform.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	e.currentStage = EngineStageUninitialized
	return errors.Join(errs...)
}

// pollAssets turns watcher notifications into events on this goroutine.
func (e *Engine) pollAssets() {
	select {
	case path := <-e.assetManager.Changes():
		var ctx core.EventContext
		ctx.Data.C = path
		e.events.Fire(core.EVENT_CODE_SCENE_CHANGED, e.assetManager, ctx)
	default:
	}
}

// reload replaces the scene. A manifest, mesh or texture that fails to load
// keeps the previous scene on screen. A GPU upload failure tears the old
// scene down first and leaves nothing to draw until the next reload. Only
// device timeouts are fatal.
func (e *Engine) reload() error {
	src, err := e.loadSource()
	if err != nil {
		core.LogError("scene reload failed, keeping the current scene: %v", err)
		return nil
	}
	if err := e.renderer.LoadScene(src); err != nil {
		var timeout *core.DeviceTimeoutError
		if errors.As(err, &timeout) {
			return err
		}
		if e.renderer.Scene() != nil {
			core.LogError("scene reload failed, keeping the current scene: %v", err)
		} else {
			core.LogError("scene upload failed, nothing to draw until the next reload: %v", err)
		}
		return nil
	}
	core.LogInfo("scene %q reloaded (generation %s)", src.Name, e.renderer.Scene().Generation)
	return nil
}

func (e *Engine) onEvent(code core.EventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(code core.EventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	switch core.KeyCode(context.Data.U16[0]) {
	case core.KEY_ESCAPE:
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		return true
	case core.KEY_R:
		e.camera.Reset()
		return true
	case core.KEY_F1:
		e.reloadPending = true
		return true
	}
	return false
}

func (e *Engine) onResized(code core.EventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	width, height := context.Data.U32[0], context.Data.U32[1]
	// Handle minimization
	if width == 0 || height == 0 {
		if !e.isSuspended {
			core.LogInfo("Window minimized, suspending application.")
			e.isSuspended = true
		}
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	rw, rh := e.renderer.Size()
	if width == rw && height == rh {
		return true
	}
	if err := core.ValidateResolution(width, height); err != nil {
		core.LogWarn("window resized to an unsupported size, rendering stays at %dx%d: %v", rw, rh, err)
		return true
	}
	core.LogInfo("window resized to %dx%d, rendering stays at %dx%d until restart", width, height, rw, rh)
	return true
}

func (e *Engine) onSceneChanged(code core.EventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	core.LogInfo("%s changed, reloading the scene", context.Data.C)
	e.reloadPending = true
	return false
}
