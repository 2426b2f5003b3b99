package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Logging selects the zap logger built by logger.Configure.
type Logging struct {
	Level    string `json:"level" yaml:"level" toml:"level"`
	Encoding string `json:"encoding" yaml:"encoding" toml:"encoding"`
}

type Physics struct {
	Gravity     [3]float32 `json:"gravity" yaml:"gravity" toml:"gravity"`
	FixedStep   float32    `json:"fixed_step" yaml:"fixed_step" toml:"fixed_step"`
	MaxSubSteps int        `json:"max_sub_steps" yaml:"max_sub_steps" toml:"max_sub_steps"`
	GroundPlane bool       `json:"ground_plane" yaml:"ground_plane" toml:"ground_plane"`
}

type Cache struct {
	LoadWorkers    int  `json:"load_workers" yaml:"load_workers" toml:"load_workers"`
	MaxTextureSize int  `json:"max_texture_size" yaml:"max_texture_size" toml:"max_texture_size"`
	RetainModels   bool `json:"retain_models" yaml:"retain_models" toml:"retain_models"`
}

type Viewport struct {
	Width  int32 `json:"width" yaml:"width" toml:"width"`
	Height int32 `json:"height" yaml:"height" toml:"height"`
}

type Camera struct {
	FOV  float32 `json:"fov" yaml:"fov" toml:"fov"`
	Near float32 `json:"near" yaml:"near" toml:"near"`
	Far  float32 `json:"far" yaml:"far" toml:"far"`
}

type Watch struct {
	Enabled  bool          `json:"enabled" yaml:"enabled" toml:"enabled"`
	Debounce time.Duration `json:"debounce" yaml:"debounce" toml:"debounce"`
}

// Engine is the full runtime configuration.
type Engine struct {
	Logging  Logging  `json:"logging" yaml:"logging" toml:"logging"`
	Physics  Physics  `json:"physics" yaml:"physics" toml:"physics"`
	Cache    Cache    `json:"cache" yaml:"cache" toml:"cache"`
	Viewport Viewport `json:"viewport" yaml:"viewport" toml:"viewport"`
	Camera   Camera   `json:"camera" yaml:"camera" toml:"camera"`
	Watch    Watch    `json:"watch" yaml:"watch" toml:"watch"`
}

func Default() Engine {
	return Engine{
		Logging: Logging{Level: "info", Encoding: "console"},
		Physics: Physics{
			Gravity:     [3]float32{0, -9.81, 0},
			FixedStep:   1.0 / 60.0,
			MaxSubSteps: 8,
		},
		Cache: Cache{
			LoadWorkers:    4,
			MaxTextureSize: 4096,
			RetainModels:   true,
		},
		Viewport: Viewport{Width: 1280, Height: 720},
		Camera:   Camera{FOV: 45, Near: 0.1, Far: 10000},
		Watch:    Watch{Debounce: 100 * time.Millisecond},
	}
}

// Load reads path, choosing the codec from its extension, and overlays the
// result on Default.
func Load(path string) (Engine, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("config %s: unsupported extension %q", path, filepath.Ext(path))
	}
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (e Engine) Validate() error {
	var errs []error
	if e.Physics.FixedStep <= 0 {
		errs = append(errs, errors.New("physics.fixed_step must be positive"))
	}
	if e.Physics.MaxSubSteps < 1 {
		errs = append(errs, errors.New("physics.max_sub_steps must be at least 1"))
	}
	if e.Cache.LoadWorkers < 1 {
		errs = append(errs, errors.New("cache.load_workers must be at least 1"))
	}
	if e.Cache.MaxTextureSize < 0 {
		errs = append(errs, errors.New("cache.max_texture_size must not be negative"))
	}
	if e.Camera.Near <= 0 || e.Camera.Far <= e.Camera.Near {
		errs = append(errs, errors.New("camera near/far planes are invalid"))
	}
	return errors.Join(errs...)
}
