// Package config loads runtime settings from defaults, an optional YAML file
// and command line flags, in increasing order of precedence.
package config

import (
	"time"

	"snake-dqn/qlearning"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   Server   `mapstructure:"server" yaml:"server"`
	Game     Game     `mapstructure:"game" yaml:"game"`
	Agent    Agent    `mapstructure:"agent" yaml:"agent"`
	Training Training `mapstructure:"training" yaml:"training"`
}

type Server struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	// PingInterval is how often idle websockets are probed.
	PingInterval time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
}

type Game struct {
	Width  int           `mapstructure:"width" yaml:"width"`
	Height int           `mapstructure:"height" yaml:"height"`
	Tick   time.Duration `mapstructure:"tick" yaml:"tick"`
	// Seed drives food placement and exploration; 0 picks one from the clock.
	Seed uint64 `mapstructure:"seed" yaml:"seed"`
	// MaxCells caps width*height, for the configured grid and for client requests.
	MaxCells int `mapstructure:"max_cells" yaml:"max_cells"`
}

// CheckGrid rejects grids smaller than 2x2 or larger than MaxCells.
func (g Game) CheckGrid(width, height int) error {
	if width < 2 || height < 2 {
		return errors.Errorf("grid %dx%d is too small", width, height)
	}
	if g.MaxCells > 0 && width > g.MaxCells/height {
		return errors.Errorf("grid %dx%d exceeds %d cells", width, height, g.MaxCells)
	}
	return nil
}

type Agent struct {
	Model        string  `mapstructure:"model" yaml:"model"`
	Hidden       int     `mapstructure:"hidden" yaml:"hidden"`
	LearningRate float64 `mapstructure:"learning_rate" yaml:"learning_rate"`
	Gamma        float64 `mapstructure:"gamma" yaml:"gamma"`
	MaxMemory    int     `mapstructure:"max_memory" yaml:"max_memory"`
	BatchSize    int     `mapstructure:"batch_size" yaml:"batch_size"`

	EpsilonStart float64 `mapstructure:"epsilon_start" yaml:"epsilon_start"`
	EpsilonDecay float64 `mapstructure:"epsilon_decay" yaml:"epsilon_decay"`
	EpsilonMin   float64 `mapstructure:"epsilon_min" yaml:"epsilon_min"`

	RewardCloser float64 `mapstructure:"reward_closer" yaml:"reward_closer"`
	RewardAway   float64 `mapstructure:"reward_away" yaml:"reward_away"`
	RewardFood   float64 `mapstructure:"reward_food" yaml:"reward_food"`
	RewardDeath  float64 `mapstructure:"reward_death" yaml:"reward_death"`
}

type Training struct {
	Headless    bool   `mapstructure:"headless" yaml:"headless"`
	Episodes    int    `mapstructure:"episodes" yaml:"episodes"`
	// WeightsFile defaults to qlearning.DefaultWeightsFile of the model when empty.
	WeightsFile string `mapstructure:"weights_file" yaml:"weights_file"`
	StatsFile   string `mapstructure:"stats_file" yaml:"stats_file"`
	// SaveEvery checkpoints weights and stats every n episodes; 0 only saves at the end.
	SaveEvery int `mapstructure:"save_every" yaml:"save_every"`
}

// Defaults returns the settings used when nothing overrides them.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:         ":8765",
			PingInterval: 10 * time.Second,
		},
		Game: Game{
			Width:    29,
			Height:   19,
			Tick:     30 * time.Millisecond,
			MaxCells: 10_000,
		},
		Agent: Agent{
			Model:        qlearning.ModelDQN,
			Hidden:       qlearning.HiddenLayerSize,
			LearningRate: qlearning.LearningRate,
			Gamma:        qlearning.DefaultGamma,
			MaxMemory:    qlearning.DefaultMemory,
			BatchSize:    qlearning.BatchSize,
			EpsilonStart: qlearning.InitialEpsilon,
			EpsilonDecay: qlearning.EpsilonDecay,
			EpsilonMin:   qlearning.MinEpsilon,
			RewardCloser: 1,
			RewardAway:   -1.5,
			RewardFood:   10,
			RewardDeath:  -10,
		},
		Training: Training{
			Episodes:  1000,
			StatsFile: "model/stats.json",
			SaveEvery: 100,
		},
	}
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"addr":     "server.addr",
	"width":    "game.width",
	"height":   "game.height",
	"tick":     "game.tick",
	"seed":     "game.seed",
	"model":    "agent.model",
	"headless": "training.headless",
	"episodes": "training.episodes",
	"weights":  "training.weights_file",
	"stats":    "training.stats_file",
}

// Flags registers the command line flags on fs.
func Flags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("config", "", "path to a YAML config file")
	fs.Bool("print-config", false, "print the effective config and exit")
	fs.String("addr", d.Server.Addr, "listen address of the session server")
	fs.Int("width", d.Game.Width, "grid width in cells")
	fs.Int("height", d.Game.Height, "grid height in cells")
	fs.Duration("tick", d.Game.Tick, "delay between steps")
	fs.Uint64("seed", d.Game.Seed, "random seed, 0 for a time based one")
	fs.String("model", d.Agent.Model, "approximator: dqn or qtable")
	fs.Bool("headless", d.Training.Headless, "train without serving")
	fs.Int("episodes", d.Training.Episodes, "episodes to play in headless mode")
	fs.String("weights", d.Training.WeightsFile, "weights file, chosen by model when empty")
	fs.String("stats", d.Training.StatsFile, "stats file")
}

func setDefaults(vp *viper.Viper) error {
	// Round trip through yaml so every key exists in viper before unmarshaling.
	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return err
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	for section, values := range tree {
		for key, value := range values.(map[string]interface{}) {
			vp.SetDefault(section+"."+key, value)
		}
	}
	return nil
}

// Load builds the effective config. fs may be nil; when it carries a
// --config value that file is read.
func Load(fs *pflag.FlagSet) (*Config, error) {
	vp := viper.New()
	if err := setDefaults(vp); err != nil {
		return nil, errors.Wrap(err, "config defaults")
	}

	if fs != nil {
		for name, key := range flagKeys {
			if flag := fs.Lookup(name); flag != nil {
				if err := vp.BindPFlag(key, flag); err != nil {
					return nil, errors.Wrapf(err, "bind flag %s", name)
				}
			}
		}
		if path, err := fs.GetString("config"); err == nil && path != "" {
			vp.SetConfigFile(path)
			vp.SetConfigType("yaml")
			if err := vp.ReadInConfig(); err != nil {
				return nil, errors.Wrapf(err, "read config %s", path)
			}
		}
	}

	cfg := &Config{}
	if err := vp.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Training.WeightsFile == "" {
		cfg.Training.WeightsFile = qlearning.DefaultWeightsFile(cfg.Agent.Model)
	}
	return cfg, nil
}

// Validate rejects settings the simulation cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Game.MaxCells < 0:
		return errors.Errorf("negative max cells %d", c.Game.MaxCells)
	case c.Game.Tick < 0:
		return errors.Errorf("negative tick %v", c.Game.Tick)
	case c.Agent.Model != qlearning.ModelDQN && c.Agent.Model != qlearning.ModelQTable:
		return errors.Errorf("unknown model %q", c.Agent.Model)
	case c.Agent.BatchSize <= 0:
		return errors.Errorf("batch size must be positive, got %d", c.Agent.BatchSize)
	case c.Agent.MaxMemory <= 0:
		return errors.Errorf("max memory must be positive, got %d", c.Agent.MaxMemory)
	case c.Agent.Hidden <= 0:
		return errors.Errorf("hidden size must be positive, got %d", c.Agent.Hidden)
	case c.Agent.Gamma < 0 || c.Agent.Gamma > 1:
		return errors.Errorf("gamma %v outside [0,1]", c.Agent.Gamma)
	}
	return c.Game.CheckGrid(c.Game.Width, c.Game.Height)
}

// YAML renders the config the way it would be written in a config file.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
