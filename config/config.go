package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type Config struct {
	LogLevel int `yaml:"log_level"`

	Audio   AudioConfig   `yaml:"audio"`
	Cache   CacheConfig   `yaml:"cache"`
	Pads    PadsConfig    `yaml:"pads"`
	Library LibraryConfig `yaml:"library"`
}

type AudioConfig struct {
	// Device and mixer rate in Hz.
	SampleRate int `yaml:"sample_rate"`
	// 1 or 2
	Channels int `yaml:"channels"`

	DeviceBufferMs int `yaml:"device_buffer_ms"`
	// Deck ring buffer length, at least 200 ms.
	RingBufferMs int `yaml:"ring_buffer_ms"`
	// Producer chunk in frames.
	ChunkSize int `yaml:"chunk_size"`
	// Rate offset at pitch = ±1.
	PitchRange      float64 `yaml:"pitch_range"`
	ResampleQuality int     `yaml:"resample_quality"`
}

type CacheConfig struct {
	// Type of storage: "local" or "gcs"
	Type string `yaml:"type"`

	// Local storage options. Empty means ${HOME}/.dj-cache.
	Dir string `yaml:"dir"`

	// GCS options
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

type PadsConfig struct {
	Dir string `yaml:"dir"`
}

type LibraryConfig struct {
	Workers    int      `yaml:"workers"`
	Extensions []string `yaml:"extensions"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:      44100,
			Channels:        2,
			DeviceBufferMs:  100,
			RingBufferMs:    250,
			ChunkSize:       1024,
			PitchRange:      0.08,
			ResampleQuality: 4,
		},
		Cache:   CacheConfig{Type: "local"},
		Pads:    PadsConfig{Dir: "."},
		Library: LibraryConfig{Workers: 4, Extensions: []string{"wav", "flac", "mp3", "ogg"}},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()

	// Unmarshal the YAML data over the defaults
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}

	config.normalise()
	return config, nil
}

// normalise replaces values the audio path cannot run with.
func (c *Config) normalise() {
	d := Default()

	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = d.Audio.SampleRate
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		c.Audio.Channels = d.Audio.Channels
	}
	if c.Audio.DeviceBufferMs <= 0 {
		c.Audio.DeviceBufferMs = d.Audio.DeviceBufferMs
	}
	if c.Audio.RingBufferMs < 200 {
		c.Audio.RingBufferMs = 200
	}
	if c.Audio.ChunkSize <= 0 {
		c.Audio.ChunkSize = d.Audio.ChunkSize
	}
	if c.Audio.PitchRange <= 0 || c.Audio.PitchRange >= 1 {
		c.Audio.PitchRange = d.Audio.PitchRange
	}
	if c.Audio.ResampleQuality < 1 || c.Audio.ResampleQuality > 64 {
		c.Audio.ResampleQuality = d.Audio.ResampleQuality
	}

	if c.Cache.Type == "" {
		c.Cache.Type = "local"
	}

	if c.Pads.Dir == "" {
		c.Pads.Dir = "."
	}

	if c.Library.Workers < 1 || c.Library.Workers > 16 {
		c.Library.Workers = d.Library.Workers
	}
	if len(c.Library.Extensions) == 0 {
		c.Library.Extensions = d.Library.Extensions
	}
}
