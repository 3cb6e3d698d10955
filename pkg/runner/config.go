package runner

import (
	"fmt"
	"io/ioutil"

	lua "github.com/yuin/gopher-lua"
	yaml "gopkg.in/yaml.v2"
)

type Config struct {
	JoinOnExit *bool     `yaml:"join-on-exit"`
	Lua        LuaConfig `yaml:"lua"`
	PPROFAddr  string    `yaml:"pprof-addr"`
}

type LuaConfig struct {
	CallStackSize       int  `yaml:"call-stack-size"`
	RegistrySize        int  `yaml:"registry-size"`
	IncludeGoStackTrace bool `yaml:"include-go-stack-trace"`
}

// LoadConfig reads a yaml config file, an empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := &Config{}
	if path != "" {
		bytes, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read config: %w", err)
		}
		if err := yaml.Unmarshal(bytes, config); err != nil {
			return nil, fmt.Errorf("unable to parse config: %w", err)
		}
	}
	config.SetDefaults()
	return config, nil
}

func (c *Config) SetDefaults() {
	if c.JoinOnExit == nil {
		join := true
		c.JoinOnExit = &join
	}

	if c.Lua.CallStackSize <= 0 {
		c.Lua.CallStackSize = lua.CallStackSize
	}

	if c.Lua.RegistrySize <= 0 {
		c.Lua.RegistrySize = lua.RegistrySize
	}
}

func (c *Config) options() lua.Options {
	return lua.Options{
		CallStackSize:       c.Lua.CallStackSize,
		RegistrySize:        c.Lua.RegistrySize,
		IncludeGoStackTrace: c.Lua.IncludeGoStackTrace,
	}
}
