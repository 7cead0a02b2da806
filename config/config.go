package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"sync"

	archaius "github.com/go-chassis/go-archaius"
	"github.com/go-chassis/go-archaius/core/cast"
	bhconfig "github.com/jwzl/beehive/pkg/common/config"
	"gopkg.in/yaml.v2"
	"k8s.io/klog"
)

var (
	// CONFIG is the configuration of the process.
	CONFIG = New()

	ErrNotInitialized = errors.New("configuration is not initialized")
)

// Config looks up dotted keys, e.g. "eventbus.mqtt.broker", in the
// beehive configuration. The values set on Config take precedence, they
// carry the command line overrides.
type Config struct {
	lock      sync.RWMutex
	overrides map[string]interface{}
}

func New() *Config {
	return &Config{overrides: make(map[string]interface{})}
}

// Load add the yaml file to the beehive configuration, it is where
// modules.enabled is read when the modules register.
func Load(path string) error {
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %v", path, err)
	}

	// archaius puts the whole content in its parse error, it may hold credentials.
	doc := yaml.MapSlice{}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return fmt.Errorf("parse config %s: %v", path, err)
	}

	if err := archaius.AddFile(path); err != nil {
		return fmt.Errorf("load config %s: %v", path, err)
	}
	klog.Infof("config %s loaded", path)

	return nil
}

// Set override the value of key.
func (c *Config) Set(key string, value interface{}) {
	c.lock.Lock()
	c.overrides[key] = value
	c.lock.Unlock()
}

// Unset drop the override of key.
func (c *Config) Unset(key string) {
	c.lock.Lock()
	delete(c.overrides, key)
	c.lock.Unlock()
}

// Reset drop all overrides.
func (c *Config) Reset() {
	c.lock.Lock()
	c.overrides = make(map[string]interface{})
	c.lock.Unlock()
}

// GetValue lookup the key.
func (c *Config) GetValue(key string) cast.Value {
	c.lock.RLock()
	v, ok := c.overrides[key]
	c.lock.RUnlock()
	if ok {
		return cast.NewValue(v, nil)
	}

	if bhconfig.CONFIG == nil {
		return cast.NewValue(nil, ErrNotInitialized)
	}
	if value := bhconfig.CONFIG.GetValue(key); value != nil {
		return value
	}

	return cast.NewValue(nil, ErrNotInitialized)
}
