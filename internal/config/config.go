// Package config 读取 YAML/TOML 配置，补默认值并校验；支持 include 分层与环境变量覆盖。
package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"autotrader/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，如 AUTOTRADER_LLM_API_KEY 覆盖 llm.api_key。
const EnvPrefix = "AUTOTRADER"

const includeKey = "include"

func Load(path string) (*Config, error) {
	layers, err := readLayers(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for _, l := range layers {
		if err := v.MergeConfigMap(l.settings); err != nil {
			return nil, fmt.Errorf("merge config %s: %w", l.path, err)
		}
	}
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	keys := make(keySet)
	markKeys("", v.AllSettings(), keys)
	cfg.applyDefaults(keys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch 监听主配置文件；变更后重新加载，校验通过才回调 fn，失败只记录日志。
func Watch(path string, fn func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigFile(abs)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watch config %s: %w", abs, err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		cfg, err := Load(abs)
		if err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
			return
		}
		logger.Infof("config reloaded (%s %s)", evt.Op, evt.Name)
		fn(cfg)
	})
	v.WatchConfig()
	return nil
}

// bindEnv 为每个已知字段绑定环境变量，使文件中缺省的字段也能被覆盖。
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range fieldKeys(reflect.TypeOf(Config{}), "") {
		_ = v.BindEnv(key)
	}
}

func fieldKeys(t reflect.Type, prefix string) []string {
	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "" || name == "-" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			out = append(out, fieldKeys(f.Type, name)...)
		} else {
			out = append(out, name)
		}
	}
	return out
}

// layer 是一个已读取的配置文件。
type layer struct {
	path     string
	settings map[string]any
}

// readLayers 深度优先展开 include：被包含的文件排在前面，主文件最后合并。
func readLayers(path string) ([]layer, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	r := &layerReader{done: map[string]bool{}, active: map[string]bool{}}
	if err := r.visit(abs); err != nil {
		return nil, err
	}
	return r.out, nil
}

type layerReader struct {
	done   map[string]bool
	active map[string]bool
	out    []layer
}

func (r *layerReader) visit(path string) error {
	path = filepath.Clean(path)
	switch {
	case r.active[path]:
		return fmt.Errorf("include cycle detected: %s", path)
	case r.done[path]:
		return nil
	}
	r.active[path] = true
	defer delete(r.active, path)

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var includes []string
	if raw := v.Get(includeKey); raw != nil {
		list, err := cast.ToStringSliceE(raw)
		if err != nil {
			return fmt.Errorf("%s: include must be a list of paths: %w", path, err)
		}
		includes = list
	}
	for _, inc := range includes {
		if inc = strings.TrimSpace(inc); inc == "" {
			continue
		}
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		if err := r.visit(inc); err != nil {
			return err
		}
	}
	settings := v.AllSettings()
	delete(settings, includeKey)
	r.done[path] = true
	r.out = append(r.out, layer{path: path, settings: settings})
	return nil
}

// markKeys 记录所有显式给出的叶子字段路径。
func markKeys(prefix string, node any, dest keySet) {
	m, ok := node.(map[string]any)
	if !ok {
		dest.mark(prefix)
		return
	}
	for k, child := range m {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		markKeys(key, child, dest)
	}
}
