package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dirscan/pkg/compare"
	"dirscan/pkg/walker"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 搜索顺序：当前目录，然后是用户主目录下的 .dirscan
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".dirscan"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (DIRSCAN_WALK_ONEFS 等)
	viper.SetEnvPrefix("DIRSCAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 没找到配置文件不算错，格式错误才是
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Debug("no config file found, using defaults/env vars")
		} else {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	} else {
		slog.Debug("using config file", slog.String("path", viper.ConfigFileUsed()))
	}

	return nil
}

func setDefaults() {
	// 遍历
	viper.SetDefault("walk.reverse", false)
	viper.SetDefault("walk.exclude", []string{})
	viper.SetDefault("walk.exclude_file", "")
	viper.SetDefault("walk.onefs", false)
	viper.SetDefault("walk.retain", false)
	viper.SetDefault("walk.concurrency", 1)
	viper.SetDefault("walk.prefetch", false)
	viper.SetDefault("walk.on_error", "continue")

	// 比较
	viper.SetDefault("compare.time_slack", compare.DefaultTimeSlack)
	viper.SetDefault("compare.ignore", []string{})
	viper.SetDefault("compare.compare_time", false)
	viper.SetDefault("compare.no_content", false)

	// 输出
	viper.SetDefault("report.format", "text")
	viper.SetDefault("log.level", "warn")
}

// WalkOptions 把配置转换为遍历选项
// walk.traverse_oneside 没有默认值：未设置时由遍历根据根的数量决定
func WalkOptions() (walker.Options, error) {
	policy, err := walker.ParsePolicy(viper.GetString("walk.on_error"))
	if err != nil {
		return walker.Options{}, err
	}

	opts := walker.Options{
		Reverse:        viper.GetBool("walk.reverse"),
		Excludes:       viper.GetStringSlice("walk.exclude"),
		ExcludeFile:    viper.GetString("walk.exclude_file"),
		OneFS:          viper.GetBool("walk.onefs"),
		Retain:         viper.GetBool("walk.retain"),
		Concurrency:    viper.GetInt("walk.concurrency"),
		PrefetchHashes: viper.GetBool("walk.prefetch"),
		OnError:        policy,
	}
	if viper.IsSet("walk.traverse_oneside") {
		v := viper.GetBool("walk.traverse_oneside")
		opts.TraverseOneSided = &v
	}
	if opts.Concurrency < 1 {
		return walker.Options{}, fmt.Errorf("walk.concurrency must be at least 1, got %d", opts.Concurrency)
	}
	return opts, nil
}

// ignoreAliases 允许使用完整名称或者单字母
var ignoreAliases = map[string]string{
	"time": "t", "t": "t",
	"uid": "u", "u": "u",
	"gid": "g", "g": "g",
	"mode": "p", "perm": "p", "p": "p",
}

// CompareOptions 把配置转换为比较选项
func CompareOptions() (compare.Options, error) {
	opts := compare.Options{
		TimeSlack:      viper.GetDuration("compare.time_slack"),
		IgnoreTimeOnly: !viper.GetBool("compare.compare_time"),
		NoContent:      viper.GetBool("compare.no_content"),
	}
	if opts.TimeSlack < 0 {
		return compare.Options{}, fmt.Errorf("compare.time_slack must not be negative, got %s", opts.TimeSlack)
	}

	var flags strings.Builder
	for _, name := range viper.GetStringSlice("compare.ignore") {
		name = strings.ToLower(strings.TrimSpace(name))
		if flag, ok := ignoreAliases[name]; ok {
			flags.WriteString(flag)
			continue
		}
		// 也接受合并在一起的单字母，例如 "ug"
		if name == "" || strings.Trim(name, "tugp") != "" {
			return compare.Options{}, fmt.Errorf("unknown compare.ignore entry %q", name)
		}
		flags.WriteString(name)
	}
	if err := opts.ParseIgnore(flags.String()); err != nil {
		return compare.Options{}, err
	}
	return opts, nil
}

// LogLevel 解析 log.level
func LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		return slog.LevelWarn, fmt.Errorf("invalid log.level: %w", err)
	}
	return level, nil
}
