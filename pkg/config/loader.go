package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
// 返回实际使用的配置文件 (没有找到时为空)
func Load(cfgFile string) (string, error) {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}

		// 搜索顺序：
		// 1. 当前目录
		viper.AddConfigPath(".")
		// 2. 当前目录下的 .assetvault
		viper.AddConfigPath(".assetvault")
		// 3. 用户主目录下的 .assetvault
		viper.AddConfigPath(filepath.Join(home, ".assetvault"))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (AV_STORAGE_ROOT 等)
	viper.SetEnvPrefix("AV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	// 没找到配置文件不算错 (可能全靠默认值/环境变量)；格式错误才算
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("fatal error config file: %w", err)
	}
	return viper.ConfigFileUsed(), nil
}

func setDefaults() {
	// 存储默认值：旧缓存根目录同时也是对象仓库根目录
	wd, _ := os.Getwd()
	viper.SetDefault("storage.root", filepath.Join(wd, "assets"))
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.s3.region", "us-east-1")

	viper.SetDefault("cache.ttl", 24*time.Hour)
	viper.SetDefault("digest.algorithm", "sha1")
	viper.SetDefault("migrate.discard", []string{})
	viper.SetDefault("migrate.discard_file", "")
	viper.SetDefault("index.allow_comments", false)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}
