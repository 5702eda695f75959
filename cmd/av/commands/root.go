package commands

import (
	"fmt"

	"assetvault/pkg/app"
	"assetvault/pkg/config"
	"assetvault/pkg/logging"
	"assetvault/pkg/types"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	AV *app.App
)

var rootCmd = &cobra.Command{
	Use:   "av",
	Short: "AssetVault: content-addressed asset cache",
	Long: `Migrate a legacy path-keyed asset cache into a content-addressed
object store (objects/<hh>/<hash>) and inspect asset index manifests.`,
	SilenceUsage: true,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 1. 绑定命令行参数并加载配置
		// 在这里而不是 init() 中绑定：viper.Reset() 之后依然生效
		flags := cmd.Root().PersistentFlags()
		if err := viper.BindPFlag("storage.root", flags.Lookup("root")); err != nil {
			return err
		}
		if err := viper.BindPFlag("log.level", flags.Lookup("log-level")); err != nil {
			return err
		}
		used, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// 2. 构造 logger (日志写 stderr，结果写 stdout)
		log, err := logging.New(cmd.ErrOrStderr(), viper.GetString("log.level"), viper.GetString("log.format"))
		if err != nil {
			return err
		}
		if used != "" {
			log.WithField("file", used).Debug("Using config file")
		}

		// 3. 统一初始化 App
		AV, err = app.NewApp(cmd.Context(), log)
		if err != nil {
			return fmt.Errorf("failed to initialize assetvault: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if AV == nil {
			return nil
		}
		return AV.Close()
	},
}

// Execute 是入口
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()

	// 1. 全局参数 --config
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.assetvault/config.yaml)")

	// 2. 可以覆盖配置文件的参数，绑定到 Viper
	flags.String("root", "", "legacy assets directory (also the object store root)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
}

// requireApp 用于子命令开头
func requireApp() error {
	if AV == nil {
		return fmt.Errorf("app not initialized")
	}
	return nil
}

// parseHash 把命令行参数规范化为当前算法的摘要
// 不合法的输入一律拒绝，避免拼出 objects/ 以外的路径
func parseHash(arg string) (types.Hash, error) {
	hash := types.Normalize(arg)
	if !hash.IsValid() {
		return "", fmt.Errorf("invalid hash %q", arg)
	}
	if !AV.Algorithm.Matches(hash) {
		return "", fmt.Errorf("hash %q is not a %s digest", arg, AV.Algorithm)
	}
	return hash, nil
}
