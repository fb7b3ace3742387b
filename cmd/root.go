package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anoixa/mediastore/config"
	"github.com/anoixa/mediastore/internal/app"
	"github.com/anoixa/mediastore/utils"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "mediastore",
	Short:         "Move media payloads between storage providers",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (eg: /etc/mediastore/.env)")
	if err := viper.BindPFlag("config_file_path", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		return
	}
}

// newContainer 加载配置、初始化日志并创建容器
func newContainer() (*app.Container, error) {
	config.InitConfig()
	cfg := config.Get()
	utils.InitLogger(cfg)

	container := app.NewContainer(cfg)
	if err := container.Init(); err != nil {
		_ = container.Close()
		return nil, err
	}
	return container, nil
}
