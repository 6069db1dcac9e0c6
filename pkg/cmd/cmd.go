// Package cmd contains the command line applications for the project.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yeisme/propvault/pkg/configs"
	"github.com/yeisme/propvault/pkg/log"
)

var (
	// configPath 配置文件或所在目录.
	configPath string
	// debug 输出更多诊断信息.
	debug bool

	rootCmd = &cobra.Command{
		Use:           configs.AppName,
		Short:         "Property record vault: reference server and record maintenance CLI",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := configs.InitConfig(configPath); err != nil {
				return err
			}

			if debug {
				cfg := configs.GetConfig()
				cfg.Log.Level = "debug"
				configs.SetConfig(*cfg)
			}

			log.Init()

			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "config file or directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	registerServeCommands()
	registerRecordCommands()
	registerSessionCommands()
	registerTokenCommands()
	registerConfigsCommands()
	registerDBCommands()
	registerKVCommands()
	registerMQCommands()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
