// Package cmd implements the dragon command surface.
//
// The commands only render engine-produced state and forward user action
// requests: pull and push per cave, status, and divergence resolution. No
// other mutation path into the engine exists from here.
package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dragon",
	Short: "Dragon keeps one hoard of files across many caves",
	Long: `Dragon maintains one logical collection of files, the hoard, physically
distributed across many independent, intermittently-connected storage
locations called caves: external drives, a NAS, a laptop working tree,
SD cards.

No single cave holds the whole hoard. Each cave declares, through its policy,
what it should eventually contain; dragon scans caves as they connect,
reconciles their actual contents against policy and converges them with
resumable, verified file transfers.
`,
}

var config *CLIConfig

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)
	addLogLevelFlag(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetDefault("catalog", defaultCatalogPath())
	viper.SetDefault("loglevel", "none")
	if os.Getenv("DRAGON_CONFIG") != "" {
		// Use config file from the environment.
		viper.SetConfigFile(os.Getenv("DRAGON_CONFIG"))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.dragon")
		viper.AddConfigPath("/etc/dragon")
		viper.SetConfigName("dragon")
	}

	viper.AutomaticEnv() // read in environment variables that match
	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		infoLogger.Println("Using config file:", viper.ConfigFileUsed())
	}
	var err error
	config, err = newConfig()
	if err != nil {
		logFatalln(err)
	}
	config.setRootParams(&dragonFlags)
}
