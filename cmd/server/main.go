// Package main provides the entry point for the Git-Captain server, a GitHub
// OAuth proxy that creates, searches and deletes branches across the
// repositories of one organization.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/git-captain/git-captain/internal/buildinfo"
	"github.com/git-captain/git-captain/internal/cmd"
	"github.com/git-captain/git-captain/internal/config"
	"github.com/git-captain/git-captain/internal/logging"
	"github.com/git-captain/git-captain/internal/misc"
	"github.com/git-captain/git-captain/internal/util"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	fmt.Printf("Git-Captain Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	var configPath string
	var envPath string
	var setup bool
	var accessible bool
	var openBrowser bool

	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.StringVar(&envPath, "env", ".env", "Environment file with the GitHub OAuth settings")
	flag.BoolVar(&setup, "setup", false, "Run the interactive setup wizard and write the env file")
	flag.BoolVar(&accessible, "accessible", false, "Use plain prompts in the setup wizard")
	flag.BoolVar(&openBrowser, "open", false, "Open the sign-in page in the browser after start")
	flag.Parse()

	if setup {
		if errSetup := cmd.DoSetup(cmd.SetupOptions{EnvPath: envPath, Accessible: accessible}); errSetup != nil {
			fmt.Fprintf(os.Stderr, "setup failed: %v\n", errSetup)
			os.Exit(1)
		}
		return
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return
	}
	if !filepath.IsAbs(envPath) {
		envPath = filepath.Join(wd, envPath)
	}
	if errLoad := godotenv.Load(envPath); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	configFilePath := configPath
	if configFilePath == "" {
		configFilePath = filepath.Join(wd, "config.yaml")
		if _, errStat := os.Stat(configFilePath); errors.Is(errStat, os.ErrNotExist) {
			examplePath := filepath.Join(wd, "config.example.yaml")
			if _, errExample := os.Stat(examplePath); errExample == nil {
				if errCopy := misc.CopyConfigTemplate(examplePath, configFilePath); errCopy != nil {
					log.Warnf("failed to create config.yaml from template: %v", errCopy)
				} else {
					log.Infof("config.yaml created from template: %s", configFilePath)
				}
			}
		}
	}

	// An explicit -config must exist; the default one is optional.
	cfg, err := config.LoadConfigOptional(configFilePath, configPath == "")
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return
	}
	warnings, errValidate := cfg.Validate()
	for _, warning := range warnings {
		log.Warn(warning)
	}
	if errValidate != nil {
		log.Errorf("invalid configuration: %v", errValidate)
		return
	}

	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		return
	}
	log.Infof("Git-Captain Version: %s, Commit: %s, BuiltAt: %s", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
	util.SetLogLevel(cfg)

	cmd.StartService(cfg, cmd.ServiceOptions{
		ConfigPath:  configFilePath,
		EnvPath:     envPath,
		OpenBrowser: openBrowser,
	})
}
