package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

const configHeader = "# cratemap configuration. Every key can also be set with a CRATEMAP_ environment\n# variable, e.g. CRATEMAP_LOG_LEVEL=debug.\n"

type logSettings struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// settings mirrors the layout of cratemap.yaml.
type settings struct {
	Format       string      `yaml:"format"`
	Output       string      `yaml:"output"`
	Name         string      `yaml:"name"`
	IncludeTests bool        `yaml:"include_tests"`
	Log          logSettings `yaml:"log"`
}

func currentSettings(v *viper.Viper) settings {
	return settings{
		Format:       v.GetString(formatKey),
		Output:       v.GetString(outputKey),
		Name:         v.GetString(nameKey),
		IncludeTests: v.GetBool(includeTestsKey),
		Log: logSettings{
			Level:      v.GetString(logLevelKey),
			File:       v.GetString(logFileKey),
			MaxSize:    v.GetInt(logMaxSizeKey),
			MaxBackups: v.GetInt(logMaxBackupsKey),
			MaxAge:     v.GetInt(logMaxAgeKey),
			Compress:   v.GetBool(logCompressKey),
		},
	}
}

// renderSettings returns the YAML document for s, header included.
func renderSettings(s settings) ([]byte, error) {
	body, err := yaml.Marshal(s)
	if err != nil {
		return nil, errors.Errorf("encoding config: %w", err)
	}
	return append([]byte(configHeader), body...), nil
}

func newInitCmd(v *viper.Viper, stdout, stderr io.Writer) *cobra.Command {
	var dryRun, force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a " + configFileName + " with the current settings",
		Long: `Create a config file populated with the settings currently in effect
(defaults, environment and any existing config) so it can be edited by hand.

path defaults to ./` + configFileName + `. An existing file is only replaced with --force.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := renderSettings(currentSettings(v))
			if err != nil {
				return err
			}

			if dryRun {
				_, err := stdout.Write(data)
				return err
			}

			path := configFileName
			if len(args) > 0 {
				path = args[0]
			}

			if _, err := os.Stat(path); err == nil && !force {
				return errors.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := os.WriteFile(path, data, 0o644); err != nil {
				return errors.Errorf("writing %s: %w", path, err)
			}

			_, _ = fmt.Fprintf(stderr, "wrote config to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the config instead of writing it")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
