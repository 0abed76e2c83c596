package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/entrhq/pagetrail/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every settings section",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := map[string]map[string]any{}
		for _, section := range config.Global().GetSections() {
			data := section.Data()
			if _, ok := data["api_key"]; ok && data["api_key"] != "" {
				data["api_key"] = "********"
			}
			out[section.ID()] = data
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(out)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set SECTION.KEY VALUE",
	Short: "Change one setting",
	Long: `Change one setting and save it.

VALUE is parsed as YAML, so booleans, numbers and lists work:
  pagetrail config set tracking.tracking_on false
  pagetrail config set tracking.exclude_patterns '["*.bank.com*"]'
  pagetrail config set llm.model gpt-4o-mini`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sectionID, key, err := splitSettingKey(args[0])
		if err != nil {
			return err
		}
		value, err := parseSettingValue(args[1])
		if err != nil {
			return err
		}
		if err := applySetting(config.Global(), sectionID, key, value); err != nil {
			return err
		}
		cmd.Printf("%s.%s updated\n", sectionID, key)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		fs, ok := config.Global().Store().(*config.FileStore)
		if !ok {
			return fmt.Errorf("settings are not file backed")
		}
		cmd.Println(fs.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configPathCmd)
}

func splitSettingKey(arg string) (section, key string, err error) {
	section, key, ok := strings.Cut(arg, ".")
	if !ok || section == "" || key == "" {
		return "", "", fmt.Errorf("expected SECTION.KEY, got %q", arg)
	}
	return section, key, nil
}

// parseSettingValue decodes a YAML scalar or flow sequence.
func parseSettingValue(raw string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", raw, err)
	}
	if v == nil {
		return "", nil
	}
	return v, nil
}

// applySetting updates one key, validates the section and saves everything.
func applySetting(m *config.Manager, sectionID, key string, value any) error {
	section, ok := m.GetSection(sectionID)
	if !ok {
		ids := make([]string, 0)
		for _, s := range m.GetSections() {
			ids = append(ids, s.ID())
		}
		sort.Strings(ids)
		return fmt.Errorf("unknown section %q (have %s)", sectionID, strings.Join(ids, ", "))
	}
	if _, known := section.Data()[key]; !known {
		return fmt.Errorf("unknown key %q in section %s", key, sectionID)
	}

	previous := section.Data()
	if err := section.SetData(map[string]any{key: value}); err != nil {
		_ = section.SetData(previous)
		return err
	}
	if err := m.SaveAll(); err != nil {
		_ = section.SetData(previous)
		return err
	}
	return nil
}
