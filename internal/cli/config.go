package cli

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/tessro/tandem/internal/config"
	tandemerrors "github.com/tessro/tandem/internal/errors"
)

const configHeader = "# Tandem configuration\n\n"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for viewing and editing tandem configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration, including defaults and environment overrides.`,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE:  runConfigPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long:  `Open the configuration file in your default editor.`,
	RunE:  runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long:  `Create a new configuration file with default values.`,
	RunE:  runConfigInit,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value. Keys are section.field as in the file.

Examples:
  tandem config set backend.graphql_url https://api.example.com/graphql
  tandem config set device.name "Kitchen laptop"
  tandem config set playback.crossfade_duration 8s
  tandem config set playback.default_volume 60`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if jsonOut {
		return printJSON(os.Stdout, cfg)
	}
	encoder := toml.NewEncoder(os.Stdout)
	encoder.Indent = "  "
	return encoder.Encode(cfg)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println(configPath())
	return nil
}

// configPath is the file in use, or where a new one would be written.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if p := config.FindConfigFile(); p != "" {
		return p
	}
	return config.DefaultPath()
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	path := configPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s; run 'tandem config init' first", tandemerrors.ErrConfigNotFound, path)
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		for _, e := range []string{"nano", "vim", "vi", "notepad"} {
			if _, err := exec.LookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found. Set EDITOR environment variable")
	}

	editorCmd := exec.Command(editor, path)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	return editorCmd.Run()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath()
	if err := writeDefaultConfig(path); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(os.Stdout, map[string]string{"status": "created", "path": path})
	}
	fmt.Printf("Created config file: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set backend.graphql_url, backend.auth_url and backend.user_pool_client_id")
	fmt.Println("  2. Run 'tandem auth login' to sign in")
	return nil
}

// writeDefaultConfig creates path with default values. It refuses to
// overwrite an existing file.
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	encoder := toml.NewEncoder(&buf)
	encoder.Indent = "  "
	if err := encoder.Encode(config.Default()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0600)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	if err := setConfigValue(configPath(), key, value); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(os.Stdout, map[string]string{"status": "updated", "key": key, "value": value})
	}
	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

// setConfigValue sets section.field in the file at path, creating the file
// if needed. The result must still load and validate before it is written.
func setConfigValue(path, key, value string) error {
	section, field, ok := strings.Cut(key, ".")
	if !ok || section == "" || field == "" || strings.Contains(field, ".") {
		return fmt.Errorf("invalid key %q. Use 'section.field' (e.g., device.name)", key)
	}

	raw := map[string]interface{}{}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &raw); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	sectionMap, ok := raw[section].(map[string]interface{})
	if !ok {
		sectionMap = map[string]interface{}{}
		raw[section] = sectionMap
	}
	sectionMap[field] = typedValue(value)

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	encoder := toml.NewEncoder(&buf)
	encoder.Indent = "  "
	if err := encoder.Encode(raw); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	var check config.Config
	md, err := toml.Decode(buf.String(), &check)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", tandemerrors.ErrInvalidConfig, key, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown key %s", tandemerrors.ErrInvalidConfig, undecoded[0])
	}
	check.ApplyDefaults()
	if err := check.Validate(); err != nil {
		return fmt.Errorf("%w: %v", tandemerrors.ErrInvalidConfig, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0600)
}

// typedValue picks the TOML type for a command-line value. Durations stay
// strings.
func typedValue(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
