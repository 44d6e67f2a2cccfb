package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/beam-cloud/kbpicker/pkg/common"
	"github.com/beam-cloud/kbpicker/pkg/types"
)

// Build information (injected at compile time via ldflags)
var Version = "dev"

var (
	configPath  string
	gatewayURL  string
	jsonOutput  bool
	yamlOutput  bool
	verboseLogs bool

	appConfig types.AppConfig
)

// Custom help template with styled output
var helpTemplate = `{{with .Long}}{{. | trim}}

{{end}}{{if .HasAvailableSubCommands}}` + `{{.CommandPath}}` + ` ` + `<command>` + `

{{end}}{{if .HasAvailableSubCommands}}Commands:
{{range .Commands}}{{if .IsAvailableCommand}}  {{rpad .Name .NamePadding }}  {{.Short}}
{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}
Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}
`

var rootCmd = &cobra.Command{
	Use:   "kbpicker",
	Short: "Pick Google Drive files for a knowledge base",
	Long: lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true).Render("kbpicker") + ` - Pick Google Drive files for a knowledge base

Browse the Drive connection behind the picker gateway, choose files and
folders to index, and remove indexed items from the knowledge base.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput && yamlOutput {
			return fmt.Errorf("--json and --yaml are mutually exclusive")
		}
		switch {
		case jsonOutput:
			SetOutputFormat(FormatJSON)
		case yamlOutput:
			SetOutputFormat(FormatYAML)
		default:
			SetOutputFormat(FormatText)
		}

		configureLogging()

		configManager, err := common.NewConfigManagerFromFile[types.AppConfig](configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		appConfig = configManager.GetConfig()
		if gatewayURL != "" {
			appConfig.Client.GatewayURL = gatewayURL
		}
		return nil
	},
}

func init() {
	// Set custom templates
	rootCmd.SetHelpTemplate(helpTemplate)

	// Version template
	rootCmd.SetVersionTemplate(fmt.Sprintf("  %s version %s\n", BrandStyle.Render("kbpicker"), Version))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv(common.ConfigPathEnv), "Config file (yaml or json)")
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "gateway", "", "Gateway HTTP address (overrides "+types.EnvVarFor("client.gatewayUrl")+")")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&yamlOutput, "yaml", false, "Output in YAML format")
	rootCmd.PersistentFlags().BoolVarP(&verboseLogs, "verbose", "v", false, "Log requests to stderr")

	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(deindexCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(cacheCmd)
}

// Execute runs the CLI
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !IsStructuredOutput() {
		PrintFormattedError("Command failed", err)
	}
	return err
}

// configureLogging keeps the CLI quiet unless asked; logs go to stderr so
// structured output on stdout stays parseable
func configureLogging() {
	level := zerolog.WarnLevel
	if verboseLogs {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
}
