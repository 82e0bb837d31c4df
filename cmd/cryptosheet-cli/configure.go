package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/sagarc03/cryptosheet/clientcli"
	"github.com/spf13/cobra"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Manage gateway profiles",
	Long: `Manage gateway profiles in the configuration file.

Profiles save connection settings for more than one gateway. Switch
between them with --profile or CRYPTOSHEET_PROFILE.

Configuration is stored in ~/.cryptosheet/config.yaml`,
}

var configureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configured profiles",
	Long: `List all profiles configured in the config file.

The default profile is marked with an asterisk (*).`,
	RunE: runConfigureList,
}

var configureAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a profile",
	Long: `Add or update a profile.

Without flags you are prompted for the endpoint URL, the shared secret
(leave it empty for a gateway in open mode) and whether the profile
becomes the default. Passing --endpoint skips the prompts.

The gateway's /health endpoint is checked before saving.

Examples:
  cryptosheet-cli configure add local
  cryptosheet-cli configure add prod --endpoint https://sheet.example.com --secret "$SECRET" --default`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigureAdd,
}

var configureRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a profile",
	Args:    cobra.ExactArgs(1),
	RunE:    runConfigureRemove,
}

var configureSetDefaultCmd = &cobra.Command{
	Use:   "set-default <name>",
	Short: "Set the default profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigureSetDefault,
}

var configureShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show profile details",
	Long: `Show details for a profile.

If no name is provided, shows the default profile.
Secrets are masked; use --show-secrets to reveal them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigureShow,
}

var (
	showSecrets bool

	addEndpoint  string
	addSecret    string
	addDefault   bool
	addSkipCheck bool
	removeYes    bool
)

func init() {
	configureCmd.AddCommand(configureListCmd)
	configureCmd.AddCommand(configureAddCmd)
	configureCmd.AddCommand(configureRemoveCmd)
	configureCmd.AddCommand(configureSetDefaultCmd)
	configureCmd.AddCommand(configureShowCmd)

	configureShowCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show secret values")
	configureListCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show secret values")

	// configure add has its own --endpoint and --secret, shadowing the
	// persistent connection flags.
	configureAddCmd.Flags().StringVar(&addEndpoint, "endpoint", "", "endpoint URL (skips prompts)")
	configureAddCmd.Flags().StringVar(&addSecret, "secret", "", "shared secret")
	configureAddCmd.Flags().BoolVar(&addDefault, "default", false, "make this the default profile")
	configureAddCmd.Flags().BoolVar(&addSkipCheck, "skip-check", false, "save without checking the gateway")

	configureRemoveCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "do not ask for confirmation")
}

// loadProfiles reads the profile file. A missing file yields an empty set
// when allowMissing is true.
func loadProfiles(allowMissing bool) (*clientcli.ConfigFile, string, error) {
	path := getConfigPath()

	cfg, err := clientcli.LoadConfigFile(path)
	switch {
	case err == nil:
		return cfg, path, nil
	case allowMissing && errors.Is(err, os.ErrNotExist):
		return &clientcli.ConfigFile{}, path, nil
	default:
		return nil, path, fmt.Errorf("load config: %w", err)
	}
}

func runConfigureList(_ *cobra.Command, _ []string) error {
	cfg, _, err := loadProfiles(true)
	if err != nil {
		return err
	}

	if len(cfg.Profiles) == 0 {
		fmt.Println("No profiles configured.")
		fmt.Println("Run 'cryptosheet-cli configure add <name>' to create one.")
		return nil
	}

	def, err := cfg.GetDefaultProfile()
	if err != nil {
		return err
	}

	return getFormatter().FormatProfileList(os.Stdout, cfg.Profiles, def.Name, showSecrets)
}

// profileInput is what configure add collects before saving.
type profileInput struct {
	Endpoint string
	Secret   string
	Default  bool
}

func runConfigureAdd(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg, path, err := loadProfiles(true)
	if err != nil {
		return err
	}
	existing, _ := cfg.GetProfile(name)

	var in profileInput
	if addEndpoint != "" {
		if err := validateEndpoint(addEndpoint); err != nil {
			return err
		}
		in = profileInput{Endpoint: addEndpoint, Secret: addSecret, Default: addDefault}
	} else {
		ok, err := promptProfile(name, existing != nil, len(cfg.Profiles) == 0, &in)
		if err != nil || !ok {
			return err
		}
	}

	if !addSkipCheck {
		fmt.Print("Checking gateway... ")
		if connErr := testServerConnection(cmd.Context(), in.Endpoint); connErr != nil {
			fmt.Println("FAILED")
			fmt.Printf("Warning: %v\n", connErr)
			if addEndpoint != "" || !confirm("Save profile anyway") {
				fmt.Println("Cancelled.")
				return nil
			}
		} else {
			fmt.Println("OK")
		}
	}

	profile := clientcli.Profile{
		Name:     name,
		Endpoint: strings.TrimSuffix(in.Endpoint, "/"),
		Secret:   in.Secret,
	}
	if existing != nil {
		err = cfg.UpdateProfile(profile)
	} else {
		err = cfg.AddProfile(profile)
	}
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	if in.Default || len(cfg.Profiles) == 1 {
		if err := cfg.SetDefault(name); err != nil {
			return err
		}
	}

	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	verb := "added"
	if existing != nil {
		verb = "updated"
	}
	fmt.Printf("Profile '%s' %s.\n", name, verb)
	return nil
}

// promptProfile fills in from interactive prompts. It returns false when
// the user backs out.
func promptProfile(name string, exists, first bool, in *profileInput) (bool, error) {
	if exists && !confirm(fmt.Sprintf("Profile '%s' already exists. Update it", name)) {
		fmt.Println("Cancelled.")
		return false, nil
	}

	endpointPrompt := promptui.Prompt{
		Label:    "Endpoint URL",
		Default:  clientcli.DefaultEndpoint,
		Validate: validateEndpoint,
	}
	endpointURL, err := endpointPrompt.Run()
	if err != nil {
		return false, handlePromptError(err)
	}

	secretPrompt := promptui.Prompt{
		Label: "Secret",
		Mask:  '*',
	}
	secretVal, err := secretPrompt.Run()
	if err != nil {
		return false, handlePromptError(err)
	}

	*in = profileInput{
		Endpoint: endpointURL,
		Secret:   secretVal,
		// The first profile is always the default.
		Default: first || confirm("Set as default profile"),
	}
	return true, nil
}

func validateEndpoint(input string) error {
	if input == "" {
		return errors.New("endpoint URL is required")
	}
	parsed, err := url.Parse(input)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("URL must start with http:// or https://")
	}
	return nil
}

func confirm(label string) bool {
	prompt := promptui.Prompt{Label: label, IsConfirm: true}
	_, err := prompt.Run()
	return err == nil
}

func runConfigureRemove(_ *cobra.Command, args []string) error {
	name := args[0]

	cfg, path, err := loadProfiles(false)
	if err != nil {
		return err
	}

	if err := cfg.RemoveProfile(name); err != nil {
		return err
	}

	if !removeYes && !confirm(fmt.Sprintf("Remove profile '%s'", name)) {
		fmt.Println("Cancelled.")
		return nil
	}

	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Profile '%s' removed.\n", name)
	return nil
}

func runConfigureSetDefault(_ *cobra.Command, args []string) error {
	cfg, path, err := loadProfiles(false)
	if err != nil {
		return err
	}

	if err := cfg.SetDefault(args[0]); err != nil {
		return err
	}

	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Default profile set to '%s'.\n", args[0])
	return nil
}

func runConfigureShow(_ *cobra.Command, args []string) error {
	cfg, _, err := loadProfiles(false)
	if err != nil {
		return err
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	p, err := cfg.GetProfile(name)
	if err != nil {
		return err
	}

	def, err := cfg.GetDefaultProfile()
	if err != nil {
		return err
	}

	return getFormatter().FormatProfileShow(os.Stdout, *p, p.Name == def.Name, showSecrets)
}

// testServerConnection checks the gateway's health endpoint.
func testServerConnection(ctx context.Context, endpointURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := clientcli.New(&clientcli.Config{Endpoint: endpointURL}, clientcli.WithTimeout(5*time.Second))
	if err != nil {
		return err
	}
	return client.Health(ctx)
}

// handlePromptError handles promptui errors.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("\nCancelled.")
		os.Exit(0)
	}
	if errors.Is(err, promptui.ErrAbort) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}
