package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/huh"
	"github.com/git-captain/git-captain/internal/config"
	"github.com/git-captain/git-captain/internal/misc"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	defaultPrivateKeyPath  = "./certs/theKey.key"
	defaultCertificatePath = "./certs/theCert.cert"
	oauthAppsURL           = "https://github.com/settings/developers"
)

// SetupOptions controls the interactive setup wizard.
type SetupOptions struct {
	// EnvPath is the .env file to write.
	EnvPath string

	// Accessible renders the form as plain prompts for screen readers and dumb terminals.
	Accessible bool
}

// setupAnswers holds the wizard's fields as typed by the user.
type setupAnswers struct {
	ClientID        string
	ClientSecret    string
	OrgName         string
	Endpoint        string
	Port            string
	PrivateKeyPath  string
	CertificatePath string
	TimeoutMinutes  string
	Environment     string
}

func defaultAnswers() *setupAnswers {
	return &setupAnswers{
		Endpoint:        config.DefaultGitPortEndpoint,
		Port:            strconv.Itoa(config.DefaultPort),
		PrivateKeyPath:  defaultPrivateKeyPath,
		CertificatePath: defaultCertificatePath,
		TimeoutMinutes:  strconv.Itoa(config.DefaultClientTimeoutMinutes),
		Environment:     config.EnvironmentDevelopment,
	}
}

// DoSetup asks for the GitHub OAuth application and server settings and
// writes them to opts.EnvPath. An existing file is only replaced after
// confirmation.
func DoSetup(opts SetupOptions) error {
	envPath := strings.TrimSpace(opts.EnvPath)
	if envPath == "" {
		envPath = ".env"
	}
	fmt.Println(bannerStyle.Render("Git-Captain Setup"))
	fmt.Println(hintStyle.Render("Create a GitHub OAuth App first: " + oauthAppsURL))
	fmt.Println()

	answers := defaultAnswers()
	form := buildSetupForm(answers).WithAccessible(opts.Accessible)
	if errForm := form.Run(); errForm != nil {
		if errors.Is(errForm, huh.ErrUserAborted) {
			fmt.Println(hintStyle.Render("Setup cancelled."))
			return nil
		}
		return fmt.Errorf("setup form: %w", errForm)
	}

	if _, errStat := os.Stat(envPath); errStat == nil {
		overwrite := false
		confirm := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(envPath + " already exists. Overwrite?").
				Affirmative("Yes").
				Negative("No").
				Value(&overwrite),
		)).WithAccessible(opts.Accessible)
		if errConfirm := confirm.Run(); errConfirm != nil && !errors.Is(errConfirm, huh.ErrUserAborted) {
			return fmt.Errorf("confirm overwrite: %w", errConfirm)
		}
		if !overwrite {
			fmt.Println(hintStyle.Render("Setup cancelled. Existing " + envPath + " preserved."))
			return nil
		}
	}

	if errWrite := writeEnvFile(envPath, answers.envValues()); errWrite != nil {
		fmt.Println(errorStyle.Render("Failed to save configuration: " + errWrite.Error()))
		return errWrite
	}
	fmt.Println(successStyle.Render("Configuration saved to " + envPath))
	fmt.Println(summaryStyle.Render(answers.summary()))

	callback := callbackURL(answers.Endpoint)
	fmt.Println("Authorization callback URL for the OAuth App: " + valueStyle.Render(callback))
	if errCopy := clipboard.WriteAll(callback); errCopy != nil {
		log.Debugf("clipboard unavailable: %v", errCopy)
	} else {
		fmt.Println(hintStyle.Render("Copied to clipboard"))
	}

	if missing := missingCertificates(answers.PrivateKeyPath, answers.CertificatePath); len(missing) > 0 {
		fmt.Println(warningStyle.Render("Warning: SSL certificate files not found: " + strings.Join(missing, ", ")))
		fmt.Println(hintStyle.Render("Place your certificates at these paths or the server will use plain HTTP."))
	}
	fmt.Println(hintStyle.Render("Start Git-Captain with: git-captain"))
	return nil
}

func buildSetupForm(answers *setupAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("GitHub Client ID").
				Value(&answers.ClientID).
				Validate(validateRequired("client ID")),
			huh.NewInput().
				Title("GitHub Client Secret").
				EchoMode(huh.EchoModePassword).
				Value(&answers.ClientSecret).
				Validate(validateRequired("client secret")),
			huh.NewInput().
				Title("GitHub Organization/Username").
				Value(&answers.OrgName).
				Validate(validateRequired("organization")),
		).Title("GitHub OAuth Configuration"),
		huh.NewGroup(
			huh.NewInput().
				Title("Server URL").
				Description("Public origin of this server, e.g. https://your-server.com").
				Value(&answers.Endpoint).
				Validate(validateEndpoint),
			huh.NewInput().
				Title("Port").
				Value(&answers.Port).
				Validate(validatePort),
		).Title("Server Configuration"),
		huh.NewGroup(
			huh.NewInput().
				Title("Private Key Path").
				Value(&answers.PrivateKeyPath),
			huh.NewInput().
				Title("Certificate Path").
				Value(&answers.CertificatePath),
		).Title("SSL Certificate Configuration"),
		huh.NewGroup(
			huh.NewInput().
				Title("Session timeout in minutes").
				Value(&answers.TimeoutMinutes).
				Validate(validatePositiveInt),
			huh.NewSelect[string]().
				Title("Environment").
				Options(
					huh.NewOption("Development", config.EnvironmentDevelopment),
					huh.NewOption("Production", config.EnvironmentProduction),
				).
				Value(&answers.Environment),
		).Title("Optional Settings"),
	).WithTheme(huh.ThemeCatppuccin())
}

// envValues maps the answers to the variable names config.ApplyEnvOverrides reads.
func (a *setupAnswers) envValues() map[string]string {
	values := map[string]string{
		"client_id":         strings.TrimSpace(a.ClientID),
		"client_secret":     strings.TrimSpace(a.ClientSecret),
		"GITHUB_ORG_NAME":   strings.TrimSpace(a.OrgName),
		"GIT_PORT_ENDPOINT": strings.TrimRight(strings.TrimSpace(a.Endpoint), "/"),
		"PORT":              strings.TrimSpace(a.Port),
		"privateKeyPath":    strings.TrimSpace(a.PrivateKeyPath),
		"certificatePath":   strings.TrimSpace(a.CertificatePath),
		"TIMEOUT_MINUTES":   strings.TrimSpace(a.TimeoutMinutes),
		"NODE_ENV":          strings.TrimSpace(a.Environment),
	}
	for key, value := range values {
		if value == "" {
			delete(values, key)
		}
	}
	return values
}

func (a *setupAnswers) summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Organization: %s\n", a.OrgName)
	fmt.Fprintf(&sb, "Server URL:   %s\n", a.Endpoint)
	fmt.Fprintf(&sb, "Port:         %s\n", a.Port)
	fmt.Fprintf(&sb, "Environment:  %s", a.Environment)
	return sb.String()
}

func writeEnvFile(path string, values map[string]string) error {
	content, errMarshal := godotenv.Marshal(values)
	if errMarshal != nil {
		return fmt.Errorf("encode env file: %w", errMarshal)
	}
	return misc.WriteFileAtomic(path, strings.NewReader(content+"\n"), 0o600)
}

func callbackURL(endpoint string) string {
	return strings.TrimRight(strings.TrimSpace(endpoint), "/") + "/gitCaptain/getToken"
}

func missingCertificates(paths ...string) []string {
	var missing []string
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, errStat := os.Stat(path); errStat != nil {
			missing = append(missing, path)
		}
	}
	return missing
}

func validateRequired(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
		return nil
	}
}

func validateEndpoint(s string) error {
	u, errParse := url.Parse(strings.TrimSpace(s))
	if errParse != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("enter a URL such as https://your-server.com")
	}
	return nil
}

func validatePort(s string) error {
	port, errAtoi := strconv.Atoi(strings.TrimSpace(s))
	if errAtoi != nil || port < 1 || port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, errAtoi := strconv.Atoi(strings.TrimSpace(s))
	if errAtoi != nil || n <= 0 {
		return errors.New("must be a positive number")
	}
	return nil
}
