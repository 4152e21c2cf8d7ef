package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to chartembed! Let's connect to Superset.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Superset location.
	uriPrompt := promptui.Prompt{
		Label:    "Superset base URL",
		Default:  cfg.Superset.URI,
		Validate: validateURL,
	}
	uri, err := uriPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("superset uri: %w", err)
	}
	cfg.Superset.URI = uri

	// 2. Refresh token.
	tokenPrompt := promptui.Prompt{
		Label: "Superset refresh token",
		Mask:  '*',
	}
	token, err := tokenPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	cfg.Superset.RefreshToken = token

	// 3. Database id.
	dbPrompt := promptui.Prompt{
		Label:    "Superset database id",
		Default:  strconv.FormatInt(cfg.Superset.DatabaseID, 10),
		Validate: validatePositiveInt,
	}
	dbStr, err := dbPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("database id: %w", err)
	}
	cfg.Superset.DatabaseID, _ = strconv.ParseInt(dbStr, 10, 64)

	// 4. Markup escaping.
	escapePrompt := promptui.Select{
		Label: "Chart URLs in embed snippets",
		Items: []string{
			"verbatim: chart list comes from a trusted Superset",
			"escaped: HTML-escape chart URLs",
		},
	}
	escapeIdx, _, err := escapePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("escape selection: %w", err)
	}
	cfg.EscapeMarkup = escapeIdx == 1

	// 5. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Directory for the chart cache database",
		Default: cfg.DataDir,
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	cfg.DataDir = strings.TrimSpace(dataDir)

	// 6. Importing files without a dataset.
	importPrompt := promptui.Prompt{
		Label:     "Import data files that have no Superset dataset",
		IsConfirm: true,
	}
	if _, err := importPrompt.Run(); err == nil {
		cfg.Import.Enabled = true
		pathPrompt := promptui.Prompt{
			Label:   "SQLite file registered in Superset",
			Default: filepath.Join(cfg.DataDir, "superset-data.db"),
		}
		dbPath, err := pathPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("import database path: %w", err)
		}
		cfg.Import.DatabasePath = strings.TrimSpace(dbPath)
		// SQLite exposes a single schema.
		cfg.Superset.Schema = "main"
	} else if !errors.Is(err, promptui.ErrAbort) {
		return nil, fmt.Errorf("import confirmation: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("enter an absolute URL such as http://localhost:8088/")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}
