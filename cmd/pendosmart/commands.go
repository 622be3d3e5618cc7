package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/projectcraftbeer/PendoSmart/internal/config"
)

// --- keys ---

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage Smartling API keys",
}

var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show configured Smartling keys (secret masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/admin/smartling-keys")
		if err != nil {
			return err
		}

		var keys struct {
			UserID    string `json:"user_id"`
			HasSecret bool   `json:"has_secret"`
			AccountID string `json:"account_id"`
			ProjectID string `json:"project_id"`
			Locale    string `json:"locale"`
		}
		if err := decodeJSON(resp, &keys); err != nil {
			return err
		}

		if keys.UserID == "" {
			printWarning("No Smartling keys configured. Use 'pendosmart keys set'.")
			return nil
		}

		printStatus("User ID", "%s", keys.UserID)
		secret := "not set"
		if keys.HasSecret {
			secret = "set (hidden)"
		}
		printStatus("Secret", "%s", secret)
		printStatus("Account", "%s", keys.AccountID)
		printStatus("Project", "%s", keys.ProjectID)
		printStatus("Locale", "%s", keys.Locale)
		return nil
	},
}

var keysSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save Smartling API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user-id")
		secret, _ := cmd.Flags().GetString("secret")
		accountID, _ := cmd.Flags().GetString("account-id")
		projectID, _ := cmd.Flags().GetString("project-id")
		locale, _ := cmd.Flags().GetString("locale")

		if userID == "" || secret == "" {
			return fmt.Errorf("--user-id and --secret are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]string{
			"user_id":    userID,
			"secret":     secret,
			"account_id": accountID,
			"project_id": projectID,
			"locale":     locale,
		}
		resp, err := client.post(cmd.Context(), "/admin/smartling-keys", body)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Smartling keys saved")
		return nil
	},
}

func init() {
	keysSetCmd.Flags().String("user-id", "", "Smartling user identifier")
	keysSetCmd.Flags().String("secret", "", "Smartling user secret")
	keysSetCmd.Flags().String("account-id", "", "Smartling account id")
	keysSetCmd.Flags().String("project-id", "", "default project id")
	keysSetCmd.Flags().String("locale", "", "default target locale (e.g. ja-JP)")

	keysCmd.AddCommand(keysShowCmd)
	keysCmd.AddCommand(keysSetCmd)
}

// --- auth ---

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Verify the stored Smartling keys against the platform",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/admin/smartling-auth", nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Authenticated with Smartling")
		return nil
	},
}

// --- sync ---

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync data from Smartling",
}

func scopeFlags(cmd *cobra.Command) {
	cmd.Flags().String("project", "", "project id (default: from stored keys)")
	cmd.Flags().String("locale", "", "target locale (default: from stored keys)")
}

func scopeBody(cmd *cobra.Command) map[string]string {
	projectID, _ := cmd.Flags().GetString("project")
	locale, _ := cmd.Flags().GetString("locale")

	body := map[string]string{}
	if projectID != "" {
		body["project_id"] = projectID
	}
	if locale != "" {
		body["locale"] = locale
	}
	return body
}

var syncJobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Discover translation jobs and their files",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Discovering job files...")
		resp, err := client.post(cmd.Context(), "/admin/smartling-job-files", scopeBody(cmd))
		if err != nil {
			return err
		}

		var result struct {
			Files int `json:"files"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Discovered %d job files", result.Files)
		return nil
	},
}

var syncStringsCmd = &cobra.Command{
	Use:   "strings",
	Short: "Resync source strings from discovered job files",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		for k, v := range scopeBody(cmd) {
			q.Set(k, v)
		}

		printStep("Syncing source strings...")
		resp, err := client.get(cmd.Context(), "/admin/smartling-strings?"+q.Encode())
		if err != nil {
			return err
		}

		var result struct {
			Total int `json:"total"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Synced %d source strings", result.Total)
		return nil
	},
}

var syncTranslationsCmd = &cobra.Command{
	Use:   "translations",
	Short: "Fetch translations and merge them into the review table",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Fetching translations...")
		resp, err := client.post(cmd.Context(), "/admin/smartling-fetch-translations", scopeBody(cmd))
		if err != nil {
			return err
		}

		var result struct {
			Merged int `json:"merged"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Merged %d translations", result.Merged)
		return nil
	},
}

func init() {
	scopeFlags(syncJobsCmd)
	scopeFlags(syncStringsCmd)
	scopeFlags(syncTranslationsCmd)

	syncCmd.AddCommand(syncJobsCmd)
	syncCmd.AddCommand(syncStringsCmd)
	syncCmd.AddCommand(syncTranslationsCmd)
}

// --- translations ---

var translationsCmd = &cobra.Command{
	Use:   "translations",
	Short: "Browse and curate the translation review table",
}

var translationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List translations from the review table",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		flagged, _ := cmd.Flags().GetBool("flagged")
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")

		q := url.Values{}
		for k, v := range scopeBody(cmd) {
			q.Set(k, v)
		}
		if status != "" {
			q.Set("status", status)
		}
		if flagged {
			q.Set("flag", "1")
		}
		if search != "" {
			q.Set("search", search)
		}
		q.Set("per_page", fmt.Sprintf("%d", limit))

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/admin/smartling-translations-table?"+q.Encode())
		if err != nil {
			return err
		}

		var table struct {
			Items []struct {
				ID          int64    `json:"id"`
				SourceText  string   `json:"source_text"`
				Translation string   `json:"translation"`
				Status      string   `json:"status"`
				Confidence  *float64 `json:"confidence"`
				Flag        int      `json:"flag"`
			} `json:"items"`
			Total int `json:"total"`
		}
		if err := decodeJSON(resp, &table); err != nil {
			return err
		}

		if len(table.Items) == 0 {
			fmt.Println("No translations found.")
			return nil
		}

		for _, row := range table.Items {
			header := fmt.Sprintf("#%d [%s]", row.ID, row.Status)
			if row.Flag == 1 {
				header += " ⚑"
			}
			if row.Confidence != nil {
				header += fmt.Sprintf(" score %.0f", *row.Confidence)
			}
			fmt.Printf("\n%s\n", colorize(ansiBold, header))
			fmt.Printf("  %s\n", truncate(row.SourceText, 120))
			fmt.Printf("  %s\n", colorize(ansiCyan, truncate(row.Translation, 120)))
		}
		fmt.Printf("\n%d of %d shown\n", len(table.Items), table.Total)
		return nil
	},
}

var translationsFlagMatchingCmd = &cobra.Command{
	Use:   "flag-matching",
	Short: "Flag rows whose translation equals the source text",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		for k, v := range scopeBody(cmd) {
			q.Set(k, v)
		}

		resp, err := client.post(cmd.Context(), "/admin/flag-matching-strings?"+q.Encode(), nil)
		if err != nil {
			return err
		}

		var result struct {
			Flagged int64 `json:"flagged"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Flagged %d matching rows", result.Flagged)
		return nil
	},
}

var translationsCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Mark every pending translation as completed",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will complete ALL pending translations. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		// The endpoint completes by id, so collect the pending ids first.
		var ids []int64
		for page := 1; ; page++ {
			q := url.Values{}
			for k, v := range scopeBody(cmd) {
				q.Set(k, v)
			}
			q.Set("status", "pending")
			q.Set("per_page", "500")
			q.Set("page", fmt.Sprintf("%d", page))

			resp, err := client.get(cmd.Context(), "/admin/smartling-translations-table?"+q.Encode())
			if err != nil {
				return err
			}
			var table struct {
				Items []struct {
					ID int64 `json:"id"`
				} `json:"items"`
			}
			if err := decodeJSON(resp, &table); err != nil {
				return err
			}
			for _, row := range table.Items {
				ids = append(ids, row.ID)
			}
			if len(table.Items) < 500 {
				break
			}
		}
		if len(ids) == 0 {
			fmt.Println("No pending translations.")
			return nil
		}

		resp, err := client.post(cmd.Context(), "/admin/smartling-bulk-complete", map[string]any{"ids": ids})
		if err != nil {
			return err
		}

		var result struct {
			Updated int64 `json:"updated"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Completed %d translations", result.Updated)
		return nil
	},
}

func init() {
	scopeFlags(translationsListCmd)
	translationsListCmd.Flags().String("status", "", "filter by status (pending or completed)")
	translationsListCmd.Flags().Bool("flagged", false, "only show flagged rows")
	translationsListCmd.Flags().String("search", "", "free-text search over source and translation")
	translationsListCmd.Flags().Int("limit", 20, "maximum number of rows to list")

	scopeFlags(translationsFlagMatchingCmd)

	scopeFlags(translationsCompleteCmd)
	translationsCompleteCmd.Flags().Bool("confirm", false, "confirm the bulk completion")

	translationsCmd.AddCommand(translationsListCmd)
	translationsCmd.AddCommand(translationsFlagMatchingCmd)
	translationsCmd.AddCommand(translationsCompleteCmd)
}

// --- evaluate ---

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score a translation with the local model",
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		translation, _ := cmd.Flags().GetString("translation")
		locale, _ := cmd.Flags().GetString("locale")

		if source == "" || translation == "" {
			return fmt.Errorf("--source and --translation are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]string{
			"source":      source,
			"translation": translation,
		}
		if locale != "" {
			body["locale"] = locale
		}

		resp, err := client.post(cmd.Context(), "/evaluate-translation", body)
		if err != nil {
			return err
		}

		var result struct {
			Score  float64 `json:"score"`
			Reason string  `json:"reason"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printStatus("Score", "%.0f", result.Score)
		printStatus("Reason", "%s", result.Reason)
		return nil
	},
}

func init() {
	evaluateCmd.Flags().String("source", "", "source text")
	evaluateCmd.Flags().String("translation", "", "translated text")
	evaluateCmd.Flags().String("locale", "", "target locale (default: from stored keys)")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(ansiBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
