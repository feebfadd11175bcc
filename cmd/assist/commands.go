package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/huddleplay/assist/internal/config"
)

// --- suggest ---

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest a reply for the current conversation",
	Long: `Suggest a reply grounded in past huddles and ingested documents.

Examples:
  assist suggest --screenshot "Prospect: what does onboarding look like?" --draft "takes about a week"
  assist suggest --screenshot-file ./convo.txt --regenerate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		screenshot, _ := cmd.Flags().GetString("screenshot")
		screenshotFile, _ := cmd.Flags().GetString("screenshot-file")
		draft, _ := cmd.Flags().GetString("draft")
		principles, _ := cmd.Flags().GetString("principles")
		regenerate, _ := cmd.Flags().GetBool("regenerate")

		if screenshotFile != "" {
			data, err := os.ReadFile(screenshotFile)
			if err != nil {
				return fmt.Errorf("reading screenshot file: %w", err)
			}
			screenshot = string(data)
		}
		if screenshot == "" && draft == "" {
			return fmt.Errorf("at least one of --screenshot or --draft is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/suggest", map[string]any{
			"screenshot_text": screenshot,
			"user_draft":      draft,
			"principles":      principles,
			"regenerate":      regenerate,
		})
		if err != nil {
			return err
		}

		var result struct {
			Reply         string `json:"reply"`
			InteractionID string `json:"interaction_id"`
			DocSources    []struct {
				Source string  `json:"source"`
				Score  float32 `json:"score"`
			} `json:"doc_sources"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Reply)
		for _, src := range result.DocSources {
			fmt.Fprintf(os.Stderr, "  %s %s [%.3f]\n", colorize(colorCyan, "source:"), src.Source, src.Score)
		}
		fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(colorBold, "id:"), result.InteractionID)
		return nil
	},
}

func init() {
	suggestCmd.Flags().String("screenshot", "", "visible conversation text")
	suggestCmd.Flags().String("screenshot-file", "", "file containing the conversation text")
	suggestCmd.Flags().String("draft", "", "rough draft or idea for the reply")
	suggestCmd.Flags().String("principles", "", "extra guidance for this reply")
	suggestCmd.Flags().Bool("regenerate", false, "ask for a materially different suggestion")
}

// --- tone ---

var toneCmd = &cobra.Command{
	Use:   "tone <tone>",
	Short: "Rewrite a reply in a different tone",
	Long: `Rewrite a reply in a different tone. The reply is read from --reply or stdin.

Example:
  assist suggest --screenshot "..." | assist tone Friendly`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reply, _ := cmd.Flags().GetString("reply")
		if reply == "" {
			data, err := readStdin()
			if err != nil {
				return err
			}
			reply = strings.TrimSpace(data)
		}
		if reply == "" {
			return fmt.Errorf("no reply given: pass --reply or pipe text on stdin")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/tone", map[string]string{
			"reply": reply,
			"tone":  args[0],
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result["reply"])
		return nil
	},
}

func init() {
	toneCmd.Flags().String("reply", "", "reply text to rewrite")
}

func readStdin() (string, error) {
	info, err := os.Stdin.Stat()
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

// --- save ---

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Store a completed interaction for future recall",
	Long: `Store a completed interaction so future suggestions can learn from it.
Low-signal interactions are logged but skipped from recall; the skip reasons
are printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		screenshot, _ := cmd.Flags().GetString("screenshot")
		draft, _ := cmd.Flags().GetString("draft")
		reply, _ := cmd.Flags().GetString("reply")
		final, _ := cmd.Flags().GetString("final")

		if reply == "" {
			return fmt.Errorf("--reply is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/interactions", map[string]string{
			"screenshot_text": screenshot,
			"user_draft":      draft,
			"ai_suggested":    reply,
			"user_final":      final,
		})
		if err != nil {
			return err
		}

		var result struct {
			ID      string   `json:"id"`
			Stored  bool     `json:"stored"`
			Reasons []string `json:"reasons"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Stored {
			printSuccess("Stored interaction %s", result.ID)
		} else {
			printWarning("Logged but skipped from recall:")
			for _, reason := range result.Reasons {
				fmt.Fprintf(os.Stderr, "    - %s\n", reason)
			}
		}
		return nil
	},
}

func init() {
	saveCmd.Flags().String("screenshot", "", "visible conversation text")
	saveCmd.Flags().String("draft", "", "the user's draft")
	saveCmd.Flags().String("reply", "", "the suggested reply")
	saveCmd.Flags().String("final", "", "the reply actually sent, if edited")
}

// --- boost ---

var boostCmd = &cobra.Command{
	Use:   "boost <id>",
	Short: "Increase the curation weight of a stored interaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		increment, _ := cmd.Flags().GetFloat64("increment")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/interactions/"+args[0]+"/boost", map[string]float64{
			"increment": increment,
		})
		if err != nil {
			return err
		}

		var result struct {
			ID    string  `json:"id"`
			Boost float64 `json:"boost"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Boosted %s to %.1f", result.ID[:8], result.Boost)
		return nil
	},
}

func init() {
	boostCmd.Flags().Float64("increment", 0, "boost increment (default 0.5)")
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history [query]",
	Short: "List logged huddle interactions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/interactions?limit=%d", limit)
		if len(args) > 0 {
			path += "&query=" + url.QueryEscape(args[0])
		}
		resp, err := client.get(path)
		if err != nil {
			return err
		}

		var records []struct {
			ID             string `json:"id"`
			CreatedAt      string `json:"created_at"`
			ScreenshotText string `json:"screenshot_text"`
			UserDraft      string `json:"user_draft"`
			AISuggested    string `json:"ai_suggested"`
			UserFinal      string `json:"user_final"`
		}
		if err := decodeJSON(resp, &records); err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No interactions found.")
			return nil
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		for _, rec := range records {
			draft := rec.UserDraft
			if len(draft) > 80 {
				draft = draft[:80] + "..."
			}
			fmt.Printf("%s  %s  %s\n",
				colorize(colorCyan, rec.ID[:8]),
				rec.CreatedAt,
				draft,
			)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of interactions to list")
	historyCmd.Flags().Bool("json", false, "print full records as JSON")
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest reference documents",
	Long: `Ingest reference documents into the retrieval index.

Examples:
  assist ingest --text "Always lead with the outcome, not the feature list."
  assist ingest --url https://example.com/sales-playbook
  assist ingest --file ./objection-handling.pdf
  assist ingest --dir ./playbooks`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		url, _ := cmd.Flags().GetString("url")
		file, _ := cmd.Flags().GetString("file")
		dir, _ := cmd.Flags().GetString("dir")
		source, _ := cmd.Flags().GetString("source")

		if text == "" && url == "" && file == "" && dir == "" {
			return fmt.Errorf("one of --text, --url, --file, or --dir is required")
		}

		req := map[string]any{}
		if source != "" {
			req["source"] = source
		}

		switch {
		case text != "":
			req["type"] = "text"
			req["content"] = text
		case url != "":
			req["type"] = "url"
			req["url"] = url
		case dir != "":
			abs, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving directory: %w", err)
			}
			req["type"] = "dir"
			req["path"] = abs
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			if strings.EqualFold(filepath.Ext(file), ".pdf") {
				req["type"] = "pdf"
				req["content"] = base64.StdEncoding.EncodeToString(data)
			} else {
				req["type"] = "text"
				req["content"] = string(data)
			}
			if source == "" {
				req["source"] = filepath.Base(file)
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/ingest", req)
		if err != nil {
			return err
		}

		var result struct {
			Status string `json:"status"`
			Chunks int    `json:"chunks"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Indexed %d chunks", result.Chunks)
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("text", "", "text content to ingest")
	ingestCmd.Flags().String("url", "", "URL to fetch and ingest")
	ingestCmd.Flags().String("file", "", "file path to ingest (.pdf or plain text)")
	ingestCmd.Flags().String("dir", "", "local directory of PDF files, read by the server")
	ingestCmd.Flags().String("source", "", "source name shown in retrieval results")
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
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		value, err := config.GetKey(cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
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
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}
