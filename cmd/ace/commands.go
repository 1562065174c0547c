package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yalor/ace/internal/config"
)

// --- send ---

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send a chat turn through the pipeline",
	Long: `Send a chat turn through the pipeline.

The server extracts commercial intent from the message, runs an auction
against ad partners, and returns at most one offer.

Examples:
  ace send "planning a bbq this weekend, need a good cut of meat"
  ace send --session alice "looking at hiking boots"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")
		session, _ := cmd.Flags().GetString("session")
		rawJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{"message": message}
		if session != "" {
			req["session_id"] = session
		}

		resp, err := client.post(cmd.Context(), "/v1/message", req)
		if err != nil {
			return err
		}

		var result struct {
			Offer *offerView `json:"offer"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Offer == nil {
			fmt.Println("No offer for this turn.")
			return nil
		}

		if rawJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result.Offer)
		}

		printOffer(result.Offer)
		return nil
	},
}

// offerView mirrors the wire shape of an offer for display.
type offerView struct {
	Protocol      string `json:"protocol"`
	SessionID     string `json:"session_id"`
	OpportunityID string `json:"opportunity_id"`
	Creative      struct {
		Title       string `json:"title"`
		ImageURL    string `json:"image_url"`
		BrandName   string `json:"brand_name"`
		Description string `json:"description"`
		ClickURL    string `json:"click_url"`
	} `json:"creative"`
	Directives struct {
		Tone        string `json:"tone"`
		MustInclude string `json:"must_include"`
	} `json:"conversational_directives"`
}

func printOffer(o *offerView) {
	fmt.Printf("\n%s\n", colorize(colorBold, o.Creative.Title))
	if o.Creative.BrandName != "" {
		fmt.Printf("  %s\n", colorize(colorCyan, o.Creative.BrandName))
	}
	if o.Creative.Description != "" {
		fmt.Printf("  %s\n", o.Creative.Description)
	}
	if o.Creative.ClickURL != "" {
		fmt.Printf("  %s\n", o.Creative.ClickURL)
	}
	fmt.Printf("  opportunity: %s\n", o.OpportunityID)
}

func init() {
	sendCmd.Flags().String("session", "", "session ID (default: shared demo session)")
	sendCmd.Flags().Bool("json", false, "print the raw offer JSON")
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect inferred session profiles",
}

var profileShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the inferred profile for a session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/sessions/"+args[0]+"/profile")
		if err != nil {
			return err
		}

		var profile any
		if err := decodeJSON(resp, &profile); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
}

// --- offers ---

var offersCmd = &cobra.Command{
	Use:   "offers",
	Short: "List recently delivered offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/v1/offers/recent?limit=%d", limit))
		if err != nil {
			return err
		}

		var offers []offerView
		if err := decodeJSON(resp, &offers); err != nil {
			return err
		}

		if len(offers) == 0 {
			fmt.Println("No offers recorded.")
			return nil
		}

		for _, o := range offers {
			id := o.OpportunityID
			if len(id) > 8 {
				id = id[:8]
			}
			fmt.Printf("%s  %s  %s\n",
				colorize(colorCyan, id),
				o.SessionID,
				o.Creative.Title,
			)
		}
		return nil
	},
}

func init() {
	offersCmd.Flags().Int("limit", 20, "maximum number of offers to list")
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pipeline event counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/stats")
		if err != nil {
			return err
		}

		var stats map[string]int64
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		if len(stats) == 0 {
			fmt.Println("No events recorded.")
			return nil
		}

		for _, kind := range statsOrder {
			if count, ok := stats[kind]; ok {
				fmt.Printf("  %s %d\n", colorize(colorBold, kind+":"), count)
				delete(stats, kind)
			}
		}
		for kind, count := range stats {
			fmt.Printf("  %s %d\n", colorize(colorBold, kind+":"), count)
		}
		return nil
	},
}

// statsOrder lists event kinds in pipeline order for stable display.
var statsOrder = []string{
	"INPUT_RECEIVED",
	"INTENTS_DETECTED",
	"OPPORTUNITY_IDENTIFIED",
	"OPPORTUNITY_OBSOLETED",
	"OPPORTUNITY_FANNED_OUT",
	"BID_RECEIVED",
	"BID_ACCEPTED",
	"OFFER_READY",
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
