package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/profiledir/internal/config"
	"github.com/kalambet/profiledir/internal/directory"
)

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List profiles matching a search term and filters",
	Long: `List profiles matching a search term and filters.

Examples:
  profiledir list
  profiledir list chen
  profiledir list --tag Sustainability --location spain
  profiledir list --admin usa`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tags, _ := cmd.Flags().GetStringSlice("tag")
		location, _ := cmd.Flags().GetString("location")
		admin, _ := cmd.Flags().GetBool("admin")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := buildListPath(strings.Join(args, " "), tags, location, admin, limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var profiles []directory.Profile
		if err := decodeJSON(resp, &profiles); err != nil {
			return err
		}

		if asJSON {
			return printJSON(os.Stdout, profiles)
		}
		if len(profiles) == 0 {
			fmt.Println("No profiles found.")
			return nil
		}
		printProfiles(os.Stdout, profiles)
		return nil
	},
}

func init() {
	listCmd.Flags().StringSlice("tag", nil, "require a tag (repeatable or comma-separated)")
	listCmd.Flags().String("location", "", "filter by city, state or country")
	listCmd.Flags().Bool("admin", false, "match the query against name and location only, ignoring tag filters")
	listCmd.Flags().Int("limit", 0, "maximum number of profiles to list (0 = all)")
	listCmd.Flags().Bool("json", false, "print profiles as JSON")
}

func buildListPath(query string, tags []string, location string, admin bool, limit int) string {
	v := url.Values{}
	if query != "" {
		v.Set("q", query)
	}
	for _, t := range tags {
		v.Add("tag", t)
	}
	if location != "" {
		v.Set("location", location)
	}
	if admin {
		v.Set("admin", "true")
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	if len(v) == 0 {
		return "/profiles"
	}
	return "/profiles?" + v.Encode()
}

func printProfiles(w io.Writer, profiles []directory.Profile) {
	for _, p := range profiles {
		place := strings.Join(nonEmpty(p.Location.City, p.Location.Country), ", ")
		fmt.Fprintf(w, "%s  %s  %s\n",
			colorize(colorCyan, p.ID),
			colorize(colorBold, p.Name),
			place,
		)
		if len(p.Tags) > 0 {
			fmt.Fprintf(w, "    %s\n", strings.Join(p.Tags, ", "))
		}
	}
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- show ---

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/profiles/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var p directory.Profile
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		return printJSON(os.Stdout, p)
	},
}

// --- add ---

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a profile from a JSON file",
	Long: `Add a profile from a JSON file ("-" reads stdin).

The server assigns the id and timestamps. Name, avatar, location
(address, city, country, coordinates) are required.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		var p directory.Profile
		if err := readJSONFile(file, &p); err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/profiles", p)
		if err != nil {
			return err
		}

		var created directory.Profile
		if err := decodeJSON(resp, &created); err != nil {
			return err
		}

		printSuccess("Added %s (%s)", created.Name, created.ID)
		return nil
	},
}

func init() {
	addCmd.Flags().String("file", "", "profile JSON file, or - for stdin")
}

func readJSONFile(path string, v any) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	return nil
}

// --- update ---

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of a profile",
	Long: `Update fields of a profile.

Examples:
  profiledir update 2 --set position="Staff Engineer" --set tags=Go,React
  profiledir update 2 --file patch.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		sets, _ := cmd.Flags().GetStringArray("set")
		if file == "" && len(sets) == 0 {
			return fmt.Errorf("one of --file or --set is required")
		}

		var patch directory.Patch
		if file != "" {
			if err := readJSONFile(file, &patch); err != nil {
				return err
			}
		}
		if err := applySets(&patch, sets); err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/profiles/"+url.PathEscape(args[0]), patch)
		if err != nil {
			return err
		}

		var updated directory.Profile
		if err := decodeJSON(resp, &updated); err != nil {
			return err
		}

		printSuccess("Updated %s (%s)", updated.Name, updated.ID)
		return nil
	},
}

func init() {
	updateCmd.Flags().String("file", "", "patch JSON file, or - for stdin")
	updateCmd.Flags().StringArray("set", nil, "set a field as key=value (repeatable)")
}

// applySets merges key=value assignments into patch. Only scalar fields and
// tags (comma-separated) can be set this way.
func applySets(patch *directory.Patch, sets []string) error {
	for _, s := range sets {
		key, value, ok := strings.Cut(s, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q: want key=value", s)
		}
		v := value
		switch strings.TrimSpace(key) {
		case "name":
			patch.Name = &v
		case "avatar":
			patch.Avatar = &v
		case "description":
			patch.Description = &v
		case "detailedBio":
			patch.DetailedBio = &v
		case "email":
			patch.Email = &v
		case "phone":
			patch.Phone = &v
		case "website":
			patch.Website = &v
		case "company":
			patch.Company = &v
		case "position":
			patch.Position = &v
		case "tags":
			tags := []string{}
			for _, t := range strings.Split(value, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tags = append(tags, t)
				}
			}
			patch.Tags = tags
		default:
			return fmt.Errorf("field %q cannot be set with --set; use --file", key)
		}
	}
	return nil
}

// --- remove ---

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/profiles/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Removed %s", args[0])
		return nil
	},
}

// --- tags ---

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List all tags in use",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/tags")
		if err != nil {
			return err
		}

		var tags []string
		if err := decodeJSON(resp, &tags); err != nil {
			return err
		}
		for _, t := range tags {
			fmt.Println(t)
		}
		return nil
	},
}

// --- selection ---

var selectCmd = &cobra.Command{
	Use:   "select [id]",
	Short: "Select a profile in the server session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clearSel, _ := cmd.Flags().GetBool("clear")
		if !clearSel && len(args) == 0 {
			return fmt.Errorf("an id or --clear is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if clearSel {
			resp, err := client.delete(cmd.Context(), "/session/selection")
			if err != nil {
				return err
			}
			var session directory.Session
			if err := decodeJSON(resp, &session); err != nil {
				return err
			}
			printSuccess("Selection cleared")
			return nil
		}

		resp, err := client.put(cmd.Context(), "/session/selection", map[string]string{"id": args[0]})
		if err != nil {
			return err
		}
		var session directory.Session
		if err := decodeJSON(resp, &session); err != nil {
			return err
		}
		if session.SelectedID == "" {
			printWarning("No profile with id %s; selection cleared", args[0])
			return nil
		}
		printSuccess("Selected %s", session.SelectedID)
		return nil
	},
}

func init() {
	selectCmd.Flags().Bool("clear", false, "clear the current selection")
}

var selectedCmd = &cobra.Command{
	Use:   "selected",
	Short: "Show the selected profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/session/selection")
		if err != nil {
			return err
		}
		var p directory.Profile
		if err := decodeJSON(resp, &p); err != nil {
			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
				fmt.Println("No profile selected.")
				return nil
			}
			return err
		}
		return printJSON(os.Stdout, p)
	},
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
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
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
