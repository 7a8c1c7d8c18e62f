package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/alpkeskin/gotoon"
	"github.com/pders01/restodash/internal/models"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var (
	profileJSON bool
	profileYAML bool
	profileToon bool

	updateName             string
	updateDescription      string
	updateClearDescription bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or edit the restaurant profile",
	Long: `Show or edit the name and description customers see for your restaurant.

Examples:
  restodash profile show
  restodash profile show --json
  restodash profile update --name "Bob's Café" --description "Best coffee"
  restodash profile update --clear-description`,
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the restaurant profile",
	Args:  cobra.NoArgs,
	RunE:  runProfileShow,
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update the restaurant name and description",
	Long: `Update the restaurant name and description.

Fields not given keep their current value. The change is applied to the
local view immediately and rolled back if the API rejects it.`,
	Args: cobra.NoArgs,
	RunE: runProfileUpdate,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileUpdateCmd)

	profileShowCmd.Flags().BoolVar(&profileJSON, "json", false, "Output as JSON")
	profileShowCmd.Flags().BoolVar(&profileYAML, "yaml", false, "Output as YAML")
	profileShowCmd.Flags().BoolVar(&profileToon, "toon", false, "Output in LLM-friendly toon format")
	profileShowCmd.MarkFlagsMutuallyExclusive("json", "yaml", "toon")

	profileUpdateCmd.Flags().StringVar(&updateName, "name", "", "New restaurant name")
	profileUpdateCmd.Flags().StringVar(&updateDescription, "description", "", "New description")
	profileUpdateCmd.Flags().BoolVar(&updateClearDescription, "clear-description", false, "Remove the description")
	profileUpdateCmd.MarkFlagsMutuallyExclusive("description", "clear-description")
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.finish()

	svc, err := s.profileService()
	if err != nil {
		return err
	}

	restaurant, err := svc.Current(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	return printProfile(cmd.OutOrStdout(), restaurant)
}

func runProfileUpdate(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if !flags.Changed("name") && !flags.Changed("description") && !updateClearDescription {
		return fmt.Errorf("nothing to update (use --name, --description or --clear-description)")
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.finish()

	svc, err := s.profileService()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)

	// The edit starts from the current profile, like a form filled in with
	// the server's values.
	current, err := svc.Current(ctx)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	req := current.Profile()
	if flags.Changed("name") {
		req.Name = updateName
	}
	switch {
	case updateClearDescription:
		req.Description = nil
	case flags.Changed("description"):
		req.Description = models.StringPtr(updateDescription)
	}

	outcome, err := svc.Update(ctx, req)
	if err != nil {
		return err
	}

	s.logger.Debug("profile updated", "duration", outcome.Duration)

	updated, _ := svc.Cached()
	return printProfile(cmd.OutOrStdout(), updated)
}

func printProfile(w io.Writer, r models.ManagedRestaurant) error {
	switch {
	case profileJSON:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))

	case profileYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()

	case profileToon:
		output, err := gotoon.Encode(r)
		if err != nil {
			return fmt.Errorf("failed to encode Toon: %w", err)
		}
		fmt.Fprintln(w, output)

	default:
		fmt.Fprintf(w, "Name:        %s\n", r.Name)
		fmt.Fprintf(w, "Description: %s\n", r.DescriptionOr("(none)"))
		if r.ID != "" {
			fmt.Fprintf(w, "ID:          %s\n", r.ID)
		}
		if !r.UpdatedAt.IsZero() {
			fmt.Fprintf(w, "Updated:     %s\n", r.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
		}
	}

	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
