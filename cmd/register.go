package cmd

import (
	"fmt"

	"github.com/pders01/restodash/internal/models"
	"github.com/spf13/cobra"
)

var registerReq models.RegisterRestaurantRequest

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new restaurant and its manager",
	Long: `Register a new restaurant together with the manager account that runs it.

Examples:
  restodash register --restaurant-name "Pizza Shop" --manager-name "John Doe" \
    --email john@example.com --phone 555-0100 --address "1 Main St"`,
	Args: cobra.NoArgs,
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	flags := registerCmd.Flags()
	flags.StringVar(&registerReq.RestaurantName, "restaurant-name", "", "Name of the restaurant")
	flags.StringVar(&registerReq.ManagerName, "manager-name", "", "Full name of the manager")
	flags.StringVar(&registerReq.Email, "email", "", "Manager email address")
	flags.StringVar(&registerReq.Phone, "phone", "", "Manager phone number")
	flags.StringVar(&registerReq.Address, "address", "", "Restaurant address")
}

func runRegister(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.finish()

	if err := s.submitter().Register(commandContext(cmd), registerReq); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s for %s <%s>\n",
		registerReq.RestaurantName, registerReq.ManagerName, registerReq.Email)
	return nil
}
