package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xela07ax/riskwatch/internal/console/client"
	"github.com/xela07ax/riskwatch/internal/domain"
)

// newLoginCommand печатает токен: его можно передать другим командам через
// --token или RISKWATCH_AUTH_TOKEN.
func newLoginCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in and print the access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, sess, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{
				"access_token": sess.Token(),
				"role":         sess.Role(),
			})
		},
	}
}

func newActionCommand(a *app) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "action <user_id> <action>",
		Short: "Run an administrative action against a user",
		Long: "Actions: " + strings.Join(actionNames(), ", ") + ".\n" +
			"An empty --reason falls back to the action's default reason.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, action := args[0], domain.AdminAction(args[1])
			if !action.Known() {
				return fmt.Errorf("unknown action %q (want one of: %s)", action, strings.Join(actionNames(), ", "))
			}
			if reason == "" {
				reason = action.DefaultReason()
			}

			c, _, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			ack, err := c.Action(cmd.Context(), userID, action, reason)
			if err != nil {
				return fmt.Errorf("action failed: %s", client.Message(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s on %s\n", ack.Status, ack.Action, userID)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the audit trail")
	return cmd
}

func newSimulateCommand(a *app) *cobra.Command {
	var target string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Trigger an attack simulation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			res, err := c.SimulateAttack(cmd.Context(), target)
			if err != nil {
				return fmt.Errorf("simulation failed: %s", client.Message(err))
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printSimulation(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "target user id (random user when empty)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result")
	return cmd
}

func printSimulation(w io.Writer, res *domain.SimulationResult) {
	if res.TargetUser != nil {
		fmt.Fprintf(w, "Target:  %s <%s> (%s)\n", res.TargetUser.Name, res.TargetUser.Email, res.TargetUser.ID)
	}
	if res.AttackDetails != nil {
		d := res.AttackDetails
		fmt.Fprintf(w, "Attack:  %s from %s at %s, %d downloads, %d actions\n",
			d.Device, d.IPAddress, d.LoginHour, d.Downloads, d.Actions)
	}
	if r := res.RiskResult; r != nil {
		fmt.Fprintf(w, "Risk:    %.1f/100 %s\n", r.Score, strings.ToUpper(r.Level))
		for _, b := range r.Breakdown {
			fmt.Fprintf(w, "  %-22s %5.1f  %s\n", b.Factor, b.RawRisk, b.Status)
		}
	}
	if res.ActionTaken != "" {
		fmt.Fprintf(w, "Result:  %s\n", res.ActionTaken)
	}
}

func actionNames() []string {
	names := make([]string, 0, len(domain.AllActions))
	for _, a := range domain.AllActions {
		names = append(names, string(a))
	}
	return names
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
