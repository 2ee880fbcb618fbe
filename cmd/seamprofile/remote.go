package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/seamprofile/internal/api"
	"github.com/banshee-data/seamprofile/internal/httputil"
)

func (app *App) addRemoteCommands(rootCmd *cobra.Command) {
	var server string
	var timeout time.Duration

	remoteCmd := &cobra.Command{
		Use:   "remote",
		Short: "Control a running seamprofile server",
	}
	remoteCmd.PersistentFlags().StringVar(&server, "server", "", "Server base URL (default http://<listen>)")
	remoteCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	client := func() *api.Client {
		base := server
		if base == "" {
			base = "http://" + app.cfg.GetListen()
		}
		return api.NewClient(base, httputil.NewStandardClient(&http.Client{Timeout: timeout}))
	}

	currentCmd := &cobra.Command{
		Use:   "current",
		Short: "Print the current profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := client().Current(cmd.Context())
			if err != nil {
				return err
			}
			return writeIndented(cmd.OutOrStdout(), doc)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the enabled profiles loaded on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := client().List(cmd.Context())
			if err != nil {
				return err
			}
			return printListing(cmd.OutOrStdout(), list.Profiles)
		},
	}

	var loadSwitch bool
	loadCmd := &cobra.Command{
		Use:   "load <id>",
		Short: "Reload a profile from the server's storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			resp, err := client().Load(cmd.Context(), id, loadSwitch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded profile %d (%s), current %d\n",
				resp.Profile.ID, resp.Profile.Meta.Name, resp.CurrentID)
			return nil
		},
	}
	loadCmd.Flags().BoolVar(&loadSwitch, "switch", false, "Make the profile current after loading")

	switchCmd := &cobra.Command{
		Use:   "switch <id>",
		Short: "Make a loaded profile current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			resp, err := client().Switch(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "current profile %d (%s)\n", resp.CurrentID, resp.Profile.Meta.Name)
			return nil
		},
	}

	saveCmd := &cobra.Command{
		Use:   "save <id>",
		Short: "Persist a loaded profile on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := client().Save(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved profile %d\n", id)
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show the server's version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := client().Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return nil
		},
	}

	remoteCmd.AddCommand(currentCmd, listCmd, loadCmd, switchCmd, saveCmd, versionCmd)
	rootCmd.AddCommand(remoteCmd)
}
