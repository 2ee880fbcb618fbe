package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/seamprofile/internal/profilestore"
	"github.com/banshee-data/seamprofile/internal/security"
	"github.com/banshee-data/seamprofile/internal/seam"
)

func parseID(s string) (int32, error) {
	id, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid profile id %q", s)
	}
	return int32(id), nil
}

func parseIDs(args []string) ([]int32, error) {
	ids := make([]int32, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func writeIndented(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func printListing(w io.Writer, entries []profilestore.MetaOnly) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENABLED\tNAME\tJOINT\tVERSION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%t\t%s\t%d.%d\t%d\n",
			e.ID, e.Enabled, e.Meta.Name, e.Meta.JointTypeMajor, e.Meta.JointTypeMinor, e.Meta.Version)
	}
	return tw.Flush()
}

func (app *App) addProfileCommands(rootCmd *cobra.Command) {
	var listAll, listJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored profiles",
		Long: `Load every stored profile and list the enabled ones. Nothing is written;
ids with no stored profile are not shown unless --all is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := app.openBackend(false)
			if err != nil {
				return err
			}
			defer b.Close()
			if _, err := b.store.LoadAll(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}

			out := cmd.OutOrStdout()
			if listJSON {
				return b.store.DumpMetaOnly(out)
			}
			entries := b.store.MetaOnly().Profiles
			if listAll {
				entries = nil
				for _, id := range b.store.IDs() {
					if p, err := b.store.Get(id); err == nil {
						entries = append(entries, profilestore.MetaOf(p))
					}
				}
			}
			return printListing(out, entries)
		},
	}
	listCmd.Flags().BoolVar(&listAll, "all", false, "Include disabled and default profiles")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Write the meta-only JSON listing")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one stored profile as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			b, err := app.openBackend(false)
			if err != nil {
				return err
			}
			defer b.Close()
			p, err := b.store.Load(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeIndented(cmd.OutOrStdout(), seam.DocumentOf(p))
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Store the profiles of a profile or profiles JSON file",
		Long: `Read a single profile document or a profiles bundle and write every profile
in it to storage. Nothing is stored unless the whole file is valid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			b, err := app.openBackend(false)
			if err != nil {
				return err
			}
			defer b.Close()
			n, err := b.store.ImportJSON(f)
			if err != nil {
				return err
			}
			if err := b.store.SaveAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d profiles\n", n)
			return nil
		},
	}

	var exportOut string
	var exportMetaOnly bool
	exportCmd := &cobra.Command{
		Use:   "export [id...]",
		Short: "Write the enabled profiles as a profiles bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			b, err := app.openBackend(false)
			if err != nil {
				return err
			}
			defer b.Close()
			if _, err := b.store.LoadAll(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}

			out := cmd.OutOrStdout()
			if exportOut != "" {
				if err := security.ValidateExportPath(exportOut); err != nil {
					return err
				}
				f, err := os.Create(exportOut)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			if exportMetaOnly {
				return b.store.DumpMetaOnly(out, ids...)
			}
			return b.store.Dump(out, ids...)
		},
	}
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file under the working or temp directory (default stdout)")
	exportCmd.Flags().BoolVar(&exportMetaOnly, "meta-only", false, "Leave out the register values")

	revisionsCmd := &cobra.Command{
		Use:   "revisions <id>",
		Short: "List the stored revisions of a profile (sqlite backend)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			db, err := app.requireDB()
			if err != nil {
				return err
			}
			defer db.Close()
			revs, err := db.Revisions(cmd.Context(), id)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "REVISION\tCREATED\tCURRENT")
			for _, r := range revs {
				created := time.Unix(0, r.CreatedAtNs).UTC().Format(time.RFC3339)
				fmt.Fprintf(tw, "%s\t%s\t%t\n", r.RevisionID, created, r.Current)
			}
			return tw.Flush()
		},
	}

	restoreCmd := &cobra.Command{
		Use:   "restore <revision>",
		Short: "Make an old revision the stored version of its profile (sqlite backend)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.requireDB()
			if err != nil {
				return err
			}
			defer db.Close()
			doc, err := db.Restore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored profile %d (%s)\n", doc.ID, doc.Meta.Name)
			return nil
		},
	}

	rootCmd.AddCommand(listCmd, showCmd, importCmd, exportCmd, revisionsCmd, restoreCmd)
}
