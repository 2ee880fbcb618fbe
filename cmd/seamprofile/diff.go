package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/banshee-data/seamprofile/internal/seam"
)

// profileText renders a document one field and one register per line, so
// a line diff names each changed register.
func profileText(doc *seam.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "enabled %t\n", doc.Enabled)
	fmt.Fprintf(&b, "name %q\n", doc.Meta.Name)
	fmt.Fprintf(&b, "joint type %d (%d.%d) version %d\n",
		doc.Meta.JointType, doc.Meta.JointTypeMajor, doc.Meta.JointTypeMinor, doc.Meta.Version)
	t := seam.TableFromValues(doc.V0.Values)
	for i := 0; i < seam.NumRegisters; i++ {
		p, local, _ := seam.Locate(i)
		r, _ := t.Get(i)
		fmt.Fprintf(&b, "%s[%02d] #%03d = %d (0x%08X)\n", p, local, i, r.Int(), uint32(r))
	}
	return b.String()
}

// writeDiff prints the lines that differ between a and b and reports
// whether there were any.
func writeDiff(w io.Writer, a, b string) bool {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	changed := false
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		default:
			continue
		}
		changed = true
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line != "" {
				fmt.Fprint(w, prefix+line)
			}
		}
	}
	return changed
}

func (app *App) addDiffCommand(rootCmd *cobra.Command) {
	diffCmd := &cobra.Command{
		Use:   "diff <id> <other-id>",
		Short: "Show the registers that differ between two stored profiles",
		Args:  cobra.ExactArgs(2),
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

			texts := make([]string, len(ids))
			for i, id := range ids {
				p, err := b.store.Load(cmd.Context(), id)
				if err != nil {
					return err
				}
				doc := seam.DocumentOf(p)
				texts[i] = profileText(&doc)
			}
			if !writeDiff(cmd.OutOrStdout(), texts[0], texts[1]) {
				fmt.Fprintln(cmd.OutOrStdout(), "profiles are identical")
			}
			return nil
		},
	}
	rootCmd.AddCommand(diffCmd)
}
