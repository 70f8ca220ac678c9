package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newClassesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "List the classes of the mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CLASS\tSUPER\tINHERITANCE\tTABLES\tKEY")
			for _, c := range reg.Classes() {
				tables := make([]string, 0, len(c.Tables()))
				for _, t := range c.Tables() {
					tables = append(tables, t.Table)
				}
				key := make([]string, 0, len(c.Key()))
				for _, p := range c.Key() {
					key = append(key, p.Name)
				}
				super := "-"
				if c.Super() != nil {
					super = c.Super().Name
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Name, super, c.Inheritance, strings.Join(tables, ","), strings.Join(key, ","))
			}
			return w.Flush()
		},
	}
}
