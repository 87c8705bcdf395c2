package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func policyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policy",
		Short: "Print the resolved check-in policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			p := e.policy
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "timezone:  %s\n", p.Location)
			fmt.Fprintf(out, "token ttl: %s\n", p.TokenTTL)
			fmt.Fprintf(out, "presenters: %v\n", sortedRoles(p.PresenterRoles.Slice()))
			fmt.Fprintf(out, "auditors:   %v\n\n", sortedRoles(p.AuditorRoles.Slice()))

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FROM\tSTATUS\tFEE\tREPORT")
			fmt.Fprintf(w, "-\t%s\t%d\t%t\n", p.OnTime.Status, p.OnTime.Fee, p.OnTime.ReportRequired)
			for _, t := range p.Tiers {
				fmt.Fprintf(w, "%s\t%s\t%d\t%t\n", t.From, t.Status, t.Fee, t.ReportRequired)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(out)
			w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tANCHOR\tRESTRICTED\tISSUE WINDOW")
			names := make([]string, 0, len(p.Categories))
			for c := range p.Categories {
				names = append(names, string(c))
			}
			sort.Strings(names)
			for _, n := range names {
				cp, err := p.Category(n)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", cp.Category, cp.Anchor, cp.Restricted, cp.IssueWindow)
			}
			return w.Flush()
		},
	}
}

func sortedRoles(roles []string) []string {
	sort.Strings(roles)
	return roles
}
