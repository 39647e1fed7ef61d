package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type OrgsCommander struct {
	jsonOut bool
}

func NewOrgsCmd() *cobra.Command {
	cmder := &OrgsCommander{}

	cmd := &cobra.Command{
		Use:   "orgs",
		Short: "List organizations visible to the session",
		Long:  "Lists the organizations the stored session can see. The first one is the scope serve will use.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Output raw JSON")

	return cmd
}

func (c *OrgsCommander) run(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	orgs, err := newUpstreamClient(cfg).ListOrganizations(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing organizations: %w", err)
	}

	out := cmd.OutOrStdout()
	if c.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(orgs)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UUID\tNAME\t")
	for i, org := range orgs {
		marker := ""
		if i == 0 {
			marker = "(active)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", org.UUID, org.Name, marker)
	}
	return tw.Flush()
}
