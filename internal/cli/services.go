package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uparkt/parkadmin/internal/cache"
)

func newServicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List the parking amenities",
		Long:  `List the amenity catalogue, grouped by category. Ids are used by "parkings update --services".`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			q := rt.Queries.ServiceList()
			if rt, err = enter(cmd, "/services", &q); err != nil {
				return err
			}
			categories, err := cache.Get(ctxOf(cmd), rt.Cache, q)
			if err != nil {
				return userFacing(err)
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printValue(out, categories)
			}
			for _, c := range categories {
				fmt.Fprintf(out, "%s\n", titleCaser.String(c.Title))
				for _, s := range c.Services {
					mark := ""
					if !s.IsActive {
						mark = " (inactive)"
					}
					fmt.Fprintf(out, "  - #%d %s%s\n", s.ID, s.Title, mark)
				}
			}
			return nil
		},
	}
}
