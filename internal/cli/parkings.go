package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/uparkt/parkadmin/internal/api"
	"github.com/uparkt/parkadmin/internal/cache"
	"github.com/uparkt/parkadmin/internal/schema"
)

func parkingPath(userID, parkingID int64) string {
	return userPath(userID) + "/parkings/" + itoa(parkingID)
}

func parkingArgs(args []string) (int64, int64, error) {
	userID, err := parseID(args[0], "user")
	if err != nil {
		return 0, 0, err
	}
	parkingID, err := parseID(args[1], "parking")
	if err != nil {
		return 0, 0, err
	}
	return userID, parkingID, nil
}

// parkingEdit holds the update flags. Only flags that were set change the listing.
type parkingEdit struct {
	name        string
	description string
	address     string
	price       float64
	quantity    int
	from, to    string
	services    []int64
	addPhotos   []string
	setPhotos   bool
}

func (e *parkingEdit) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&e.name, "name", "", "Listing name")
	f.StringVar(&e.description, "description", "", "Listing description")
	f.StringVar(&e.address, "address", "", "Street address")
	f.Float64Var(&e.price, "price", 0, "Price per day")
	f.IntVar(&e.quantity, "quantity", 0, "Number of places")
	f.StringVar(&e.from, "from", "", "First available day (dd.MM.yyyy)")
	f.StringVar(&e.to, "to", "", "Last available day (dd.MM.yyyy)")
	f.Int64SliceVar(&e.services, "services", nil, "Amenity ids, replacing the current ones")
	f.StringSliceVar(&e.addPhotos, "add-photo", nil, "Image file to upload and add to the listing")
	f.BoolVar(&e.setPhotos, "replace-photos", false, "Replace the current photos with the uploaded ones")
}

// apply changes p according to the flags that were set.
func (e *parkingEdit) apply(cmd *cobra.Command, p *api.Parking) error {
	changed := cmd.Flags().Changed
	if changed("name") {
		p.Name = e.name
	}
	if changed("description") {
		p.Description = e.description
	}
	if changed("address") {
		p.Address = api.Address{Address: e.address}
	}
	if changed("price") {
		p.Price = e.price
	}
	if changed("quantity") {
		p.Quantity = e.quantity
	}
	if changed("from") {
		d, err := schema.ParseDate(e.from)
		if err != nil {
			return err
		}
		p.FromDate = d
	}
	if changed("to") {
		d, err := schema.ParseDate(e.to)
		if err != nil {
			return err
		}
		p.ToDate = d
	}
	if changed("services") {
		p.Services = e.services
	}
	if !p.FromDate.IsZero() && !p.ToDate.IsZero() && p.ToDate.Before(p.FromDate.Time) {
		return fmt.Errorf("the last available day %s is before the first %s", p.ToDate, p.FromDate)
	}
	return nil
}

func newParkingsCmd() *cobra.Command {
	parkingsCmd := &cobra.Command{
		Use:     "parkings",
		Aliases: []string{"parking"},
		Short:   "Manage the parking listings of a user",
	}

	listCmd := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List the parking listings of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			rt, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			q := rt.Queries.UserParkings(userID)
			if rt, err = enter(cmd, userPath(userID)+"/parkings", &q); err != nil {
				return err
			}
			list, err := cache.Get(ctxOf(cmd), rt.Cache, q)
			if err != nil {
				return userFacing(err)
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printValue(out, list)
			}
			fmt.Fprintf(out, "%s (%d)\n", titleCaser.String("parkings"), len(list.Parkings))
			for _, p := range list.Parkings {
				state := "inactive"
				if p.IsActive {
					state = "active"
				}
				fmt.Fprintf(out, "- #%d %s, %s, %s [%s]\n", p.ID, p.Name, p.Address, formatAmount(p.Price), state)
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <user-id> <parking-id>",
		Short: "Show one parking listing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, parkingID, err := parkingArgs(args)
			if err != nil {
				return err
			}
			rt, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			q := rt.Queries.UserParking(userID, parkingID)
			if rt, err = enter(cmd, parkingPath(userID, parkingID), &q); err != nil {
				return err
			}
			p, err := cache.Get(ctxOf(cmd), rt.Cache, q)
			if err != nil {
				return userFacing(err)
			}
			return printValue(cmd.OutOrStdout(), p)
		},
	}

	var edit parkingEdit
	updateCmd := &cobra.Command{
		Use:   "update <user-id> <parking-id>",
		Short: "Edit a parking listing",
		Long: `Edit a parking listing. Only the given fields change.

Example:
  parkadmin parkings update 10 200 --price 350 --to 30.04.2024
  parkadmin parkings update 10 200 --add-photo gate.jpg --add-photo yard.png`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, parkingID, err := parkingArgs(args)
			if err != nil {
				return err
			}
			rt, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			q := rt.Queries.UserParking(userID, parkingID)
			if rt, err = enter(cmd, parkingPath(userID, parkingID), &q); err != nil {
				return err
			}
			ctx := ctxOf(cmd)
			existing, err := cache.Ensure(ctx, rt.Cache, q)
			if err != nil {
				return userFacing(err)
			}
			p := *existing
			p.Photos = append([]string(nil), existing.Photos...)
			if err := edit.apply(cmd, &p); err != nil {
				return err
			}

			if len(edit.addPhotos) > 0 {
				files := make([][]byte, 0, len(edit.addPhotos))
				for _, name := range edit.addPhotos {
					data, err := os.ReadFile(name)
					if err != nil {
						return fmt.Errorf("unable to read photo: %w", err)
					}
					files = append(files, data)
				}
				paths, err := rt.API.UploadFiles(ctx, files...)
				if err != nil {
					return userFacing(err)
				}
				if edit.setPhotos {
					p.Photos = paths
				} else {
					p.Photos = append(p.Photos, paths...)
				}
			}

			if err := rt.UpdateParking(ctx, api.UpdateFromParking(userID, &p)); err != nil {
				return userFacing(err)
			}
			printDone(cmd.OutOrStdout(), fmt.Sprintf("Parking %d updated", parkingID))
			return nil
		},
	}
	edit.register(updateCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <user-id> <parking-id>",
		Short: "Delete a parking listing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, parkingID, err := parkingArgs(args)
			if err != nil {
				return err
			}
			rt, err := protected(cmd, parkingPath(userID, parkingID))
			if err != nil {
				return err
			}
			if err := rt.DeleteParking(ctxOf(cmd), userID, parkingID); err != nil {
				return userFacing(err)
			}
			printDone(cmd.OutOrStdout(), fmt.Sprintf("Parking %d deleted", parkingID))
			return nil
		},
	}

	parkingsCmd.AddCommand(listCmd, showCmd, updateCmd, deleteCmd)
	return parkingsCmd
}
