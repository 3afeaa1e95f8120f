package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uparkt/parkadmin/internal/api"
	"github.com/uparkt/parkadmin/internal/cache"
)

func carPath(userID, carID int64) string {
	return userPath(userID) + "/cars/" + itoa(carID)
}

// carArgs parses "<user-id> <car-id>".
func carArgs(args []string) (int64, int64, error) {
	userID, err := parseID(args[0], "user")
	if err != nil {
		return 0, 0, err
	}
	carID, err := parseID(args[1], "car")
	if err != nil {
		return 0, 0, err
	}
	return userID, carID, nil
}

func newCarsCmd() *cobra.Command {
	carsCmd := &cobra.Command{
		Use:     "cars",
		Aliases: []string{"car"},
		Short:   "Manage the cars registered by a user",
	}

	var pf pageFlags
	listCmd := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List the cars of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			f, path, err := pf.filters(userPath(userID) + "/cars")
			if err != nil {
				return err
			}
			rt, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			q := rt.Queries.UserCars(userID, f)
			if rt, err = enter(cmd, path, &q); err != nil {
				return err
			}
			page, err := cache.Get(ctxOf(cmd), rt.Cache, q)
			if err != nil {
				return userFacing(err)
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printValue(out, page)
			}
			printHeading(out, "cars", f, page.Total, page.Count)
			for _, c := range page.Items {
				fmt.Fprintf(out, "- #%d %s %s\n", c.ID, c.Name, c.Number)
			}
			return nil
		},
	}
	pf.register(listCmd, false)

	showCmd := &cobra.Command{
		Use:   "show <user-id> <car-id>",
		Short: "Show one car",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, carID, err := carArgs(args)
			if err != nil {
				return err
			}
			rt, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			q := rt.Queries.UserCar(userID, carID)
			if rt, err = enter(cmd, carPath(userID, carID), &q); err != nil {
				return err
			}
			car, err := cache.Get(ctxOf(cmd), rt.Cache, q)
			if err != nil {
				return userFacing(err)
			}
			return printValue(cmd.OutOrStdout(), car)
		},
	}

	var name, number string
	updateCmd := &cobra.Command{
		Use:   "update <user-id> <car-id>",
		Short: "Change the name or number of a car",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, carID, err := carArgs(args)
			if err != nil {
				return err
			}
			rt, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			q := rt.Queries.UserCar(userID, carID)
			if rt, err = enter(cmd, carPath(userID, carID), &q); err != nil {
				return err
			}
			car, err := cache.Ensure(ctxOf(cmd), rt.Cache, q)
			if err != nil {
				return userFacing(err)
			}
			u := api.CarUpdate{UserID: userID, CarID: carID, Name: car.Name, Number: car.Number}
			if cmd.Flags().Changed("name") {
				u.Name = name
			}
			if cmd.Flags().Changed("number") {
				u.Number = number
			}
			if err := rt.UpdateCar(ctxOf(cmd), u); err != nil {
				return userFacing(err)
			}
			printDone(cmd.OutOrStdout(), fmt.Sprintf("Car %d updated", carID))
			return nil
		},
	}
	updateCmd.Flags().StringVar(&name, "name", "", "Car model")
	updateCmd.Flags().StringVar(&number, "number", "", "Registration number")

	deleteCmd := &cobra.Command{
		Use:   "delete <user-id> <car-id>",
		Short: "Delete a car",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, carID, err := carArgs(args)
			if err != nil {
				return err
			}
			rt, err := protected(cmd, carPath(userID, carID))
			if err != nil {
				return err
			}
			if err := rt.DeleteCar(ctxOf(cmd), userID, carID); err != nil {
				return userFacing(err)
			}
			printDone(cmd.OutOrStdout(), fmt.Sprintf("Car %d deleted", carID))
			return nil
		},
	}

	carsCmd.AddCommand(listCmd, showCmd, updateCmd, deleteCmd)
	return carsCmd
}
