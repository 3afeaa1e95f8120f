package app

import (
	"context"

	"github.com/uparkt/parkadmin/internal/api"
	"github.com/uparkt/parkadmin/internal/auth"
	"github.com/uparkt/parkadmin/internal/query"
)

// BanUser blocks a user and refreshes every user query.
func (rt *Runtime) BanUser(ctx context.Context, userID int64) error {
	if err := rt.API.BanUser(ctx, userID); err != nil {
		return err
	}
	rt.Cache.Invalidate(query.AllUsers())
	return nil
}

// DeleteUser removes a user and refreshes every user query.
func (rt *Runtime) DeleteUser(ctx context.Context, userID int64) error {
	if err := rt.API.DeleteUser(ctx, userID); err != nil {
		return err
	}
	rt.Cache.Invalidate(query.AllUsers())
	return nil
}

// UpdateCar writes back a car of a user.
func (rt *Runtime) UpdateCar(ctx context.Context, u api.CarUpdate) error {
	if err := rt.API.UpdateCar(ctx, u); err != nil {
		return err
	}
	rt.Cache.Invalidate(query.UserCarsKey(u.UserID))
	rt.Cache.Remove(query.UserCarKey(u.UserID, u.CarID))
	return nil
}

// DeleteCar removes a car of a user.
func (rt *Runtime) DeleteCar(ctx context.Context, userID, carID int64) error {
	if err := rt.API.DeleteCar(ctx, carID); err != nil {
		return err
	}
	rt.Cache.Invalidate(query.UserCarsKey(userID))
	rt.Cache.Remove(query.UserCarKey(userID, carID))
	return nil
}

// UpdateParking writes back a parking listing.
func (rt *Runtime) UpdateParking(ctx context.Context, u api.ParkingUpdate) error {
	if err := rt.API.UpdateParking(ctx, u); err != nil {
		return err
	}
	rt.Cache.Invalidate(query.UserParkingsKey(u.UserID))
	rt.Cache.Remove(query.UserParkingKey(u.UserID, u.ParkingID))
	return nil
}

// DeleteParking removes a parking listing.
func (rt *Runtime) DeleteParking(ctx context.Context, userID, parkingID int64) error {
	if err := rt.API.DeleteParking(ctx, parkingID); err != nil {
		return err
	}
	rt.Cache.Invalidate(query.UserParkingsKey(userID))
	rt.Cache.Remove(query.UserParkingKey(userID, parkingID))
	return nil
}

// UpdateMe changes the staff profile.
func (rt *Runtime) UpdateMe(ctx context.Context, u auth.ProfileUpdate) error {
	if err := rt.Auth.UpdateMe(ctx, u); err != nil {
		return err
	}
	rt.Cache.Invalidate(query.MeKey())
	return nil
}

// ChangePassword replaces the staff password.
func (rt *Runtime) ChangePassword(ctx context.Context, last, next string) error {
	if err := rt.Auth.ChangePassword(ctx, last, next); err != nil {
		return err
	}
	rt.Cache.Invalidate(query.MeKey())
	return nil
}
