package query

import (
	"context"
	"strconv"

	"github.com/uparkt/parkadmin/internal/api"
	"github.com/uparkt/parkadmin/internal/auth"
)

// Namespaces of the registry.
const (
	Users    = "users"
	Chats    = "chats"
	Me       = "me"
	Services = "services"
)

// Source is the remote API consumed by the registry.
type Source interface {
	GetUsers(ctx context.Context, req api.ListUsersRequest) (*api.UserList, error)
	GetUser(ctx context.Context, id int64) (*api.User, error)
	GetUserMoney(ctx context.Context, userID int64) (*api.Money, error)
	GetUserCars(ctx context.Context, userID int64, offset, limit int) (*api.CarList, error)
	GetCar(ctx context.Context, id int64) (*api.Car, error)
	GetUserParkings(ctx context.Context, userID int64) (*api.ParkingList, error)
	GetParking(ctx context.Context, id int64) (*api.Parking, error)
	GetChats(ctx context.Context, req api.ChatListRequest) (*api.ChatList, error)
	GetChat(ctx context.Context, id int64) (*api.Chat, error)
	GetMessages(ctx context.Context, req api.MessagesRequest) (*api.MessageList, error)
	GetServices(ctx context.Context) ([]api.ServiceCategory, error)
}

// ProfileSource loads the signed-in staff profile.
type ProfileSource interface {
	GetMe(ctx context.Context) (*auth.Me, error)
}

// Registry is the catalogue of queries.
type Registry struct {
	src     Source
	profile ProfileSource
}

// NewRegistry returns a registry reading from src and profile.
func NewRegistry(src Source, profile ProfileSource) *Registry {
	return &Registry{src: src, profile: profile}
}

func filtersPart(f PageFilters) map[string]any {
	return map[string]any{"filters": f}
}

// AllUsers is the prefix of every user query.
func AllUsers() Key { return NewKey(Users) }

// UserKey is the prefix of every query about one user.
func UserKey(userID int64) Key {
	return NewKey(Users, "user", map[string]string{"userID": strconv.FormatInt(userID, 10)})
}

// UserCarsKey is the prefix of every page of a user's cars.
func UserCarsKey(userID int64) Key { return UserKey(userID).Append("cars") }

// UserCarKey is the key of a single car of a user.
func UserCarKey(userID, carID int64) Key {
	return UserKey(userID).Append("car", map[string]int64{"carID": carID})
}

// UserParkingsKey is the key of a user's parking list.
func UserParkingsKey(userID int64) Key { return UserKey(userID).Append("parkings") }

// UserParkingKey is the key of a single parking listing of a user.
func UserParkingKey(userID, parkingID int64) Key {
	return UserKey(userID).Append("parking", map[string]int64{"parkingID": parkingID})
}

// ChatKey is the prefix of every query about one chat.
func ChatKey(chatID int64) Key {
	return NewKey(Chats, "one", map[string]any{"filters": map[string]int64{"id": chatID}})
}

// MeKey is the key of the staff profile.
func MeKey() Key { return NewKey(Me, "detail") }

// UserList returns one page of users.
func (r *Registry) UserList(f PageFilters) Query[*Page[api.User]] {
	f = f.Normalize()
	return New(NewKey(Users, "list", filtersPart(f)), func(ctx context.Context) (*Page[api.User], error) {
		list, err := r.src.GetUsers(ctx, api.ListUsersRequest{
			Search: f.Search,
			Offset: f.Offset(),
			Limit:  f.ItemsPerPage,
		})
		if err != nil {
			return nil, err
		}
		return newPage(list.Users, list.Total, f), nil
	})
}

// User returns the profile of one user.
func (r *Registry) User(userID int64) Query[*api.User] {
	return New(UserKey(userID), func(ctx context.Context) (*api.User, error) {
		return r.src.GetUser(ctx, userID)
	})
}

// UserMoney returns the balance of one user.
func (r *Registry) UserMoney(userID int64) Query[*api.Money] {
	return New(UserKey(userID).Append("money"), func(ctx context.Context) (*api.Money, error) {
		return r.src.GetUserMoney(ctx, userID)
	})
}

// UserCars returns one page of a user's cars.
func (r *Registry) UserCars(userID int64, f PageFilters) Query[*Page[api.Car]] {
	f = f.Normalize()
	return New(UserCarsKey(userID).Append(filtersPart(f)), func(ctx context.Context) (*Page[api.Car], error) {
		list, err := r.src.GetUserCars(ctx, userID, f.Offset(), f.ItemsPerPage)
		if err != nil {
			return nil, err
		}
		return newPage(list.Cars, list.Total, f), nil
	})
}

// UserCar returns one car of a user.
func (r *Registry) UserCar(userID, carID int64) Query[*api.Car] {
	return New(UserCarKey(userID, carID), func(ctx context.Context) (*api.Car, error) {
		return r.src.GetCar(ctx, carID)
	})
}

// UserParkings returns every parking listing of a user.
func (r *Registry) UserParkings(userID int64) Query[*api.ParkingList] {
	return New(UserParkingsKey(userID), func(ctx context.Context) (*api.ParkingList, error) {
		return r.src.GetUserParkings(ctx, userID)
	})
}

// UserParking returns the detail of one parking listing of a user.
func (r *Registry) UserParking(userID, parkingID int64) Query[*api.Parking] {
	return New(UserParkingKey(userID, parkingID), func(ctx context.Context) (*api.Parking, error) {
		return r.src.GetParking(ctx, parkingID)
	})
}

// ChatList returns one page of chats.
func (r *Registry) ChatList(f PageFilters) Query[*Page[api.ChatSummary]] {
	f = f.Normalize()
	return New(NewKey(Chats, "list", filtersPart(f)), func(ctx context.Context) (*Page[api.ChatSummary], error) {
		list, err := r.src.GetChats(ctx, api.ChatListRequest{
			Search: f.Search,
			Offset: f.Offset(),
			Limit:  f.ItemsPerPage,
		})
		if err != nil {
			return nil, err
		}
		return newPage(list.Chats, list.Total, f), nil
	})
}

// Chat returns one chat with its latest messages.
func (r *Registry) Chat(chatID int64) Query[*api.Chat] {
	return New(ChatKey(chatID), func(ctx context.Context) (*api.Chat, error) {
		return r.src.GetChat(ctx, chatID)
	})
}

// ChatMessages returns one page of a chat's history.
func (r *Registry) ChatMessages(chatID int64, f PageFilters) Query[*Page[api.ChatMessage]] {
	f = f.Normalize()
	return New(ChatKey(chatID).Append("messages", filtersPart(f)), func(ctx context.Context) (*Page[api.ChatMessage], error) {
		list, err := r.src.GetMessages(ctx, api.MessagesRequest{
			ChatID: chatID,
			Offset: f.Offset(),
			Limit:  f.ItemsPerPage,
		})
		if err != nil {
			return nil, err
		}
		return newPage(list.Messages, list.Total, f), nil
	})
}

// MeDetail returns the staff profile.
func (r *Registry) MeDetail() Query[*auth.Me] {
	return New(MeKey(), r.profile.GetMe)
}

// ServiceList returns the amenity catalogue.
func (r *Registry) ServiceList() Query[[]api.ServiceCategory] {
	return New(NewKey(Services, "list"), r.src.GetServices)
}
