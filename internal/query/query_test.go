package query

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uparkt/parkadmin/internal/api"
	"github.com/uparkt/parkadmin/internal/auth"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
)

func TestKey(t *testing.T) {
	a := NewKey("users", map[string]any{"b": 1, "a": "x"})
	b := NewKey("users", map[string]any{"a": "x", "b": 1.0})
	assert.True(t, a.Equal(b))
	assert.Equal(t, `["users",{"a":"x","b":1}]`, a.String())
	assert.Equal(t, "users", a.Namespace())

	assert.True(t, a.HasPrefix(NewKey("users")))
	assert.True(t, a.HasPrefix(a))
	assert.True(t, a.HasPrefix(nil))
	assert.False(t, NewKey("users").HasPrefix(a))
	assert.False(t, NewKey("usersx").HasPrefix(NewKey("users")))

	parent := UserKey(10)
	child := parent.Append("money")
	assert.Len(t, parent, 3)
	assert.True(t, child.HasPrefix(parent))
	assert.True(t, UserCarKey(10, 5).HasPrefix(parent))
	assert.False(t, UserKey(1).HasPrefix(UserKey(10)))
	assert.Equal(t, `["users","user",{"userID":"10"}]`, parent.String())
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		raw, perPage, want int
	}{
		{95, 10, 10},
		{0, 10, 0},
		{100, 10, 10},
		{101, 10, 11},
		{1, 10, 1},
		{5, 1, 5},
		{5, 0, 0},
		{5, -1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.raw, tt.perPage), "raw=%d perPage=%d", tt.raw, tt.perPage)
	}
	for n := 0; n <= 200; n++ {
		for p := 1; p <= 12; p++ {
			got := TotalPages(n, p)
			assert.True(t, got*p >= n && (got-1)*p < n || n == 0 && got == 0)
		}
	}
}

func TestFilters(t *testing.T) {
	f, err := ParseFilters("search=ivan&page=3&itemsPerPage=20&extra=1")
	require.NoError(t, err)
	assert.Equal(t, PageFilters{Search: "ivan", Page: 3, ItemsPerPage: 20}, f)
	assert.Equal(t, 40, f.Offset())

	f, err = FiltersFromValues(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, PageFilters{Page: 1, ItemsPerPage: 10}, f)
	assert.Equal(t, 0, f.Offset())

	f, err = ParseFilters("page=0&itemsPerPage=-5")
	require.NoError(t, err)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 10, f.ItemsPerPage)

	_, err = ParseFilters("page=abc")
	assert.True(t, apperrors.IsValidation(err))
}

type fakeSource struct {
	usersReq api.ListUsersRequest
	carsArgs [3]int64
	msgReq   api.MessagesRequest
}

func (s *fakeSource) GetUsers(_ context.Context, req api.ListUsersRequest) (*api.UserList, error) {
	s.usersReq = req
	return &api.UserList{Users: []api.User{{ID: 1}}, Total: 95}, nil
}

func (s *fakeSource) GetUser(_ context.Context, id int64) (*api.User, error) {
	return &api.User{ID: id}, nil
}

func (s *fakeSource) GetUserMoney(context.Context, int64) (*api.Money, error) {
	return &api.Money{Balance: 10}, nil
}

func (s *fakeSource) GetUserCars(_ context.Context, userID int64, offset, limit int) (*api.CarList, error) {
	s.carsArgs = [3]int64{userID, int64(offset), int64(limit)}
	return &api.CarList{Total: 0}, nil
}

func (s *fakeSource) GetCar(_ context.Context, id int64) (*api.Car, error) {
	return &api.Car{ID: id}, nil
}

func (s *fakeSource) GetUserParkings(context.Context, int64) (*api.ParkingList, error) {
	return &api.ParkingList{}, nil
}

func (s *fakeSource) GetParking(_ context.Context, id int64) (*api.Parking, error) {
	return &api.Parking{ID: id}, nil
}

func (s *fakeSource) GetChats(context.Context, api.ChatListRequest) (*api.ChatList, error) {
	return nil, errors.New("offline")
}

func (s *fakeSource) GetChat(_ context.Context, id int64) (*api.Chat, error) {
	return &api.Chat{ID: id}, nil
}

func (s *fakeSource) GetMessages(_ context.Context, req api.MessagesRequest) (*api.MessageList, error) {
	s.msgReq = req
	return &api.MessageList{Total: 25}, nil
}

func (s *fakeSource) GetServices(context.Context) ([]api.ServiceCategory, error) {
	return []api.ServiceCategory{{ID: 1}}, nil
}

type fakeProfile struct{}

func (fakeProfile) GetMe(context.Context) (*auth.Me, error) {
	return &auth.Me{ID: 1}, nil
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	r := NewRegistry(src, fakeProfile{})

	users, err := r.UserList(PageFilters{Search: "iv", Page: 2}).Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, users.Total)
	assert.Equal(t, 95, users.Count)
	assert.Equal(t, api.ListUsersRequest{Search: "iv", Offset: 10, Limit: 10}, src.usersReq)

	cars, err := r.UserCars(7, PageFilters{Page: 3, ItemsPerPage: 5}).Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, cars.Total)
	assert.NotNil(t, cars.Items)
	assert.Equal(t, [3]int64{7, 10, 5}, src.carsArgs)

	msgs, err := r.ChatMessages(3, PageFilters{ItemsPerPage: 20}).Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, msgs.Total)
	assert.Equal(t, int64(3), src.msgReq.ChatID)

	_, err = r.ChatList(PageFilters{}).Fetch(ctx)
	assert.EqualError(t, err, "offline")

	// Defaults are part of the key, so an empty filter and an explicit first
	// page share a cache entry.
	assert.True(t, r.UserList(PageFilters{}).Key.Equal(r.UserList(PageFilters{Page: 1, ItemsPerPage: 10}).Key))
	assert.True(t, r.UserMoney(7).Key.HasPrefix(r.User(7).Key))
	assert.True(t, r.UserParking(7, 2).Key.HasPrefix(UserKey(7)))
	assert.True(t, r.ChatMessages(3, PageFilters{}).Key.HasPrefix(r.Chat(3).Key))
	assert.Equal(t, Me, r.MeDetail().Key.Namespace())

	d := r.ServiceList().Descriptor()
	v, err := d.Fetch(ctx)
	require.NoError(t, err)
	cats, err := Cast[[]api.ServiceCategory](d.Key, v)
	require.NoError(t, err)
	assert.Len(t, cats, 1)

	_, err = Cast[*api.User](d.Key, v)
	assert.Error(t, err)
}
