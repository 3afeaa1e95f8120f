// Package api wraps the parking admin REST endpoints with typed requests and
// validated responses. Every method returns an apperrors kind on failure:
// transport, unauthorized, validation or business.
package api

import (
	"bytes"
	"context"
	"strconv"

	"github.com/h2non/filetype"
	"github.com/rs/zerolog/log"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
	"github.com/uparkt/parkadmin/internal/common/httpclient"
	"github.com/uparkt/parkadmin/internal/schema"
)

// UploadField is the multipart field name expected by the upload endpoint.
const UploadField = "files"

// Client calls the API through a public and a private requester.
type Client struct {
	public  httpclient.Requester
	private httpclient.Requester
}

// New returns a Client. Authenticated calls go through private.
func New(public, private httpclient.Requester) *Client {
	return &Client{public: public, private: private}
}

// GetUsers returns one page of users matching req.
func (c *Client) GetUsers(ctx context.Context, req ListUsersRequest) (*UserList, error) {
	if req.Statuses == nil {
		req.Statuses = []string{}
	}
	body, err := c.post(ctx, "/admins/get_users", req)
	if err != nil {
		return nil, err
	}
	return decode[UserList](body)
}

// GetUser returns the profile of a single user.
func (c *Client) GetUser(ctx context.Context, id int64) (*User, error) {
	body, err := c.private.Get(ctx, "/users/get_me", map[string]string{"id_user": itoa(id)})
	if err != nil {
		return nil, err
	}
	return decode[User](body)
}

// BanUser blocks a user account.
func (c *Client) BanUser(ctx context.Context, id int64) error {
	return c.mutate(c.post(ctx, "/admins/ban_user", map[string]int64{"id": id}))
}

// DeleteUser removes a user account.
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.mutate(c.post(ctx, "/admins/delete_user", map[string]int64{"id": id}))
}

// GetUserMoney returns the balance and transaction history of a user.
func (c *Client) GetUserMoney(ctx context.Context, userID int64) (*Money, error) {
	body, err := c.post(ctx, "/users/money", map[string]int64{"id_user": userID})
	if err != nil {
		return nil, err
	}
	return decode[Money](body)
}

// GetUserCars returns one page of the cars of a user.
func (c *Client) GetUserCars(ctx context.Context, userID int64, offset, limit int) (*CarList, error) {
	body, err := c.post(ctx, "/orders/cars", map[string]int64{
		"id_user": userID,
		"offset":  int64(offset),
		"limit":   int64(limit),
	})
	if err != nil {
		return nil, err
	}
	return decode[CarList](body)
}

// GetCar returns a single car.
func (c *Client) GetCar(ctx context.Context, id int64) (*Car, error) {
	body, err := c.private.Get(ctx, "/orders/car/"+itoa(id), nil)
	if err != nil {
		return nil, err
	}
	resp, err := decode[carResponse](body)
	if err != nil {
		return nil, err
	}
	return &resp.Car, nil
}

// UpdateCar writes back the editable fields of a car.
func (c *Client) UpdateCar(ctx context.Context, u CarUpdate) error {
	return c.mutate(c.put(ctx, "/orders/car", u))
}

// DeleteCar removes a car.
func (c *Client) DeleteCar(ctx context.Context, id int64) error {
	return c.mutate(c.private.Delete(ctx, "/orders/car/"+itoa(id)))
}

// GetUserParkings returns every parking listing of a user.
func (c *Client) GetUserParkings(ctx context.Context, userID int64) (*ParkingList, error) {
	body, err := c.private.Get(ctx, "/orders/parking", map[string]string{"id_user": itoa(userID)})
	if err != nil {
		return nil, err
	}
	return decode[ParkingList](body)
}

// GetParking returns the detail of a parking listing.
func (c *Client) GetParking(ctx context.Context, id int64) (*Parking, error) {
	body, err := c.private.Get(ctx, "/orders/parking/"+itoa(id), nil)
	if err != nil {
		return nil, err
	}
	resp, err := decode[parkingResponse](body)
	if err != nil {
		return nil, err
	}
	return &resp.Parking, nil
}

// UpdateParking writes back a parking listing.
func (c *Client) UpdateParking(ctx context.Context, u ParkingUpdate) error {
	if err := schema.Validate(&u); err != nil {
		return err
	}
	return c.mutate(c.put(ctx, "/orders/parking", u))
}

// DeleteParking removes a parking listing.
func (c *Client) DeleteParking(ctx context.Context, id int64) error {
	return c.mutate(c.private.Delete(ctx, "/orders/parking/"+itoa(id)))
}

// GetChats returns one page of support chats.
func (c *Client) GetChats(ctx context.Context, req ChatListRequest) (*ChatList, error) {
	body, err := c.post(ctx, "/chats/get_chats", req)
	if err != nil {
		return nil, err
	}
	return decode[ChatList](body)
}

// GetChat returns a chat with its latest messages.
func (c *Client) GetChat(ctx context.Context, id int64) (*Chat, error) {
	body, err := c.post(ctx, "/chats/get_chat", map[string]int64{"id": id})
	if err != nil {
		return nil, err
	}
	resp, err := decode[chatResponse](body)
	if err != nil {
		return nil, err
	}
	return &resp.Chat, nil
}

// GetMessages returns one page of the history of a chat.
func (c *Client) GetMessages(ctx context.Context, req MessagesRequest) (*MessageList, error) {
	body, err := c.post(ctx, "/chats/get_messages", req)
	if err != nil {
		return nil, err
	}
	return decode[MessageList](body)
}

// GetServices returns the amenity catalogue. It does not require a session.
func (c *Client) GetServices(ctx context.Context) ([]ServiceCategory, error) {
	body, err := c.public.Get(ctx, "/static_data/service", nil)
	if err != nil {
		return nil, err
	}
	resp, err := schema.DecodeWithSchema[servicesResponse](body, servicesSchema)
	if err != nil {
		return nil, err
	}
	return resp.Services, nil
}

// UploadFiles uploads images and returns the server paths in upload order.
// Each file is named after its detected type.
func (c *Client) UploadFiles(ctx context.Context, files ...[]byte) ([]string, error) {
	if len(files) == 0 {
		return nil, apperrors.ErrValidation.Err(apperrors.ValidationErrors{{Field: UploadField, ErrStr: "no files to upload"}})
	}
	parts := make([]httpclient.File, 0, len(files))
	for _, data := range files {
		parts = append(parts, httpclient.File{Name: uploadName(data), Data: data})
	}
	body, err := c.private.Upload(ctx, "/files/upload_files", UploadField, parts)
	if err != nil {
		return nil, err
	}
	resp, err := decode[uploadResponse](body)
	if err != nil {
		return nil, err
	}
	return resp.FilesPath, nil
}

func uploadName(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		log.Debug().Int("size", len(data)).Msg("unknown upload type")
		return "img.bin"
	}
	return "img." + kind.Extension
}

func (c *Client) post(ctx context.Context, path string, v any) ([]byte, error) {
	payload, err := schema.Marshal(v)
	if err != nil {
		return nil, apperrors.ErrValidation.MsgErr("unable to encode request", err)
	}
	return c.private.Post(ctx, path, payload)
}

func (c *Client) put(ctx context.Context, path string, v any) ([]byte, error) {
	payload, err := schema.Marshal(v)
	if err != nil {
		return nil, apperrors.ErrValidation.MsgErr("unable to encode request", err)
	}
	return c.private.Put(ctx, path, payload)
}

// mutate checks the status envelope of a write. An empty body is success.
func (c *Client) mutate(body []byte, err error) error {
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return schema.Envelope(body)
}

func decode[T any](body []byte) (*T, error) {
	out, err := schema.Decode[T](body)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
