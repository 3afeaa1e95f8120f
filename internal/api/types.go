package api

import (
	"github.com/uparkt/parkadmin/internal/schema"
)

// User is an end user account as listed by the admin API.
type User struct {
	ID        int64       `json:"id" validate:"required"`
	Name      string      `json:"name"`
	Surname   string      `json:"surname"`
	Email     string      `json:"email,omitempty"`
	Phone     string      `json:"phone"`
	PhotoPath string      `json:"photo_path,omitempty"`
	Created   schema.Date `json:"datetime_create"`
	Role      []string    `json:"role"`
	Status    string      `json:"status"`
	Balance   float64     `json:"balance"`
}

// FullName joins name and surname.
func (u *User) FullName() string {
	switch {
	case u.Name == "":
		return u.Surname
	case u.Surname == "":
		return u.Name
	}
	return u.Name + " " + u.Surname
}

// UserList is one page of users. Total is the number of matching users.
type UserList struct {
	Users []User `json:"users" validate:"dive"`
	Total int    `json:"total" validate:"gte=0"`
}

// ListUsersRequest selects a page of users.
type ListUsersRequest struct {
	Search   string   `json:"search"`
	Sort     int      `json:"sort"`
	Offset   int      `json:"offset"`
	Limit    int      `json:"limit"`
	Statuses []string `json:"statuses"`
}

// Transaction is one entry of a balance history.
type Transaction struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// Money is the balance of a user with its history.
type Money struct {
	Balance float64       `json:"balance"`
	History []Transaction `json:"history" validate:"dive"`
}

// Car is a car registered by a user.
type Car struct {
	ID     int64  `json:"id" validate:"required"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// CarList is one page of a user's cars. Total is the number of cars.
type CarList struct {
	Cars  []Car `json:"cars" validate:"dive"`
	Total int   `json:"total" validate:"gte=0"`
}

type carResponse struct {
	Car Car `json:"car" validate:"required"`
}

// CarUpdate carries the editable fields of a car.
type CarUpdate struct {
	UserID int64  `json:"id_user"`
	CarID  int64  `json:"id_car"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// ParkingSummary is a parking listing as shown in a user's list.
type ParkingSummary struct {
	ID       int64       `json:"id" validate:"required"`
	Name     string      `json:"name"`
	Photo    string      `json:"photo"`
	Date     schema.Date `json:"date"`
	Price    float64     `json:"price"`
	Address  string      `json:"address"`
	IsActive bool        `json:"isActive"`
}

// ParkingList holds every parking listing of a user.
type ParkingList struct {
	Parkings []ParkingSummary `json:"parkings" validate:"dive"`
}

// Address is a geocoded street address.
type Address struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Parking is the editable detail of a parking listing.
type Parking struct {
	ID          int64       `json:"id" validate:"required"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       float64     `json:"price" validate:"gte=0"`
	Address     Address     `json:"address"`
	FromDate    schema.Date `json:"from_date"`
	ToDate      schema.Date `json:"to_date"`
	Quantity    int         `json:"quantity" validate:"gte=0"`
	Photos      []string    `json:"photos"`
	Services    []int64     `json:"services"`
}

type parkingResponse struct {
	Parking Parking `json:"parking" validate:"required"`
}

// ParkingUpdate is the write-back form of a parking listing. Dates are sent in
// the canonical dd.MM.yyyy form.
type ParkingUpdate struct {
	UserID      int64              `json:"id_user" validate:"required"`
	ParkingID   int64              `json:"id_parking" validate:"required"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Price       float64            `json:"price" validate:"gte=0"`
	Information ParkingInformation `json:"information"`
	Services    ParkingServices    `json:"services"`
	Photos      []string           `json:"photos"`
	Quantity    int                `json:"quantity" validate:"gte=0"`
}

// ParkingInformation groups the location and availability window of a listing.
type ParkingInformation struct {
	Address  Address     `json:"address"`
	FromDate schema.Date `json:"from_date"`
	ToDate   schema.Date `json:"to_date"`
}

type ParkingServices struct {
	Services []int64 `json:"services"`
}

// UpdateFromParking builds the write-back form of p.
func UpdateFromParking(userID int64, p *Parking) ParkingUpdate {
	return ParkingUpdate{
		UserID:      userID,
		ParkingID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Information: ParkingInformation{
			Address:  p.Address,
			FromDate: p.FromDate,
			ToDate:   p.ToDate,
		},
		Services: ParkingServices{Services: p.Services},
		Photos:   p.Photos,
		Quantity: p.Quantity,
	}
}

// ChatPreview is the last message shown next to a chat.
type ChatPreview struct {
	Msg  string             `json:"msg"`
	Time schema.EpochMillis `json:"time"`
}

// ChatSummary is a chat as listed.
type ChatSummary struct {
	ID        int64        `json:"id_chat" validate:"required"`
	Username  string       `json:"username"`
	PhotoPath string       `json:"photo_path,omitempty"`
	Message   *ChatPreview `json:"message,omitempty"`
}

// ChatList is one page of chats. Total is the number of chats.
type ChatList struct {
	Chats []ChatSummary `json:"chats" validate:"dive"`
	Total int           `json:"total" validate:"gte=0"`
}

// ChatListRequest selects a page of chats.
type ChatListRequest struct {
	Search string `json:"search"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

// ChatMessage is a message stored in a chat.
type ChatMessage struct {
	Msg     string             `json:"msg"`
	MsgType int                `json:"msgType"`
	Sent    schema.EpochMillis `json:"timestamp_send"`
	IsMe    bool               `json:"isMe"`
}

// Chat is the detail of a chat with its latest messages.
type Chat struct {
	ID           int64            `json:"id" validate:"required"`
	RegDate      schema.Timestamp `json:"reg_date"`
	LastMessages []ChatMessage    `json:"last_messages"`
}

type chatResponse struct {
	Chat Chat `json:"chat" validate:"required"`
}

// MessagesRequest selects a page of messages of one chat.
type MessagesRequest struct {
	ChatID int64 `json:"id_chat"`
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
}

// MessageList is one page of messages. Total is the number of messages.
type MessageList struct {
	ChatID   int64         `json:"id_chat"`
	Messages []ChatMessage `json:"messages"`
	Total    int           `json:"total" validate:"gte=0"`
}

// Service is a parking amenity.
type Service struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	CategoryID int64  `json:"id_category"`
	IsActive   bool   `json:"isActive"`
}

// ServiceCategory groups amenities.
type ServiceCategory struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Services []Service `json:"services"`
}

type servicesResponse struct {
	Services []ServiceCategory `json:"services"`
}

type uploadResponse struct {
	FilesPath []string `json:"files_path"`
}
