package domain

import (
	"time"

	"github.com/google/uuid"
)

type Order struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Description  string
	BuyerEmail   string
	BuyerName    string
	BuyerAddress string
	BuyerZip     string
	BuyerCity    string
	BuyerCountry string
	Language     string
	CreatedAt    time.Time
}

// CustomerData is what the gateway wants to know about the buyer.
// Empty fields are left out of the registration request.
type CustomerData struct {
	Email    string
	Language string
	Client   string
	Address  string
	Zip      string
	City     string
	Country  string
}

func (o Order) CustomerData() CustomerData {
	return CustomerData{
		Email:    o.BuyerEmail,
		Language: o.Language,
		Client:   o.BuyerName,
		Address:  o.BuyerAddress,
		Zip:      o.BuyerZip,
		City:     o.BuyerCity,
		Country:  o.BuyerCountry,
	}
}
