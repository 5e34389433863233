package domain

import "time"

type PlaceType string

const (
	PlaceGrocery    PlaceType = "grocery"
	PlaceRestaurant PlaceType = "restaurant"
	PlaceButcher    PlaceType = "butcher"
	PlaceBakery     PlaceType = "bakery"
	PlaceMarket     PlaceType = "market"
)

func (t PlaceType) Valid() bool {
	switch t {
	case PlaceGrocery, PlaceRestaurant, PlaceButcher, PlaceBakery, PlaceMarket:
		return true
	}
	return false
}

// HourWindow is an opening window for one weekday, "HH:MM" local time.
type HourWindow struct {
	Open  string
	Close string
}

type Place struct {
	ID             int64
	Name           string
	City           string
	Region         string
	PostalCode     string
	Lat, Lon       *float64
	Type           PlaceType
	Specialization string

	AcceptsCash       bool
	AcceptsCard       bool
	AcceptsMobilePay  bool
	DeliveryAvailable bool

	// Hours is indexed by time.Weekday; nil means closed or unknown for that day.
	Hours [7]*HourWindow

	// Derived fields. Owned by the trust aggregator; never written directly.
	Rating      float64
	ReviewCount int

	ViewCount     int64
	OwnerVerified bool
	OwnerUserID   *int64

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (p Place) Deleted() bool { return p.DeletedAt != nil }
