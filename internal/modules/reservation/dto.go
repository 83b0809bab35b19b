package reservation

import "time"

const dateLayout = "2006-01-02"

type CreateRequest struct {
	AccommodationID int64  `json:"accommodation_id" binding:"required"`
	CheckIn         string `json:"check_in" binding:"required"`
	CheckOut        string `json:"check_out" binding:"required"`
	GuestName       string `json:"guest_name" binding:"required"`
	GuestPhone      string `json:"guest_phone" binding:"required"`
	GuestEmail      string `json:"guest_email"`
	GuestsCount     int    `json:"guests_count" binding:"required"`
	Channel         string `json:"channel_source"`
}

// Dates parses and truncates the requested range to whole days.
func (r CreateRequest) Dates() (checkIn, checkOut time.Time, err error) {
	checkIn, err = time.Parse(dateLayout, r.CheckIn)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	checkOut, err = time.Parse(dateLayout, r.CheckOut)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return checkIn, checkOut, nil
}

type CancelRequest struct {
	Reason string `json:"reason"`
}
