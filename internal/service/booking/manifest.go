package booking

import "github.com/Domenick1991/airport-booking/internal/domain"

// BuildManifest flattens bookings into one record per passenger, keeping booking order and
// passenger order within a booking. Bookings that are not confirmed are skipped.
func BuildManifest(bookings []domain.Booking) []domain.PassengerRecord {
	records := make([]domain.PassengerRecord, 0, len(bookings))
	for _, b := range bookings {
		if b.Status != domain.BookingStatusConfirmed {
			continue
		}
		var userName, userEmail string
		if b.User != nil {
			userName, userEmail = b.User.Name, b.User.Email
		}
		for _, p := range b.Passengers {
			records = append(records, domain.PassengerRecord{
				Passenger:        p,
				BookingReference: b.Reference,
				UserName:         userName,
				UserEmail:        userEmail,
			})
		}
	}
	return records
}
