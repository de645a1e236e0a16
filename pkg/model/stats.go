package model

import (
	"sort"
	"time"
)

type DashboardStats struct {
	Total        int     `json:"total"`
	ThisMonth    int     `json:"thisMonth"`
	Pending      int     `json:"pending"`
	Accepted     int     `json:"accepted"`
	Completed    int     `json:"completed"`
	Declined     int     `json:"declined"`
	TotalRevenue float64 `json:"totalRevenue"`
	MonthRevenue float64 `json:"monthRevenue"`
	TotalSeats   int     `json:"totalSeats"`
}

// FilteredStats summarises an admin listing before pagination.
type FilteredStats struct {
	Total     int     `json:"total"`
	Pending   int     `json:"pending"`
	Accepted  int     `json:"accepted"`
	Completed int     `json:"completed"`
	Declined  int     `json:"declined"`
	Revenue   float64 `json:"revenue"`
}

type Client struct {
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	County      string    `json:"county"`
	Area        string    `json:"area"`
	Bookings    int       `json:"bookings"`
	TotalSpent  float64   `json:"totalSpent"`
	LastBooking time.Time `json:"lastBooking"`
}

// Revenue sums the totals of paid bookings only.
func Revenue(bookings []*Booking) float64 {
	var cents int64
	for _, b := range bookings {
		if b.PaymentStatus == PaymentPaid {
			cents += toCents(b.Total)
		}
	}
	return float64(cents) / 100
}

func ComputeFilteredStats(bookings []*Booking) FilteredStats {
	stats := FilteredStats{Total: len(bookings)}
	for _, b := range bookings {
		switch b.BookingStatus {
		case BookingPending:
			stats.Pending++
		case BookingAccepted:
			stats.Accepted++
		case BookingCompleted:
			stats.Completed++
		case BookingDeclined:
			stats.Declined++
		}
	}
	stats.Revenue = Revenue(bookings)
	return stats
}

// ComputeDashboardStats counts bookings created in the calendar month of now
// as "this month".
func ComputeDashboardStats(bookings []*Booking, now time.Time) DashboardStats {
	filtered := ComputeFilteredStats(bookings)
	stats := DashboardStats{
		Total:        filtered.Total,
		Pending:      filtered.Pending,
		Accepted:     filtered.Accepted,
		Completed:    filtered.Completed,
		Declined:     filtered.Declined,
		TotalRevenue: filtered.Revenue,
	}

	var month []*Booking
	for _, b := range bookings {
		stats.TotalSeats += b.SeatCount
		created := b.CreatedAt.In(now.Location())
		if created.Year() == now.Year() && created.Month() == now.Month() {
			month = append(month, b)
		}
	}
	stats.ThisMonth = len(month)
	stats.MonthRevenue = Revenue(month)
	return stats
}

// GroupClients aggregates bookings per customer email, newest customer
// activity first. TotalSpent covers every booked total, paid or not.
// Contact details come from the most recent booking.
func GroupClients(bookings []*Booking) []Client {
	byEmail := make(map[string]*Client)
	spent := make(map[string]int64)

	for _, b := range bookings {
		c, ok := byEmail[b.Email]
		if !ok {
			c = &Client{Email: b.Email}
			byEmail[b.Email] = c
		}
		c.Bookings++
		spent[b.Email] += toCents(b.Total)
		if !ok || b.CreatedAt.After(c.LastBooking) {
			c.Name, c.Phone, c.County, c.Area = b.Name, b.Phone, b.County, b.Area
			c.LastBooking = b.CreatedAt
		}
	}

	clients := make([]Client, 0, len(byEmail))
	for email, c := range byEmail {
		c.TotalSpent = float64(spent[email]) / 100
		clients = append(clients, *c)
	}
	sort.Slice(clients, func(i, j int) bool {
		if clients[i].LastBooking.Equal(clients[j].LastBooking) {
			return clients[i].Email < clients[j].Email
		}
		return clients[i].LastBooking.After(clients[j].LastBooking)
	})
	return clients
}

// SortNewestFirst orders bookings by creation time, newest first.
func SortNewestFirst(bookings []*Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})
}
