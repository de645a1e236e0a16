package model

import (
	"math"
	"slices"
	"strings"
	"time"
)

const (
	SeatUnitPrice     = 700.0
	BedFrameUnitPrice = 800.0
	MinItemCount      = 1
	MaxItemCount      = 10
)

var MattressPrices = map[string]float64{
	"Single": 1500,
	"Double": 2000,
	"King":   2500,
}

var SeatTypes = []string{"Car Seats", "Office Chairs", "Dining Chairs", "Sofa / Couch", "Mixed"}

var TimeSlots = []string{
	"8:00 AM", "9:00 AM", "10:00 AM", "11:00 AM", "12:00 PM",
	"1:00 PM", "2:00 PM", "3:00 PM", "4:00 PM",
}

func IsTimeSlot(slot string) bool {
	return slices.Contains(TimeSlots, slot)
}

// IsServiceDay reports whether bookings are taken on the given date. The
// business is closed on Sundays.
func IsServiceDay(date time.Time) bool {
	return date.Weekday() != time.Sunday
}

// MattressSize extracts the size from a mattress subtype such as
// "Double" or "Mattress (King)".
func MattressSize(itemType string) (string, bool) {
	lower := strings.ToLower(itemType)
	for _, size := range []string{"Single", "Double", "King"} {
		if strings.Contains(lower, strings.ToLower(size)) {
			return size, true
		}
	}
	return "", false
}

// UnitPrice returns the per-item price for a service and subtype.
func UnitPrice(service ServiceType, itemType string) (float64, bool) {
	switch service {
	case ServiceSeats:
		return SeatUnitPrice, true
	case ServiceBedFrame:
		return BedFrameUnitPrice, true
	case ServiceMattress:
		size, ok := MattressSize(itemType)
		if !ok {
			return 0, false
		}
		return MattressPrices[size], true
	}
	return 0, false
}

func Quote(service ServiceType, itemType string, count int) (float64, bool) {
	unit, ok := UnitPrice(service, itemType)
	if !ok || count < MinItemCount || count > MaxItemCount {
		return 0, false
	}
	return RoundAmount(unit * float64(count)), true
}

func RoundAmount(v float64) float64 {
	return math.Round(v*100) / 100
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

// SumAmounts adds amounts in integer cents so that repeated sums of
// two-decimal values do not drift.
func SumAmounts(values ...float64) float64 {
	var cents int64
	for _, v := range values {
		cents += toCents(v)
	}
	return float64(cents) / 100
}
