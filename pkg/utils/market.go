package utils

import (
	"time"

	"pair-trader/internal/models"
)

// ChinaLocation is the timezone for the Shanghai/Shenzhen exchanges.
var ChinaLocation *time.Location

func init() {
	var err error
	ChinaLocation, err = time.LoadLocation("Asia/Shanghai")
	if err != nil {
		ChinaLocation = time.FixedZone("CST", 8*60*60)
	}
}

// A-share continuous trading sessions, minutes from midnight.
const (
	morningOpen    = 9*60 + 30
	morningClose   = 11*60 + 30
	afternoonOpen  = 13 * 60
	afternoonClose = 15 * 60
	auctionOpen    = 9*60 + 15
)

// MarketStatusAt returns the market session state at the given time.
func MarketStatusAt(t time.Time) models.MarketStatus {
	t = t.In(ChinaLocation)

	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return models.MarketClosed
	}

	minutes := t.Hour()*60 + t.Minute()
	switch {
	case minutes >= auctionOpen && minutes < morningOpen:
		return models.MarketAuction
	case minutes >= morningOpen && minutes < morningClose:
		return models.MarketOpen
	case minutes >= morningClose && minutes < afternoonOpen:
		return models.MarketLunch
	case minutes >= afternoonOpen && minutes < afternoonClose:
		return models.MarketOpen
	default:
		return models.MarketClosed
	}
}

// IsTradeTime returns true if t falls inside a continuous trading session.
func IsTradeTime(t time.Time) bool {
	return MarketStatusAt(t) == models.MarketOpen
}

// NextTradeTime advances t by step, then jumps forward to the next session
// open if the result lands outside trading hours. Used to drive simulated
// sessions over historical timestamps.
func NextTradeTime(t time.Time, step time.Duration) time.Time {
	next := t.Add(step)
	for !IsTradeTime(next) {
		next = nextSessionOpen(next)
	}
	return next
}

func nextSessionOpen(t time.Time) time.Time {
	t = t.In(ChinaLocation)
	minutes := t.Hour()*60 + t.Minute()

	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, ChinaLocation)
	if t.Weekday() != time.Saturday && t.Weekday() != time.Sunday {
		if minutes < morningOpen {
			return day.Add(time.Duration(morningOpen) * time.Minute)
		}
		if minutes < afternoonOpen {
			return day.Add(time.Duration(afternoonOpen) * time.Minute)
		}
	}

	next := day.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next.Add(time.Duration(morningOpen) * time.Minute)
}
