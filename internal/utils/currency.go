package utils

import (
	"fmt"
	"math"
)

// Round2 rounds a monetary amount to 2 decimal places.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

func FormatCurrency(amount float64, currencyCode string) string {
	symbol := "$"
	switch currencyCode {
	case "EUR":
		symbol = "€"
	case "GBP":
		symbol = "£"
	case "BRL":
		symbol = "R$"
	}
	return fmt.Sprintf("%s%.2f", symbol, Round2(amount))
}

// FormatDistance renders meters as a human string.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// FormatDuration renders seconds as a human string.
func FormatDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%d s", seconds)
	}
	minutes := (seconds + 30) / 60
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	return fmt.Sprintf("%dh %02dmin", minutes/60, minutes%60)
}
