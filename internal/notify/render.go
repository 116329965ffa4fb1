// Package notify turns farm notifications into chat messages and delivers
// them.
package notify

import (
	"fmt"
	"strconv"
	"strings"

	"ffarm/internal/farm"
)

var flavorText = map[farm.HarvestEvent]string{
	farm.EventExtremeDisaster: "🌪️ Extreme disaster! All your crops have been destroyed!",
	farm.EventMildDisaster:    "🌪️ Mild disaster! Half of your crops have been destroyed!",
	farm.EventMinimumHarvest:  "🌾 Low season! Your crops have been grown at a minimum rate.",
	farm.EventNormalSeason:    "🌾 Normal season! Your crops have been grown at a normal rate.",
	farm.EventGoodSeason:      "🌾 Good season! Your crops have been grown at a good rate.",
}

// Render produces the user-facing text for n.
func Render(n farm.Notification) string {
	switch n.Kind {
	case farm.KindHarvestEvent:
		if text, ok := flavorText[n.Event]; ok {
			return text
		}
		return "🌾 Your crops have been harvested."
	case farm.KindHarvested:
		return fmt.Sprintf("You have successfully harvested %s %s(s) for $%s! Happy harvesting! 🌾",
			commas(n.Quantity), n.PlantName, commas(n.Amount))
	case farm.KindManagerHarvested:
		return fmt.Sprintf("Manager has directed to harvest %s %s(s) and sell them for $%s!",
			commas(n.Quantity), n.PlantName, commas(n.Amount))
	case farm.KindPayroll:
		return fmt.Sprintf("Manager payroll of $%s has been deducted from your account.", commas(n.Amount))
	case farm.KindCropsReady:
		return "Your crops are ready for harvest! 🌾"
	case farm.KindPlanted:
		return fmt.Sprintf("You planted %s %s %s(s) for $%s.", commas(n.Quantity), n.Emoji, n.PlantName, commas(n.Amount))
	case farm.KindInsufficientBalance:
		return "You do not have enough balance to plant more crops."
	case farm.KindInsufficientSlots:
		return "You do not have enough available slots to plant more crops."
	case farm.KindUpgradePurchased:
		return fmt.Sprintf("Congratulations! You have successfully upgraded your %s to level %d - %s! 🎉",
			n.Category, n.Level, n.Text)
	case farm.KindUpgradeFailed:
		return "You do not have enough balance to purchase this upgrade."
	case farm.KindRegistered:
		return fmt.Sprintf("Welcome to the farm! $%s has been added to your account.", commas(n.Amount))
	case farm.KindDataError:
		return "Error: Plant not found."
	case farm.KindAnnouncement:
		return "📢 " + n.Text
	default:
		return n.Text
	}
}

func commas(v int64) string {
	s := strconv.FormatInt(v, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
