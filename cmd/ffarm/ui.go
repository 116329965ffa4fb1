package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"ffarm/internal/farm"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Fprintln(os.Stderr, msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func renderStatus(s farm.FarmStatus) {
	accent.Println("\n== YOUR FARM ==")
	manager := "off"
	if s.ManagerOn {
		manager = "on"
	}
	fmt.Printf("Balance:        %s\n", comma(s.Balance))
	fmt.Printf("Plot:           level %d, %s / %s slots used\n", s.PlotTier, comma(s.OccupiedSlots), comma(s.AvailableSlots))
	fmt.Printf("Manager:        level %d (%s)\n", s.ManagerTier, manager)

	fmt.Println()
	accent.Println("Crops")
	if len(s.Batches) == 0 {
		printInfo("Nothing planted. Try `ffarm plants`.")
		fmt.Println()
		return
	}
	fmt.Printf("%-6s %-16s %10s  %s\n", "BATCH", "PLANT", "QTY", "STATUS")
	for _, b := range s.Batches {
		label := b.Label
		if b.Status == farm.StatusReady {
			label = success.Sprint(label)
		}
		fmt.Printf("%-6d %-16s %10s  %s\n", b.BatchID, truncate(b.Emoji+" "+b.PlantName, 16), comma(b.Quantity), label)
	}
	fmt.Println()
}

func renderPlants(plants []farm.PlantDefinition) {
	accent.Println("\n== PLANTS ==")
	if len(plants) == 0 {
		printInfo("No plants available.")
		return
	}
	fmt.Printf("%-4s %-16s %-12s %8s %8s %10s\n", "ID", "NAME", "CATEGORY", "SEED", "SELL", "GROWS IN")
	for _, p := range plants {
		fmt.Printf("%-4d %-16s %-12s %8s %8s %10s\n",
			p.ID,
			truncate(p.Emoji+" "+p.Name, 16),
			truncate(p.Category, 12),
			comma(p.SeedCost),
			comma(p.SellPrice),
			p.HarvestDuration.String(),
		)
	}
	fmt.Println()
}

func renderHarvest(res farm.HarvestResult) {
	if len(res.Outcomes) == 0 && len(res.DataErrors) == 0 {
		printInfo("Nothing is ready to harvest yet.")
		return
	}
	accent.Println("\n== HARVEST ==")
	for _, o := range res.Outcomes {
		event := strings.ReplaceAll(string(o.Flavor), "_", " ")
		fmt.Printf("%-16s %-18s %8s units  %s\n", truncate(o.PlantName, 16), event, comma(o.Units), colorizeAmount(o.Revenue))
	}
	for _, msg := range res.DataErrors {
		printWarn(msg)
	}
	fmt.Printf("\nRevenue: %s\n", colorizeAmount(res.Revenue))
	if res.Payroll > 0 {
		fmt.Printf("Payroll: %s\n", colorizeAmount(-res.Payroll))
	}
	fmt.Println()
}

func renderOffer(o farm.UpgradeOffer) {
	accent.Printf("\n== %s UPGRADE ==\n", strings.ToUpper(string(o.Category)))
	fmt.Printf("Current level:  %d\n", o.CurrentLevel)
	fmt.Printf("Next:           #%d level %d, %s\n", o.Next.ID, o.Next.Level, o.Next.Description)
	fmt.Printf("Price:          %s\n\n", comma(o.Next.Price))
}

func renderCropUnlocks(unlocks []farm.CropUnlock) {
	accent.Println("\n== CROP UNLOCKS ==")
	if len(unlocks) == 0 {
		printInfo("No crop unlocks in the catalog.")
		return
	}
	fmt.Printf("%-4s %-24s %12s  %s\n", "ID", "UNLOCK", "PRICE", "OWNED")
	for _, u := range unlocks {
		owned := danger.Sprint("no")
		if u.Owned {
			owned = success.Sprint("yes")
		}
		fmt.Printf("%-4d %-24s %12s  %s\n", u.Upgrade.ID, truncate(u.Upgrade.Description, 24), comma(u.Upgrade.Price), owned)
	}
	fmt.Println()
}

func renderLeaderboard(rows []farm.LeaderboardRow) {
	accent.Println("\n== LEADERBOARD ==")
	if len(rows) == 0 {
		printInfo("No farmers yet.")
		return
	}
	fmt.Printf("%-6s %-20s %14s\n", "RANK", "FARMER", "BALANCE")
	for _, row := range rows {
		fmt.Printf("%-6d %-20s %14s\n", row.Rank, truncate(row.Username, 20), comma(row.Balance))
	}
	fmt.Println()
}

func renderLedger(entries []farm.LedgerEntry) {
	accent.Println("\n== LEDGER ==")
	if len(entries) == 0 {
		printInfo("No transactions yet.")
		return
	}
	fmt.Printf("%-20s %-18s %14s  %s\n", "WHEN", "REASON", "AMOUNT", "DESCRIPTION")
	for _, e := range entries {
		fmt.Printf("%-20s %-18s %14s  %s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			truncate(e.Reason, 18),
			colorizeAmount(e.Amount),
			e.Description,
		)
	}
	fmt.Println()
}

func colorizeAmount(v int64) string {
	text := comma(v)
	switch {
	case v > 0:
		return success.Sprint("+" + text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func comma(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	b.WriteString(sign)
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		b.WriteByte(',')
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
