package notifier

import (
	"fmt"
	"html"
	"strings"

	"BreakoutSentinel/internal/model"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// FormatPrice renders a price as rupees with thousands separators, e.g. ₹1,234.50.
func FormatPrice(d decimal.Decimal) string {
	return "₹" + humanize.FormatFloat("#,###.##", d.Round(2).InexactFloat64())
}

// FormatSubject formats the email subject for an alert.
func FormatSubject(symbol model.Symbol) string {
	return fmt.Sprintf("Stock Alert: %s Crossed Last Month High!", symbol)
}

// FormatEmailBody formats the plain-text alert email.
func FormatEmailBody(a Alert) string {
	var b strings.Builder
	b.WriteString("Dear User,\n\n")
	b.WriteString("This is an automated alert from your Stock Monitor application.\n\n")
	b.WriteString(fmt.Sprintf("The stock %s has just crossed its last month's high.\n", a.Symbol))
	b.WriteString(fmt.Sprintf("  - Live Price: %s\n", FormatPrice(a.LivePrice)))
	b.WriteString(fmt.Sprintf("  - Last Month's High: %s\n", FormatPrice(a.LastMonthHigh)))
	if !a.DetectedAt.IsZero() {
		b.WriteString(fmt.Sprintf("  - Detected At: %s\n", a.DetectedAt.Format("2006-01-02 15:04:05 MST")))
	}
	b.WriteString("\nPlease check your trading platform for more details.\n\n")
	b.WriteString("Regards,\nYour Stock Monitor\n")
	return b.String()
}

// FormatTelegram formats an alert as a Telegram HTML message. Symbols such as
// M&M are entity-escaped.
func FormatTelegram(a Alert) string {
	e := model.CrossedEntry{Symbol: a.Symbol, LivePrice: a.LivePrice, LastMonthHigh: a.LastMonthHigh}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🚀 <b>%s</b> crossed last month's high\n\n", html.EscapeString(string(a.Symbol))))
	b.WriteString(fmt.Sprintf("Live: %s\n", FormatPrice(a.LivePrice)))
	b.WriteString(fmt.Sprintf("Last month high: %s (%+.2f%%)\n", FormatPrice(a.LastMonthHigh), e.PercentAbove().InexactFloat64()))
	return b.String()
}

// FormatCrossedList formats the current crossed set for a chat reply.
func FormatCrossedList(set model.CrossedSet) string {
	if len(set) == 0 {
		return "No stocks are above last month's high."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>Above last month's high</b> (%d)\n\n", len(set)))
	for _, e := range set.Sorted() {
		b.WriteString(fmt.Sprintf("%s: %s / %s\n", html.EscapeString(string(e.Symbol)), FormatPrice(e.LivePrice), FormatPrice(e.LastMonthHigh)))
	}
	return b.String()
}
