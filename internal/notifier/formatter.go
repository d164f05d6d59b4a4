package notifier

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"TrendSentinel/internal/model"
)

const noDataText = "no data available for this pair"

var signalIcons = map[model.SignalKind]string{
	model.SignalBullishReversal:       "🟢",
	model.SignalBearishReversal:       "🔴",
	model.SignalUptrendContinuation:   "📈",
	model.SignalDowntrendContinuation: "📉",
	model.SignalBuyZone:               "🛒",
	model.SignalOverboughtWarning:     "⚠️",
	model.SignalNearSwingHigh:         "🔺",
	model.SignalNearSwingLow:          "🔻",
}

// FormatPairReport renders one (ticker, timeframe) result as Telegram HTML.
func FormatPairReport(p *model.PairResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>%s</b> · %s (%s/%s)\n",
		html.EscapeString(p.Ticker), html.EscapeString(p.Timeframe.Label), p.Timeframe.Interval, p.Timeframe.Lookback))

	if !p.Available() {
		b.WriteString("  " + noDataText)
		if p.Reason != "" {
			b.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(p.Reason)))
		}
		b.WriteString("\n")
		return b.String()
	}

	if last, ok := p.Series.Last(); ok {
		b.WriteString(fmt.Sprintf("  Close: %.2f (%s)\n", last.Close, last.Time.Format("2006-01-02 15:04")))
	}
	if set := p.Indicators; set != nil && set.Len() > 0 {
		fast, slow, rsi := set.At(-1)
		b.WriteString(fmt.Sprintf("  EMA%d: %s | EMA%d: %s | RSI%d: %s\n",
			set.EMAFastPeriod, fast, set.EMASlowPeriod, slow, set.RSIPeriod, rsi))
	}

	if len(p.Signals) == 0 {
		b.WriteString("  no signals\n")
		return b.String()
	}
	for _, s := range p.Signals {
		b.WriteString(fmt.Sprintf("  %s %s\n", signalIcons[s.Kind], html.EscapeString(s.Message)))
	}
	return b.String()
}

// FormatTickerReport renders every timeframe of a ticker in configured order.
func FormatTickerReport(t *model.TickerResult) string {
	var b strings.Builder
	for i := range t.Timeframes {
		b.WriteString(FormatPairReport(&t.Timeframes[i]))
	}
	return b.String()
}

// FormatBatchReport renders a full batch with a summary header.
func FormatBatchReport(batch *model.BatchResult, at time.Time) string {
	var b strings.Builder
	total, failed := batch.Pairs()
	signals := 0
	for i := range batch.Tickers {
		signals += batch.Tickers[i].SignalCount()
	}

	b.WriteString(fmt.Sprintf("📊 <b>TrendSentinel</b> | %s\n", at.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Tickers: %d | Signals: %d", len(batch.Tickers), signals))
	if failed > 0 {
		b.WriteString(fmt.Sprintf(" | Unavailable: %d/%d", failed, total))
	}
	b.WriteString("\n")

	for i := range batch.Tickers {
		b.WriteString("\n")
		b.WriteString(FormatTickerReport(&batch.Tickers[i]))
	}
	return b.String()
}

// FormatTimeframes lists the configured timeframes.
func FormatTimeframes(tfs []model.Timeframe) string {
	var b strings.Builder
	b.WriteString("🕒 <b>Timeframes</b>\n\n")
	for _, tf := range tfs {
		b.WriteString(fmt.Sprintf("• %s: %s over %s\n", html.EscapeString(tf.Label), tf.Interval, tf.Lookback))
	}
	return b.String()
}

var tagStripper = strings.NewReplacer("<b>", "", "</b>", "", "<i>", "", "</i>", "")

// PlainText converts a formatted report into console text.
func PlainText(s string) string {
	return html.UnescapeString(tagStripper.Replace(s))
}

// WriteJSON writes the batch for chart renderers. Undefined indicator values encode as null.
func WriteJSON(w io.Writer, batch *model.BatchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(batch); err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	return nil
}

// SplitMessage breaks text into chunks of at most limit bytes on line boundaries.
// A single line longer than limit is cut.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	var cur strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			if cur.Len() > 0 {
				chunks = append(chunks, cur.String())
				cur.Reset()
			}
			chunks = append(chunks, line[:limit])
			line = line[limit:]
		}
		if cur.Len()+len(line) > limit {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
