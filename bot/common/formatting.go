package common

import (
	"fmt"
	"strings"
	"time"
)

// FormatAmount formats a coin amount with thousand separators
func FormatAmount(amount int64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%d", amount)
	n := len(str)
	if n > 3 {
		var result strings.Builder
		for i, digit := range str {
			if i > 0 && (n-i)%3 == 0 {
				result.WriteRune(',')
			}
			result.WriteRune(digit)
		}
		str = result.String()
	}

	if negative {
		return "-" + str
	}
	return str
}

// FormatCoins renders an amount with the currency suffix
func FormatCoins(amount int64) string {
	return fmt.Sprintf("**%s coins**", FormatAmount(amount))
}

// FormatDuration renders a duration in the largest sensible unit
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Round(time.Second).Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Round(time.Minute).Minutes()))
	default:
		h := int(d.Hours())
		m := int(d.Minutes()) - h*60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh%dm", h, m)
	}
}

// FormatDiscordTimestamp formats a time as a Discord timestamp that displays
// in the reader's local timezone. Format types: "t" short time, "T" long
// time, "d" short date, "D" long date, "f" short date/time, "F" long
// date/time, "R" relative.
func FormatDiscordTimestamp(t time.Time, format string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), format)
}

// Mention renders a user mention from a numeric id
func Mention(userID int64) string {
	return fmt.Sprintf("<@%d>", userID)
}

// ChannelMention renders a channel mention from a numeric id
func ChannelMention(channelID int64) string {
	return fmt.Sprintf("<#%d>", channelID)
}

// RoleMention renders a role mention from a numeric id
func RoleMention(roleID int64) string {
	return fmt.Sprintf("<@&%d>", roleID)
}
