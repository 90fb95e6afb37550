package notify

import (
	"fmt"
	"html"
	"strings"

	"gradewatch/internal/course"
)

type tier struct {
	emoji    string
	headline string
	tone     string
	band     string
}

// tiers are keyed by letter grade, F doubles as the fallback for anything unrecognized.
var tiers = map[string]tier{
	"A":  {"🏆🔥", "Outstanding result", "Top of the scale, well earned.", "90-100%"},
	"A-": {"🌟", "Excellent result", "Just short of the top grade.", "86-89%"},
	"B+": {"👏", "Very good result", "Solid work all trimester.", "82-85%"},
	"B":  {"👍", "Good result", "Comfortably above average.", "78-81%"},
	"B-": {"🙂", "Decent result", "A fair grade with room to grow.", "74-77%"},
	"C+": {"😐", "Average result", "Passed, next time aim higher.", "70-73%"},
	"C":  {"😕", "Below average", "This one needs a closer look.", "66-69%"},
	"C-": {"😟", "Weak result", "Worth reviewing what went wrong.", "62-65%"},
	"D+": {"😰", "Poor result", "Barely above the passing line.", "58-61%"},
	"D":  {"😵", "Minimum pass", "Passed by the smallest margin.", "55-57%"},
	"F":  {"💀", "Failed", "Time to plan the retake.", "below 55%"},
}

// Grades lists every grade with a dedicated message, best first.
var Grades = []string{"A", "A-", "B+", "B", "B-", "C+", "C", "C-", "D+", "D", "F"}

func tierOf(grade string) tier {
	t, ok := tiers[strings.ToUpper(strings.TrimSpace(grade))]
	if !ok {
		return tiers["F"]
	}
	return t
}

// Render formats the Telegram HTML message announcing a published grade.
// Every portal-supplied value is escaped.
func Render(r course.Record) string {
	t := tierOf(r.Grade)
	esc := func(s string) string {
		return html.EscapeString(strings.TrimSpace(s))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n", t.emoji, t.headline)
	fmt.Fprintf(&b, "%s (%s)\n\n", t.tone, t.band)
	fmt.Fprintf(&b, "📚 Course: <b>%s</b>\n", esc(r.CourseName))
	fmt.Fprintf(&b, "🆔 Course ID: <b>%s</b>\n", esc(r.CourseID))
	fmt.Fprintf(&b, "📅 Trimester: %s\n", esc(r.Trimester))
	fmt.Fprintf(&b, "💳 Credit: %s\n", esc(r.Credit))
	fmt.Fprintf(&b, "🏅 Grade: <b>%s</b>\n", esc(r.Grade))
	fmt.Fprintf(&b, "📊 Point: <b>%s</b>", esc(r.Point))
	return b.String()
}

// RenderAlert formats an operator alert.
func RenderAlert(text string) string {
	return fmt.Sprintf("⚠️ <b>gradewatch</b>\n%s", html.EscapeString(text))
}
