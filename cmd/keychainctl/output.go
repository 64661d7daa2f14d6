package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"cloud-keychain/internal/keychain"
	"cloud-keychain/internal/totp"
)

var now = time.Now

var (
	magenta = color.New(color.FgMagenta).SprintfFunc()
	blue    = color.New(color.FgBlue).SprintfFunc()
	red     = color.New(color.FgRed).SprintfFunc()
	green   = color.New(color.FgGreen).SprintfFunc()
)

const redacted = "<redacted>"

// formatItem prints an unlocked item. Password fields are redacted unless
// print is set.
func formatItem(w io.Writer, it *keychain.Item, o *keychain.Overview, d *keychain.Details, print bool) {
	title := o.Title
	if it.Trashed() {
		title += " " + red("(trashed)")
	}
	fmt.Fprintf(w, "%s %s\n", green("%s", title), blue("%s", it.UUID()))

	rows := [][2]string{{"category", it.CategoryName()}}
	if o.URL != "" {
		rows = append(rows, [2]string{"url", o.URL})
	}
	for _, f := range d.Fields {
		name := f.Name
		if name == "" {
			name = f.Designation
		}
		value := f.Value
		if f.Type == "P" && !print {
			value = redacted
		}
		rows = append(rows, [2]string{name, value})
	}
	if secret, ok := d.Field("totp"); ok {
		rows = append(rows, [2]string{"one-time code", otpCode(secret)})
	}
	if d.NotesPlain != "" {
		rows = append(rows, [2]string{"notes", d.NotesPlain})
	}
	rows = append(rows, [2]string{"updated", time.Unix(it.Updated(), 0).UTC().Format(time.RFC3339)})

	width := 0
	for _, r := range rows {
		if len(r[0]) > width {
			width = len(r[0])
		}
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %s %s\n", magenta("%*s", width, r[0]), r[1])
	}
}

func formatList(w io.Writer, items []*keychain.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no items")
		return
	}
	for _, it := range items {
		cat := it.CategoryName()
		if cat == "" {
			cat = it.Category()
		}
		title := it.Title()
		if title == "" {
			title = red("<locked>")
		}
		line := strings.Join([]string{blue("%s", it.UUID()), magenta("%-20s", cat), title}, "  ")
		if it.Trashed() {
			line += " " + red("(trashed)")
		}
		fmt.Fprintln(w, line)
	}
}

func otpCode(secret string) string {
	p, err := totp.Parse(secret)
	if err != nil {
		return red("invalid secret")
	}
	code, left := p.Code(now())
	return fmt.Sprintf("%s (%ds left)", code, int(left/time.Second))
}
