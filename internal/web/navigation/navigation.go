// Package navigation builds the application picker shown on the index
// page from the caller's rights snapshot.
package navigation

import (
	"context"

	"github.com/dinesh-gnapitech/insite/internal/auth"
)

// Entry is one application link on the index page.
type Entry struct {
	// Name is the internal application name.
	Name string
	// Title is the label shown to the user.
	Title string
	// URL is the application's page.
	URL string
}

// ForUser lists the accessible applications as index entries, in
// snapshot (sorted) order.
func ForUser(ctx context.Context, u *auth.CurrentUser) ([]Entry, error) {
	names, err := u.ApplicationNames(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(names))

	for _, name := range names {
		entries = append(entries, Entry{
			Name:  name,
			Title: name,
			URL:   "/" + name + ".html",
		})
	}

	return entries, nil
}
