// Package contacts looks people up in a CardDAV address book so the
// assistant can turn "send an e-mail to Anna" into an address.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/carddav"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/config"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/httpkit"
	"github.com/Lellalu/II1302-Ecco6-Button/internal/match"
)

// ErrNoMatch is returned when no contact with an address matches a name.
var ErrNoMatch = errors.New("no matching contact")

// minNameRatio is the similarity a contact name needs to be accepted
// as the person the user meant.
const minNameRatio = 0.6

// Contact is one address book entry.
type Contact struct {
	Name   string
	Emails []string
}

// addressBook is the subset of the CardDAV client used here.
type addressBook interface {
	FindCurrentUserPrincipal(ctx context.Context) (string, error)
	FindAddressBookHomeSet(ctx context.Context, principal string) (string, error)
	FindAddressBooks(ctx context.Context, homeSet string) ([]carddav.AddressBook, error)
	QueryAddressBook(ctx context.Context, path string, query *carddav.AddressBookQuery) ([]carddav.AddressObject, error)
}

// Directory resolves names against one address book.
type Directory struct {
	client     addressBook
	collection string
	logger     *slog.Logger

	mu   sync.Mutex
	path string // discovered address book, cached
}

// New connects a directory to the configured CardDAV server.
func New(cfg config.DAVConfig, logger *slog.Logger) (*Directory, error) {
	var hc webdav.HTTPClient = httpkit.NewClient(httpkit.WithTimeout(30*time.Second), httpkit.WithLogger(logger))
	if cfg.Username != "" {
		hc = webdav.HTTPClientWithBasicAuth(hc, cfg.Username, cfg.Password)
	}
	c, err := carddav.NewClient(hc, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("carddav client: %w", err)
	}
	return newDirectory(c, cfg.Collection, logger), nil
}

func newDirectory(c addressBook, collection string, logger *slog.Logger) *Directory {
	return &Directory{client: c, collection: collection, logger: logger}
}

// addressBookPath discovers the address book once and caches its path.
func (d *Directory) addressBookPath(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.path != "" {
		return d.path, nil
	}

	principal, err := d.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("find principal: %w", err)
	}
	home, err := d.client.FindAddressBookHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("find address book home: %w", err)
	}
	books, err := d.client.FindAddressBooks(ctx, home)
	if err != nil {
		return "", fmt.Errorf("list address books: %w", err)
	}

	for _, b := range books {
		if d.collection == "" || strings.EqualFold(b.Name, d.collection) {
			d.path = b.Path
			d.logger.Debug("address book selected", "path", b.Path, "name", b.Name)
			return d.path, nil
		}
	}
	if d.collection != "" {
		return "", fmt.Errorf("address book %q not found", d.collection)
	}
	return "", fmt.Errorf("no address books under %s", home)
}

// Lookup returns contacts whose name contains name, best match first.
func (d *Directory) Lookup(ctx context.Context, name string) ([]Contact, error) {
	path, err := d.addressBookPath(ctx)
	if err != nil {
		return nil, err
	}

	objs, err := d.client.QueryAddressBook(ctx, path, &carddav.AddressBookQuery{
		DataRequest: carddav.AddressDataRequest{
			Props: []string{vcard.FieldFormattedName, vcard.FieldEmail},
		},
		PropFilters: []carddav.PropFilter{{
			Name:        vcard.FieldFormattedName,
			TextMatches: []carddav.TextMatch{{Text: name, MatchType: carddav.MatchContains}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("query address book: %w", err)
	}

	contacts := make([]Contact, 0, len(objs))
	for _, o := range objs {
		if c := fromCard(o.Card); strings.TrimSpace(c.Name) != "" {
			contacts = append(contacts, c)
		}
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		return match.Ratio(contacts[i].Name, name) > match.Ratio(contacts[j].Name, name)
	})
	return contacts, nil
}

// ResolveEmail returns the preferred address of the contact whose name
// is closest to name.
func (d *Directory) ResolveEmail(ctx context.Context, name string) (string, error) {
	contacts, err := d.Lookup(ctx, name)
	if err != nil {
		return "", err
	}
	for _, c := range contacts {
		if len(c.Emails) == 0 {
			continue
		}
		if match.Ratio(c.Name, name) >= minNameRatio || firstNameIs(c.Name, name) {
			return c.Emails[0], nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNoMatch, name)
}

// firstNameIs accepts a partial name such as "Anna" for "Anna Svensson".
func firstNameIs(full, name string) bool {
	fields := strings.Fields(full)
	return len(fields) > 0 && strings.EqualFold(fields[0], strings.TrimSpace(name))
}

func fromCard(card vcard.Card) Contact {
	c := Contact{Name: card.PreferredValue(vcard.FieldFormattedName)}
	if c.Name == "" {
		if n := card.Name(); n != nil {
			c.Name = strings.TrimSpace(n.GivenName + " " + n.FamilyName)
		}
	}
	if pref := card.PreferredValue(vcard.FieldEmail); pref != "" {
		c.Emails = append(c.Emails, pref)
	}
	for _, e := range card.Values(vcard.FieldEmail) {
		if e != "" && (len(c.Emails) == 0 || e != c.Emails[0]) {
			c.Emails = append(c.Emails, e)
		}
	}
	return c
}
