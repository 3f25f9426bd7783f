package contacts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/emersion/go-vcard"
	"github.com/emersion/go-webdav/carddav"
)

type fakeBook struct {
	books   []carddav.AddressBook
	cards   []vcard.Card
	queries int
	lastFN  string
}

func (f *fakeBook) FindCurrentUserPrincipal(context.Context) (string, error) {
	return "/principals/ecco6/", nil
}

func (f *fakeBook) FindAddressBookHomeSet(_ context.Context, principal string) (string, error) {
	return principal + "contacts/", nil
}

func (f *fakeBook) FindAddressBooks(context.Context, string) ([]carddav.AddressBook, error) {
	return f.books, nil
}

func (f *fakeBook) QueryAddressBook(_ context.Context, path string, q *carddav.AddressBookQuery) ([]carddav.AddressObject, error) {
	f.queries++
	want := strings.ToLower(q.PropFilters[0].TextMatches[0].Text)
	f.lastFN = want
	var out []carddav.AddressObject
	for i, c := range f.cards {
		if strings.Contains(strings.ToLower(c.PreferredValue(vcard.FieldFormattedName)), want) {
			out = append(out, carddav.AddressObject{Path: path + string(rune('a'+i)) + ".vcf", Card: c})
		}
	}
	return out, nil
}

func card(name string, emails ...string) vcard.Card {
	c := vcard.Card{}
	c.SetValue(vcard.FieldFormattedName, name)
	for _, e := range emails {
		c.AddValue(vcard.FieldEmail, e)
	}
	return c
}

func newTestDirectory(f *fakeBook, collection string) *Directory {
	return newDirectory(f, collection, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLookup_BestMatchFirst(t *testing.T) {
	f := &fakeBook{
		books: []carddav.AddressBook{{Path: "/contacts/default/", Name: "Default"}},
		cards: []vcard.Card{
			card("Annabelle Lind", "annabelle@example.com"),
			card("Anna Svensson", "anna@example.com", "anna.work@example.com"),
			card("Bob", "bob@example.com"),
		},
	}
	d := newTestDirectory(f, "")

	got, err := d.Lookup(context.Background(), "Anna Svensson")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Anna Svensson" || len(got[0].Emails) != 2 {
		t.Errorf("Lookup = %+v", got)
	}

	got, _ = d.Lookup(context.Background(), "anna")
	if len(got) != 2 || got[0].Name != "Anna Svensson" {
		t.Errorf("Lookup(anna) = %+v, want Anna Svensson first", got)
	}
}

func TestResolveEmail(t *testing.T) {
	f := &fakeBook{
		books: []carddav.AddressBook{{Path: "/contacts/default/"}},
		cards: []vcard.Card{
			card("Anna Svensson", "anna@example.com"),
			card("Carl Nomail"),
		},
	}
	d := newTestDirectory(f, "")
	ctx := context.Background()

	if got, err := d.ResolveEmail(ctx, "Anna"); err != nil || got != "anna@example.com" {
		t.Errorf("ResolveEmail(Anna) = %q, %v", got, err)
	}
	if _, err := d.ResolveEmail(ctx, "Carl"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("ResolveEmail(Carl) error = %v, want ErrNoMatch", err)
	}
	if _, err := d.ResolveEmail(ctx, "Zed"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("ResolveEmail(Zed) error = %v, want ErrNoMatch", err)
	}
}

func TestAddressBookSelection(t *testing.T) {
	books := []carddav.AddressBook{
		{Path: "/contacts/work/", Name: "Work"},
		{Path: "/contacts/family/", Name: "Family"},
	}

	d := newTestDirectory(&fakeBook{books: books}, "family")
	path, err := d.addressBookPath(context.Background())
	if err != nil || path != "/contacts/family/" {
		t.Errorf("addressBookPath = %q, %v", path, err)
	}

	d = newTestDirectory(&fakeBook{books: books}, "Friends")
	if _, err := d.addressBookPath(context.Background()); err == nil {
		t.Error("missing collection should fail")
	}

	d = newTestDirectory(&fakeBook{}, "")
	if _, err := d.addressBookPath(context.Background()); err == nil {
		t.Error("empty home set should fail")
	}
}
