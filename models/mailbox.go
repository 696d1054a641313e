package models

import "fmt"

// View is a top-level mailbox section.
type View string

const (
	ViewInbox   View = "inbox"
	ViewStarred View = "starred"
	ViewSent    View = "sent"
	ViewTrash   View = "trash"
)

// ParseView validates a view name coming from a request. It returns the
// package constant, never s itself, so request buffers are not retained.
func ParseView(s string) (View, error) {
	switch s {
	case "", string(ViewInbox):
		return ViewInbox, nil
	case string(ViewStarred):
		return ViewStarred, nil
	case string(ViewSent):
		return ViewSent, nil
	case string(ViewTrash):
		return ViewTrash, nil
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// HasCategories reports whether the view is partitioned into categories.
func (v View) HasCategories() bool { return v == ViewInbox }

// Category is a sub-partition of the inbox, matched by label membership.
type Category string

const (
	CategoryPersonal   Category = "CATEGORY_PERSONAL"
	CategoryUpdates    Category = "CATEGORY_UPDATES"
	CategoryPromotions Category = "CATEGORY_PROMOTIONS"
	CategorySocial     Category = "CATEGORY_SOCIAL"
	CategoryAll        Category = "all"
)

// Categories is the fixed prefetch order.
var Categories = []Category{
	CategoryPersonal,
	CategoryUpdates,
	CategoryPromotions,
	CategorySocial,
	CategoryAll,
}

// ParseCategory validates a category name. Empty means personal.
func ParseCategory(s string) (Category, error) {
	if s == "" {
		return CategoryPersonal, nil
	}
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Label returns the provider label for the category, or "" for all.
func (c Category) Label() string {
	if c == CategoryAll {
		return ""
	}
	return string(c)
}

// ViewKey identifies one paginated list.
type ViewKey struct {
	View     View     `json:"view"`
	Category Category `json:"category,omitempty"`
}

// Key normalizes the category away for views that have none.
func Key(v View, c Category) ViewKey {
	if !v.HasCategories() {
		return ViewKey{View: v}
	}
	if c == "" {
		c = CategoryPersonal
	}
	return ViewKey{View: v, Category: c}
}

func (k ViewKey) String() string {
	if k.Category == "" {
		return string(k.View)
	}
	return string(k.View) + "/" + string(k.Category)
}

// PageState is the visible page of a view. NextToken is empty iff no
// further page exists and len(PrevTokens) == Page-1.
type PageState struct {
	View       View           `json:"view"`
	Category   Category       `json:"category,omitempty"`
	Emails     []EmailSummary `json:"emails"`
	NextToken  string         `json:"nextToken,omitempty"`
	PrevTokens []string       `json:"prevTokens"`
	Page       int            `json:"page"`
}

func (p PageState) HasNext() bool { return p.NextToken != "" }
func (p PageState) HasPrev() bool { return p.Page > 1 }

// Clone deep-copies the page so callers cannot alias shared state.
func (p PageState) Clone() PageState {
	out := p
	out.Emails = make([]EmailSummary, len(p.Emails))
	for i, e := range p.Emails {
		e.LabelIDs = append([]string(nil), e.LabelIDs...)
		out.Emails[i] = e
	}
	out.PrevTokens = append([]string{}, p.PrevTokens...)
	return out
}
