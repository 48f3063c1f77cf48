package draft

import (
	"slices"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/model"
)

// AddLink appends a link under a fresh local id and returns that id. The
// server swaps it for a permanent id on save.
func (s *Session) AddLink(title, url, icon string) (string, error) {
	id := s.newID()
	err := s.edit(func(f *model.EditableFields) error {
		if len(f.Links) >= model.MaxLinks {
			return apperror.ValidationFailed("links", "too many links")
		}
		f.Links = append(f.Links, model.LinkInput{ID: id, Title: title, URL: url, Icon: icon})
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// AddStoreItem appends a product card under a fresh local id.
func (s *Session) AddStoreItem(in model.StoreItemInput) (string, error) {
	in.ID = s.newID()
	err := s.edit(func(f *model.EditableFields) error {
		if len(f.StoreItems) >= model.MaxStoreItems {
			return apperror.ValidationFailed("storeItems", "too many store items")
		}
		f.StoreItems = append(f.StoreItems, in)
		return nil
	})
	if err != nil {
		return "", err
	}
	return in.ID, nil
}

// UpdateLink replaces the content of the link with id, keeping the id.
func (s *Session) UpdateLink(id string, in model.LinkInput) error {
	return s.edit(func(f *model.EditableFields) error {
		i := indexOf(len(f.Links), func(i int) bool { return f.Links[i].ID == id })
		if i < 0 {
			return apperror.NotFound("link", id)
		}
		in.ID = id
		f.Links[i] = in
		return nil
	})
}

// UpdateStoreItem replaces the content of the store item with id.
func (s *Session) UpdateStoreItem(id string, in model.StoreItemInput) error {
	return s.edit(func(f *model.EditableFields) error {
		i := indexOf(len(f.StoreItems), func(i int) bool { return f.StoreItems[i].ID == id })
		if i < 0 {
			return apperror.NotFound("store", id)
		}
		in.ID = id
		f.StoreItems[i] = in
		return nil
	})
}

// RemoveItem deletes the item with id from the list kind names.
func (s *Session) RemoveItem(kind model.ItemKind, id string) error {
	return s.edit(func(f *model.EditableFields) error {
		switch kind {
		case model.ItemLink:
			i := indexOf(len(f.Links), func(i int) bool { return f.Links[i].ID == id })
			if i < 0 {
				return apperror.NotFound("link", id)
			}
			f.Links = append(f.Links[:i:i], f.Links[i+1:]...)
		case model.ItemStore:
			i := indexOf(len(f.StoreItems), func(i int) bool { return f.StoreItems[i].ID == id })
			if i < 0 {
				return apperror.NotFound("store", id)
			}
			f.StoreItems = append(f.StoreItems[:i:i], f.StoreItems[i+1:]...)
		default:
			return apperror.ValidationFailed("itemKind", "itemKind must be link or store")
		}
		return nil
	})
}

// Reorder moves the item with id to newIndex, clamped to the list bounds.
// Items are addressed by id so the move stays correct even if other items
// were added or removed since the caller last looked.
func (s *Session) Reorder(kind model.ItemKind, id string, newIndex int) error {
	return s.edit(func(f *model.EditableFields) error {
		switch kind {
		case model.ItemLink:
			i := indexOf(len(f.Links), func(i int) bool { return f.Links[i].ID == id })
			if i < 0 {
				return apperror.NotFound("link", id)
			}
			f.Links = move(f.Links, i, newIndex)
		case model.ItemStore:
			i := indexOf(len(f.StoreItems), func(i int) bool { return f.StoreItems[i].ID == id })
			if i < 0 {
				return apperror.NotFound("store", id)
			}
			f.StoreItems = move(f.StoreItems, i, newIndex)
		default:
			return apperror.ValidationFailed("itemKind", "itemKind must be link or store")
		}
		return nil
	})
}

func indexOf(n int, match func(int) bool) int {
	for i := 0; i < n; i++ {
		if match(i) {
			return i
		}
	}
	return -1
}

// move returns a new slice with the element at from placed at to.
func move[T any](items []T, from, to int) []T {
	to = max(0, min(to, len(items)-1))
	item := items[from]
	out := slices.Delete(slices.Clone(items), from, from+1)
	return slices.Insert(out, to, item)
}
