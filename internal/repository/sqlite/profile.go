package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

// compile-time check that *DB implements repository.ProfileRepository
var _ repository.ProfileRepository = (*DB)(nil)

func newID() string { return xid.New().String() }

// insertProfile writes the profile row and its items. Items without an id
// get a fresh one; p is updated in place.
func insertProfile(ctx context.Context, tx *sql.Tx, accountID string, p *model.Profile) error {
	p.AccountID = accountID
	p.AssignMissingIDs(newID)

	social, outfits, err := encodeDocuments(p.SocialLinks, p.Outfits)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (account_id, display_title, bio, avatar_image, theme, social_links, outfits, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		accountID, p.DisplayTitle, p.Bio, p.AvatarImage, p.Theme, social, outfits, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting profile for %s: %w", accountID, err)
	}

	for i, l := range p.Links {
		if err := insertLink(ctx, tx, accountID, i, l.ID, l.Title, l.URL, l.Icon); err != nil {
			return err
		}
	}
	for i, s := range p.StoreItems {
		if err := insertStoreItem(ctx, tx, accountID, i, s.ID, model.StoreItemInput{
			Title: s.Title, Price: s.Price, Image: s.Image, URL: s.URL,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) GetProfileByHandle(ctx context.Context, handle string) (*model.Profile, error) {
	accountID, err := accountIDForHandle(ctx, db.conn, handle)
	if err != nil {
		return nil, err
	}
	return db.loadAndRepair(ctx, accountID)
}

func (db *DB) GetProfileByAccount(ctx context.Context, accountID string) (*model.Profile, error) {
	return db.loadAndRepair(ctx, accountID)
}

// loadAndRepair loads a profile and, if any outfit or tag predates ids,
// persists the ids it just assigned so they stay stable across reads.
func (db *DB) loadAndRepair(ctx context.Context, accountID string) (*model.Profile, error) {
	p, err := loadProfile(ctx, db.conn, accountID)
	if err != nil {
		return nil, err
	}
	if model.AssignOutfitIDs(p.Outfits, newID) {
		raw, err := json.Marshal(p.Outfits)
		if err != nil {
			return nil, fmt.Errorf("sqlite: encoding outfits: %w", err)
		}
		if _, err := db.conn.ExecContext(ctx,
			`UPDATE profiles SET outfits = ? WHERE account_id = ?`, string(raw), accountID,
		); err != nil {
			return nil, fmt.Errorf("sqlite: backfilling outfit ids for %s: %w", accountID, err)
		}
	}
	return p, nil
}

func accountIDForHandle(ctx context.Context, q querier, handle string) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM accounts WHERE handle = ?`, handle).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperror.NotFound("profile", handle)
		}
		return "", fmt.Errorf("sqlite: resolving handle %q: %w", handle, err)
	}
	return id, nil
}

// loadProfile reads the profile row plus both item lists in position order.
func loadProfile(ctx context.Context, q querier, accountID string) (*model.Profile, error) {
	var (
		p       model.Profile
		handle  sql.NullString
		social  string
		outfits string
	)
	err := q.QueryRowContext(ctx,
		`SELECT p.account_id, a.handle, p.display_title, p.bio, p.avatar_image, p.theme,
		        p.social_links, p.outfits, p.updated_at
		 FROM profiles p JOIN accounts a ON a.id = p.account_id
		 WHERE p.account_id = ?`,
		accountID,
	).Scan(&p.AccountID, &handle, &p.DisplayTitle, &p.Bio, &p.AvatarImage, &p.Theme, &social, &outfits, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", accountID)
		}
		return nil, fmt.Errorf("sqlite: loading profile %s: %w", accountID, err)
	}
	p.Handle = handle.String

	if err := json.Unmarshal([]byte(social), &p.SocialLinks); err != nil {
		return nil, fmt.Errorf("sqlite: decoding social links of %s: %w", accountID, err)
	}
	if err := json.Unmarshal([]byte(outfits), &p.Outfits); err != nil {
		return nil, fmt.Errorf("sqlite: decoding outfits of %s: %w", accountID, err)
	}
	if p.SocialLinks == nil {
		p.SocialLinks = map[string]string{}
	}
	if p.Outfits == nil {
		p.Outfits = []model.Outfit{}
	}

	if p.Links, err = loadLinks(ctx, q, accountID); err != nil {
		return nil, err
	}
	if p.StoreItems, err = loadStoreItems(ctx, q, accountID); err != nil {
		return nil, err
	}
	return &p, nil
}

func loadLinks(ctx context.Context, q querier, accountID string) ([]model.Link, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, title, url, icon, click_count FROM links
		 WHERE account_id = ? ORDER BY position`, accountID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing links of %s: %w", accountID, err)
	}
	defer rows.Close()

	links := []model.Link{}
	for rows.Next() {
		var l model.Link
		if err := rows.Scan(&l.ID, &l.Title, &l.URL, &l.Icon, &l.ClickCount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating links: %w", err)
	}
	return links, nil
}

func loadStoreItems(ctx context.Context, q querier, accountID string) ([]model.StoreItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, title, price, image, url, click_count FROM store_items
		 WHERE account_id = ? ORDER BY position`, accountID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing store items of %s: %w", accountID, err)
	}
	defer rows.Close()

	items := []model.StoreItem{}
	for rows.Next() {
		var s model.StoreItem
		if err := rows.Scan(&s.ID, &s.Title, &s.Price, &s.Image, &s.URL, &s.ClickCount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning store item: %w", err)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating store items: %w", err)
	}
	return items, nil
}

// ReplaceEditableFields applies a full save in one transaction.
//
// Items are matched to existing rows by id only. A matched row keeps its id
// and click_count and takes the submitted title, url and position. An
// unmatched or empty id becomes a new row with a server id; an id repeated
// within the same list is treated as new on its second appearance. Rows not
// matched by any submitted item are deleted.
func (db *DB) ReplaceEditableFields(ctx context.Context, handle string, fields model.EditableFields) (*model.Profile, error) {
	var out *model.Profile
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		accountID, err := accountIDForHandle(ctx, tx, handle)
		if err != nil {
			return err
		}

		outfits := fields.Outfits
		if outfits == nil {
			outfits = []model.Outfit{}
		}
		model.AssignOutfitIDs(outfits, newID)
		social, outfitsJSON, err := encodeDocuments(fields.SocialLinks, outfits)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE profiles
			 SET display_title = ?, bio = ?, avatar_image = ?, theme = ?,
			     social_links = ?, outfits = ?, updated_at = ?
			 WHERE account_id = ?`,
			fields.DisplayTitle, fields.Bio, fields.AvatarImage, fields.Theme,
			social, outfitsJSON, time.Now().UTC(), accountID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating profile %s: %w", handle, err)
		}

		if err := replaceLinks(ctx, tx, accountID, fields.Links); err != nil {
			return err
		}
		if err := replaceStoreItems(ctx, tx, accountID, fields.StoreItems); err != nil {
			return err
		}

		out, err = loadProfile(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func replaceLinks(ctx context.Context, tx *sql.Tx, accountID string, links []model.LinkInput) error {
	existing, err := itemIDs(ctx, tx, "links", accountID)
	if err != nil {
		return err
	}

	kept := make(map[string]bool, len(links))
	for pos, l := range links {
		if existing[l.ID] && !kept[l.ID] {
			kept[l.ID] = true
			_, err := tx.ExecContext(ctx,
				`UPDATE links SET position = ?, title = ?, url = ?, icon = ?
				 WHERE id = ? AND account_id = ?`,
				pos, l.Title, l.URL, l.Icon, l.ID, accountID,
			)
			if err != nil {
				return fmt.Errorf("sqlite: updating link %s: %w", l.ID, err)
			}
			continue
		}
		if err := insertLink(ctx, tx, accountID, pos, newID(), l.Title, l.URL, l.Icon); err != nil {
			return err
		}
	}
	return deleteUnkept(ctx, tx, "links", accountID, existing, kept)
}

func replaceStoreItems(ctx context.Context, tx *sql.Tx, accountID string, items []model.StoreItemInput) error {
	existing, err := itemIDs(ctx, tx, "store_items", accountID)
	if err != nil {
		return err
	}

	kept := make(map[string]bool, len(items))
	for pos, s := range items {
		if existing[s.ID] && !kept[s.ID] {
			kept[s.ID] = true
			_, err := tx.ExecContext(ctx,
				`UPDATE store_items SET position = ?, title = ?, price = ?, image = ?, url = ?
				 WHERE id = ? AND account_id = ?`,
				pos, s.Title, s.Price, s.Image, s.URL, s.ID, accountID,
			)
			if err != nil {
				return fmt.Errorf("sqlite: updating store item %s: %w", s.ID, err)
			}
			continue
		}
		if err := insertStoreItem(ctx, tx, accountID, pos, newID(), s); err != nil {
			return err
		}
	}
	return deleteUnkept(ctx, tx, "store_items", accountID, existing, kept)
}

func insertLink(ctx context.Context, tx *sql.Tx, accountID string, pos int, id, title, url, icon string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO links (id, account_id, position, title, url, icon) VALUES (?, ?, ?, ?, ?, ?)`,
		id, accountID, pos, title, url, icon,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting link: %w", err)
	}
	return nil
}

func insertStoreItem(ctx context.Context, tx *sql.Tx, accountID string, pos int, id string, s model.StoreItemInput) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO store_items (id, account_id, position, title, price, image, url)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, accountID, pos, s.Title, s.Price, s.Image, s.URL,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting store item: %w", err)
	}
	return nil
}

// itemIDs returns the ids currently stored for one account in table.
// table is always a package constant, never user input.
func itemIDs(ctx context.Context, tx *sql.Tx, table, accountID string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM `+table+` WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s ids: %w", table, err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning %s id: %w", table, err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func deleteUnkept(ctx context.Context, tx *sql.Tx, table, accountID string, existing, kept map[string]bool) error {
	for id := range existing {
		if kept[id] {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE id = ? AND account_id = ?`, id, accountID,
		); err != nil {
			return fmt.Errorf("sqlite: deleting %s %s: %w", table, id, err)
		}
	}
	return nil
}

// IncrementItemClick bumps one counter with a single UPDATE. The database
// applies the +1, so concurrent clicks never lose an increment.
func (db *DB) IncrementItemClick(ctx context.Context, handle, itemID string, kind model.ItemKind) error {
	var table string
	switch kind {
	case model.ItemLink:
		table = "links"
	case model.ItemStore:
		table = "store_items"
	default:
		return apperror.ValidationFailed("itemKind", "itemKind must be link or store")
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE `+table+` SET click_count = click_count + 1
		 WHERE id = ? AND account_id = (SELECT id FROM accounts WHERE handle = ?)`,
		itemID, handle,
	)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing %s %s: %w", kind, itemID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: incrementing %s %s: %w", kind, itemID, err)
	}
	if n == 0 {
		return apperror.NotFound(string(kind), itemID)
	}
	return nil
}

func encodeDocuments(social map[string]string, outfits []model.Outfit) (string, string, error) {
	if social == nil {
		social = map[string]string{}
	}
	if outfits == nil {
		outfits = []model.Outfit{}
	}
	s, err := json.Marshal(social)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encoding social links: %w", err)
	}
	o, err := json.Marshal(outfits)
	if err != nil {
		return "", "", fmt.Errorf("sqlite: encoding outfits: %w", err)
	}
	return string(s), string(o), nil
}
