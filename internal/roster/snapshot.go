package roster

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/packsmith/launcher/internal/model"
)

// Version is the current roster document version
const Version = 1

// document is the persisted form of the roster. Unknown fields are ignored
// on load for forward compatibility; the required fields below are checked
// explicitly.
type document struct {
	Version  int             `json:"version"`
	Selected *string         `json:"selected"`
	Accounts []accountRecord `json:"accounts"`
}

type accountRecord struct {
	ID          string `json:"id"`
	Family      string `json:"family"`
	DisplayName string `json:"display_name"`
	EnteredName string `json:"entered_name"`
	MustRelogin bool   `json:"must_relogin"`
	CreatedAt   string `json:"created_at,omitempty"`

	// Legacy family
	ClientToken    string `json:"client_token,omitempty"`
	StoredAuthBlob string `json:"stored_auth_blob,omitempty"`

	// Modern family
	AccessToken       string `json:"access_token,omitempty"`
	RefreshToken      string `json:"refresh_token,omitempty"`
	AccessTokenExpiry string `json:"access_token_expiry,omitempty"`
	UserID            string `json:"user_id,omitempty"`
}

func encodeDocument(accounts map[model.AccountID]*model.Account, order []model.AccountID, selected model.AccountID) ([]byte, error) {
	doc := document{
		Version:  Version,
		Accounts: make([]accountRecord, 0, len(order)),
	}
	if selected != "" {
		sel := string(selected)
		doc.Selected = &sel
	}

	for _, id := range order {
		account := accounts[id]
		record := accountRecord{
			ID:          string(account.ID),
			Family:      string(account.Family),
			DisplayName: account.DisplayName,
			EnteredName: account.Username,
			MustRelogin: account.MustRelogin,
		}
		if !account.CreatedAt.IsZero() {
			record.CreatedAt = account.CreatedAt.UTC().Format(time.RFC3339)
		}
		switch account.Family {
		case model.FamilyLegacy:
			record.ClientToken = account.ClientToken
			record.StoredAuthBlob = account.StoredAuthBlob
			// PasswordCache is deliberately never written
		case model.FamilyModern:
			record.AccessToken = account.AccessToken
			record.RefreshToken = account.RefreshToken
			record.UserID = account.UserID
			if !account.AccessTokenExpiry.IsZero() {
				record.AccessTokenExpiry = account.AccessTokenExpiry.UTC().Format(time.RFC3339)
			}
		}
		doc.Accounts = append(doc.Accounts, record)
	}

	return json.MarshalIndent(doc, "", "  ")
}

func decodeDocument(data []byte) (map[model.AccountID]*model.Account, []model.AccountID, model.AccountID, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, "", fmt.Errorf("%w: %v", model.ErrRosterFormat, err)
	}
	if doc.Version != Version {
		return nil, nil, "", fmt.Errorf("%w: unsupported version %d", model.ErrRosterFormat, doc.Version)
	}

	accounts := make(map[model.AccountID]*model.Account, len(doc.Accounts))
	order := make([]model.AccountID, 0, len(doc.Accounts))

	for i, record := range doc.Accounts {
		account, err := record.toAccount()
		if err != nil {
			return nil, nil, "", fmt.Errorf("%w: account %d: %v", model.ErrRosterFormat, i, err)
		}
		if _, ok := accounts[account.ID]; ok {
			return nil, nil, "", fmt.Errorf("%w: duplicate account id %s", model.ErrRosterFormat, account.ID)
		}
		accounts[account.ID] = account
		order = append(order, account.ID)
	}

	var selected model.AccountID
	if doc.Selected != nil && *doc.Selected != "" {
		selected = model.AccountID(*doc.Selected)
		if _, ok := accounts[selected]; !ok {
			return nil, nil, "", fmt.Errorf("%w: selected account %s not in roster", model.ErrRosterFormat, selected)
		}
	}

	return accounts, order, selected, nil
}

func (r accountRecord) toAccount() (*model.Account, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	if r.EnteredName == "" {
		return nil, fmt.Errorf("missing entered_name")
	}

	account := &model.Account{
		ID:          model.AccountID(r.ID),
		Family:      model.Family(r.Family),
		DisplayName: r.DisplayName,
		Username:    r.EnteredName,
		MustRelogin: r.MustRelogin,
	}
	if r.CreatedAt != "" {
		createdAt, err := time.Parse(time.RFC3339, r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("bad created_at: %v", err)
		}
		account.CreatedAt = createdAt
	}

	switch account.Family {
	case model.FamilyLegacy:
		if r.ClientToken == "" {
			return nil, fmt.Errorf("missing client_token")
		}
		account.ClientToken = r.ClientToken
		account.StoredAuthBlob = r.StoredAuthBlob
	case model.FamilyModern:
		if r.UserID == "" {
			return nil, fmt.Errorf("missing user_id")
		}
		account.UserID = r.UserID
		account.AccessToken = r.AccessToken
		account.RefreshToken = r.RefreshToken
		if r.AccessTokenExpiry != "" {
			expiry, err := time.Parse(time.RFC3339, r.AccessTokenExpiry)
			if err != nil {
				return nil, fmt.Errorf("bad access_token_expiry: %v", err)
			}
			account.AccessTokenExpiry = expiry
		}
	default:
		return nil, fmt.Errorf("unknown family %q", r.Family)
	}

	return account, nil
}
