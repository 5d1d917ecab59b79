package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mchmarny/campusweb/pkg/enquiry"
	"github.com/mchmarny/campusweb/pkg/menu"
	"github.com/mchmarny/campusweb/pkg/settings"
)

type wireMenu struct {
	Name  string     `json:"name"`
	Label string     `json:"label"`
	Items []wireItem `json:"items"`
}

type wireItem struct {
	ID           int       `json:"id"`
	ParentID     *int      `json:"parent_id"`
	DisplayOrder int       `json:"display_order"`
	IsActive     menu.Flag `json:"is_active"`
	Text         string    `json:"text"`
	URL          string    `json:"url"`
	OpenInNewTab menu.Flag `json:"open_in_new_tab"`
	Icon         string    `json:"icon"`
}

func (w wireMenu) toNamedMenu() menu.NamedMenu {
	label := w.Label
	if label == "" {
		label = w.Name
	}

	items := make([]menu.Item, 0, len(w.Items))
	for _, it := range w.Items {
		items = append(items, menu.Item{
			ID:           it.ID,
			ParentID:     it.ParentID,
			DisplayOrder: it.DisplayOrder,
			IsActive:     it.IsActive,
			Text:         it.Text,
			URL:          it.URL,
			OpenInNewTab: it.OpenInNewTab,
			IconRef:      it.Icon,
		})
	}

	return menu.NamedMenu{Label: label, Items: items}
}

// Menus fetches every named menu in the order the CMS returns them.
func (c *Client) Menus(ctx context.Context) ([]menu.NamedMenu, error) {
	data, err := c.do(ctx, "menus", http.MethodGet, menusPath, nil)
	if err != nil {
		return nil, err
	}

	var wire []wireMenu
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("failed to decode cms menus: %w", err)
		}
	}

	menus := make([]menu.NamedMenu, 0, len(wire))
	for _, w := range wire {
		menus = append(menus, w.toNamedMenu())
	}
	return menus, nil
}

// Settings fetches the flat site settings record.
func (c *Client) Settings(ctx context.Context) (settings.Raw, error) {
	data, err := c.do(ctx, "settings", http.MethodGet, settingsPath, nil)
	if err != nil {
		return nil, err
	}

	raw := settings.Raw{}
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode cms settings: %w", err)
		}
	}
	return raw, nil
}

type enquiryRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Message   string `json:"message,omitempty"`
	WhatsApp  bool   `json:"whatsapp"`
	Source    string `json:"source"`
	Reference string `json:"reference,omitempty"`
}

type enquiryAck struct {
	EnquiryID json.RawMessage `json:"enquiry_id"`
	ID        json.RawMessage `json:"id"`
}

// SubmitEnquiry posts e to the CMS and returns the enquiry identifier it assigned.
func (c *Client) SubmitEnquiry(ctx context.Context, e enquiry.Enquiry) (string, error) {
	data, err := c.do(ctx, "enquiry", http.MethodPost, enquiriesPath, enquiryRequest{
		Name:      e.Name,
		Phone:     e.Phone,
		Email:     e.Email,
		Subject:   e.Subject,
		Message:   e.Message,
		WhatsApp:  e.WhatsApp,
		Source:    e.Source,
		Reference: e.Reference,
	})
	if err != nil {
		return "", err
	}

	var ack enquiryAck
	if err := json.Unmarshal(data, &ack); err != nil {
		return "", fmt.Errorf("failed to decode cms enquiry ack: %w", err)
	}

	raw := ack.EnquiryID
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = ack.ID
	}

	id := idString(raw)
	if id == "" {
		return "", fmt.Errorf("cms enquiry ack has no enquiry id")
	}
	return id, nil
}

// idString renders a JSON string or number id as text.
func idString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}
