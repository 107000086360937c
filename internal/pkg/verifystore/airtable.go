package verifystore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/chouha-community/gatekeeper/app/models"
	"github.com/chouha-community/gatekeeper/internal/pkg/config"
)

const defaultAirtableBaseURL = "https://api.airtable.com/v0"

// airtableStore writes records through the Airtable REST API. Upserts use the
// performUpsert mode merged on the DiscordID field, so repeated verifications
// update the existing row.
type airtableStore struct {
	apiKey  string
	baseID  string
	table   string
	baseURL string

	httpClient *http.Client
}

func newAirtableStore(cfg *config.Config) (*airtableStore, error) {
	if cfg.AirtableAPIKey == "" || cfg.AirtableBaseID == "" {
		return nil, errors.New("airtable backend selected but AIRTABLE_API_KEY/AIRTABLE_BASE_ID are empty")
	}
	table := cfg.AirtableTable
	if table == "" {
		table = "VerifiedUsers"
	}
	return &airtableStore{
		apiKey:  cfg.AirtableAPIKey,
		baseID:  cfg.AirtableBaseID,
		table:   table,
		baseURL: defaultAirtableBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

func (s *airtableStore) Name() string { return "airtable" }

type airtableRecord struct {
	ID     string         `json:"id,omitempty"`
	Fields airtableFields `json:"fields"`
}

type airtableFields struct {
	DiscordID   string `json:"DiscordID"`
	Username    string `json:"Username"`
	Email       string `json:"Email"`
	AvatarURL   string `json:"AvatarURL"`
	PremiumType int    `json:"PremiumType"`
	Status      string `json:"Status"`
	VerifiedAt  string `json:"VerifiedAt"`
}

func (s *airtableStore) tableURL() string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.baseID, url.PathEscape(s.table))
}

func (s *airtableStore) do(ctx context.Context, method, rawURL string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("airtable request failed: status=%d body=%s", resp.StatusCode, string(data))
	}
	if out != nil && len(data) > 0 {
		return json.Unmarshal(data, out)
	}
	return nil
}

func (s *airtableStore) Put(ctx context.Context, user *models.VerifiedUser) error {
	payload := map[string]interface{}{
		"performUpsert": map[string]interface{}{
			"fieldsToMergeOn": []string{"DiscordID"},
		},
		"records": []airtableRecord{
			{
				Fields: airtableFields{
					DiscordID:   user.DiscordID,
					Username:    user.Username,
					Email:       user.Email,
					AvatarURL:   user.AvatarURL,
					PremiumType: user.PremiumType,
					Status:      user.Status,
					VerifiedAt:  user.VerifiedAt.UTC().Format(time.RFC3339),
				},
			},
		},
	}
	return s.do(ctx, http.MethodPatch, s.tableURL(), payload, nil)
}

func (s *airtableStore) Get(ctx context.Context, discordID string) (*models.VerifiedUser, error) {
	q := url.Values{}
	q.Set("filterByFormula", fmt.Sprintf("{DiscordID}='%s'", discordID))
	q.Set("maxRecords", "1")

	var out struct {
		Records []airtableRecord `json:"records"`
	}
	if err := s.do(ctx, http.MethodGet, s.tableURL()+"?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if len(out.Records) == 0 {
		return nil, ErrNotFound
	}
	return recordToUser(out.Records[0]), nil
}

func (s *airtableStore) List(ctx context.Context) ([]models.VerifiedUser, error) {
	var users []models.VerifiedUser
	offset := ""
	for {
		q := url.Values{}
		if offset != "" {
			q.Set("offset", offset)
		}

		var out struct {
			Records []airtableRecord `json:"records"`
			Offset  string           `json:"offset"`
		}
		if err := s.do(ctx, http.MethodGet, s.tableURL()+"?"+q.Encode(), nil, &out); err != nil {
			return nil, err
		}
		for _, rec := range out.Records {
			users = append(users, *recordToUser(rec))
		}
		if out.Offset == "" {
			return users, nil
		}
		offset = out.Offset
	}
}

func recordToUser(rec airtableRecord) *models.VerifiedUser {
	user := &models.VerifiedUser{
		DiscordID:   rec.Fields.DiscordID,
		Username:    rec.Fields.Username,
		Email:       rec.Fields.Email,
		AvatarURL:   rec.Fields.AvatarURL,
		PremiumType: rec.Fields.PremiumType,
		Status:      rec.Fields.Status,
	}
	if t, err := time.Parse(time.RFC3339, rec.Fields.VerifiedAt); err == nil {
		user.VerifiedAt = t
	}
	return user
}
