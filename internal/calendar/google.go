package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

// GoogleConfig wires the Google Calendar REST adapter. CredentialsPath must
// point at a JSON file carrying the bearer token used for API calls.
type GoogleConfig struct {
	CalendarID      string
	CredentialsPath string
	BaseURL         string
	Timeout         time.Duration
	Location        *time.Location
}

type GoogleClient struct {
	http       *http.Client
	baseURL    string
	calendarID string
	token      string
	loc        *time.Location
}

type googleCredentials struct {
	AccessToken string `json:"access_token"`
}

// NewGoogleClient builds the adapter up front so a missing or unreadable
// credentials file fails at startup instead of on the first booking.
func NewGoogleClient(cfg GoogleConfig) (*GoogleClient, error) {
	if cfg.CalendarID == "" {
		return nil, fmt.Errorf("calendar id is required")
	}

	raw, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read calendar credentials: %w", err)
	}
	var creds googleCredentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("parse calendar credentials: %w", err)
	}
	if strings.TrimSpace(creds.AccessToken) == "" {
		return nil, fmt.Errorf("calendar credentials missing access_token")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	return &GoogleClient{
		http:       &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		calendarID: cfg.CalendarID,
		token:      creds.AccessToken,
		loc:        loc,
	}, nil
}

type googleEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type googleEvent struct {
	ID          string          `json:"id,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Description string          `json:"description,omitempty"`
	Status      string          `json:"status,omitempty"`
	Start       googleEventTime `json:"start"`
	End         googleEventTime `json:"end"`
}

type googleEventList struct {
	Items         []googleEvent `json:"items"`
	NextPageToken string        `json:"nextPageToken"`
}

func (c *GoogleClient) CreateEvent(ctx context.Context, date, startTime, endTime, title string) (string, error) {
	start, err := c.combine(date, startTime)
	if err != nil {
		return "", wrapErr("create", err)
	}
	end, err := c.combine(date, endTime)
	if err != nil {
		return "", wrapErr("create", err)
	}

	body := googleEvent{
		Summary:     title,
		Description: "Booking created via Studio Booking API",
		Start:       googleEventTime{DateTime: start.Format(time.RFC3339), TimeZone: c.loc.String()},
		End:         googleEventTime{DateTime: end.Format(time.RFC3339), TimeZone: c.loc.String()},
	}

	var created googleEvent
	if err := c.do(ctx, http.MethodPost, c.eventsURL(nil), body, &created); err != nil {
		return "", wrapErr("create", err)
	}
	if created.ID == "" {
		return "", wrapErr("create", fmt.Errorf("response missing event id"))
	}
	return created.ID, nil
}

func (c *GoogleClient) DeleteEvent(ctx context.Context, eventID string) error {
	u := c.eventsURL(nil) + "/" + url.PathEscape(eventID)
	if err := c.do(ctx, http.MethodDelete, u, nil, nil); err != nil {
		return wrapErr("delete", err)
	}
	return nil
}

func (c *GoogleClient) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	var out []Event
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("timeMin", from.Format(time.RFC3339))
		q.Set("timeMax", to.Format(time.RFC3339))
		q.Set("singleEvents", "true")
		q.Set("orderBy", "startTime")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page googleEventList
		if err := c.do(ctx, http.MethodGet, c.eventsURL(q), nil, &page); err != nil {
			return nil, wrapErr("list", err)
		}

		for _, item := range page.Items {
			// All-day entries carry only a date; they can never match a slot.
			if item.Start.DateTime == "" || item.End.DateTime == "" {
				continue
			}
			start, err := time.Parse(time.RFC3339, item.Start.DateTime)
			if err != nil {
				return nil, wrapErr("list", fmt.Errorf("event %s start: %w", item.ID, err))
			}
			end, err := time.Parse(time.RFC3339, item.End.DateTime)
			if err != nil {
				return nil, wrapErr("list", fmt.Errorf("event %s end: %w", item.ID, err))
			}
			out = append(out, Event{
				ID:      item.ID,
				Summary: item.Summary,
				Start:   start.In(c.loc),
				End:     end.In(c.loc),
				Status:  item.Status,
			})
		}

		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *GoogleClient) eventsURL(q url.Values) string {
	u := c.baseURL + "/calendars/" + url.PathEscape(c.calendarID) + "/events"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *GoogleClient) do(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 410 on delete means the event is already gone, which is the outcome
	// the caller wanted.
	if method == http.MethodDelete && (resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound) {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, u, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *GoogleClient) combine(date, timeOfDay string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", date+" "+timeOfDay, c.loc)
}
