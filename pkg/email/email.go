package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"
)

// Service sends transactional email through the Resend REST API.
type Service struct {
	apiKey    string
	from      string
	templates *template.Template
	client    *http.Client
}

type emailData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Html    string `json:"html"`
}

type welcomeEmailData struct {
	Name string
}

type subscriptionStartedData struct {
	Name string
}

type subscriptionCanceledData struct {
	Name string
}

type expiryWarningData struct {
	Name       string
	DaysLeft   int
	ExpiryDate time.Time
}

type weeklyStatsData struct {
	Name        string
	TotalPosts  int64
	TotalViews  int64
	Subscribers int64
	TopPost     string
	WeekStart   time.Time
}

func NewService(apiKey, from string) (*Service, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}

	templates, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("error loading email templates: %v", err)
	}

	return &Service{
		apiKey:    apiKey,
		from:      from,
		templates: templates,
		client:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *Service) sendTemplateEmail(to, subject, templateName string, data interface{}) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("template execution error: %v", err)
	}

	payload, err := json.Marshal(emailData{
		From:    s.from,
		To:      to,
		Subject: subject,
		Html:    body.String(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, "https://api.resend.com/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("resend API error (%d): %s", resp.StatusCode, msg)
	}

	return nil
}

func (s *Service) SendWelcomeEmail(to, name string) error {
	return s.sendTemplateEmail(to, "Welcome to CoachPage", "welcome.html", welcomeEmailData{Name: name})
}

func (s *Service) SendSubscriptionStartedEmail(to, name string) error {
	return s.sendTemplateEmail(to, "Your premium membership is active", "subscription_started.html", subscriptionStartedData{Name: name})
}

func (s *Service) SendSubscriptionCanceledEmail(to, name string) error {
	return s.sendTemplateEmail(to, "Your subscription has ended", "subscription_canceled.html", subscriptionCanceledData{Name: name})
}

func (s *Service) SendSubscriptionExpiryWarning(to, name string, expiryDate time.Time, daysLeft int) error {
	return s.sendTemplateEmail(to, fmt.Sprintf("Your membership renews in %d days", daysLeft), "expiry_warning.html", expiryWarningData{
		Name:       name,
		DaysLeft:   daysLeft,
		ExpiryDate: expiryDate,
	})
}

func (s *Service) SendWeeklyStatsEmail(to, name string, totalPosts, totalViews, subscribers int64, topPost string, weekStart time.Time) error {
	return s.sendTemplateEmail(to, "Your weekly content report", "weekly_stats.html", weeklyStatsData{
		Name:        name,
		TotalPosts:  totalPosts,
		TotalViews:  totalViews,
		Subscribers: subscribers,
		TopPost:     topPost,
		WeekStart:   weekStart,
	})
}
