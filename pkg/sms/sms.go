package sms

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// BookingDetails carries the fields interpolated into the confirmation
// message.
type BookingDetails struct {
	EventName string
	Date      string
	Time      string
	Reference string
}

// ResultDetails deliberately omits the result itself; the message only
// announces availability.
type ResultDetails struct {
	ParticipantName string
	EventName       string
}

type Client struct {
	baseURL string
	apiKey  string
	sender  string
	mock    bool
	http    *http.Client
}

func NewClient(baseURL, apiKey, sender string, mock bool) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		sender:  sender,
		mock:    mock,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) SendBookingConfirmation(phone string, details BookingDetails) error {
	message := fmt.Sprintf(
		"Your booking is confirmed!\nEvent: %s\nDate: %s\nTime: %s\nRef: %s\nPlease keep your reference for check-in.",
		details.EventName, details.Date, details.Time, details.Reference,
	)
	return c.send(phone, message)
}

func (c *Client) SendBookingCancellation(phone, reference string) error {
	message := fmt.Sprintf(
		"Your booking %s has been cancelled. You may book again if slots are still available.",
		reference,
	)
	return c.send(phone, message)
}

func (c *Client) SendResultNotification(phone string, details ResultDetails) error {
	message := fmt.Sprintf(
		"Hi %s, your screening result for %s is ready. Log in and verify with an OTP to view it.",
		details.ParticipantName, details.EventName,
	)
	return c.send(phone, message)
}

func (c *Client) SendOTP(phone, code string) error {
	message := fmt.Sprintf("Your verification code is %s. It expires in 5 minutes. Do not share it.", code)
	return c.send(phone, message)
}

func (c *Client) send(phone, message string) error {
	if c.mock {
		logrus.WithFields(logrus.Fields{
			"phone":   phone,
			"message": message,
		}).Info("SMS mock send")
		return nil
	}

	params := url.Values{}
	params.Add("api_key", c.apiKey)
	params.Add("from", c.sender)
	params.Add("to", phone)
	params.Add("text", message)

	resp, err := c.http.PostForm(c.baseURL+"/messages", params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sms gateway error: %s", resp.Status)
	}

	return nil
}
