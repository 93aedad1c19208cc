package przelewy24

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"getpaid-p24/internal/config"
	"getpaid-p24/internal/domain"
)

const maxResponseBody = 64 << 10

// Callback and fallback paths served by this application.
const (
	StatusPath = "/przelewy24/online"
	returnPath = "/przelewy24/return/"
)

func ReturnPath(paymentID string) string     { return returnPath + paymentID }
func FailurePath(paymentID string) string    { return "/payments/" + paymentID + "/failure" }
func InProgressPath(paymentID string) string { return "/payments/" + paymentID + "/in-progress" }

// CustomerDataProvider supplies buyer details for an order at registration time.
type CustomerDataProvider interface {
	Query(ctx context.Context, order domain.Order) (domain.CustomerData, error)
}

type CustomerDataFunc func(ctx context.Context, order domain.Order) (domain.CustomerData, error)

func (f CustomerDataFunc) Query(ctx context.Context, order domain.Order) (domain.CustomerData, error) {
	return f(ctx, order)
}

// ConfigurationError means the registration can never succeed as configured.
// It is not worth retrying.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "przelewy24 misconfigured: " + e.Reason
}

type RegistrationOutcome int

const (
	// RegistrationUnavailable: the gateway could not be reached or gave no token.
	RegistrationUnavailable RegistrationOutcome = iota
	RegistrationAccepted
	RegistrationRejected
)

func (o RegistrationOutcome) String() string {
	switch o {
	case RegistrationAccepted:
		return "accepted"
	case RegistrationRejected:
		return "rejected"
	default:
		return "unavailable"
	}
}

// Registration tells the caller where to send the browser. For an accepted
// registration the browser POSTs Params to URL.
type Registration struct {
	Outcome RegistrationOutcome
	URL     string
	Method  string
	Params  url.Values
}

type StatusOutcome int

const (
	StatusUnavailable StatusOutcome = iota
	StatusConfirmed
	StatusRejected
)

func (o StatusOutcome) String() string {
	switch o {
	case StatusConfirmed:
		return "confirmed"
	case StatusRejected:
		return "rejected"
	default:
		return "unavailable"
	}
}

// StatusQuery carries the fields of a verified notification.
type StatusQuery struct {
	SessionID string
	OrderID   string
	Amount    string
	Currency  string
}

type PaymentGateway interface {
	RegisterTransaction(ctx context.Context, payment *domain.Payment, order domain.Order) (Registration, error)
	QueryStatus(ctx context.Context, payment *domain.Payment, q StatusQuery) StatusOutcome
}

type Option func(*client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.http = hc }
}

func WithClock(now func() time.Time) Option {
	return func(c *client) { c.now = now }
}

type client struct {
	cfg       config.Gateway
	customers CustomerDataProvider
	http      *http.Client
	log       *zap.Logger
	now       func() time.Time
}

func NewPaymentGateway(cfg config.Gateway, customers CustomerDataProvider, log *zap.Logger, opts ...Option) PaymentGateway {
	c := &client{
		cfg:       cfg,
		customers: customers,
		http:      &http.Client{Timeout: cfg.HTTPTimeout},
		log:       log.Named("przelewy24"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) posID() string {
	if c.cfg.PosID != "" {
		return c.cfg.PosID
	}
	return c.cfg.MerchantID
}

func (c *client) RegisterTransaction(ctx context.Context, payment *domain.Payment, order domain.Order) (Registration, error) {
	paymentID := payment.ID.String()

	params := map[string]string{
		"p24_merchant_id": c.cfg.MerchantID,
		"p24_pos_id":      c.posID(),
		"p24_description": orderDescription(order),
		"p24_session_id":  NewSessionID(payment.ID, c.cfg.Backend, c.now()),
		"p24_amount":      strconv.FormatInt(MinorUnits(payment.Amount), 10),
		"p24_currency":    strings.ToUpper(payment.Currency),
	}

	var customer domain.CustomerData
	if c.customers != nil {
		var err error
		customer, err = c.customers.Query(ctx, order)
		if err != nil {
			return Registration{}, fmt.Errorf("query customer data for order %s: %w", order.ID, err)
		}
	}

	for key, value := range map[string]string{
		"p24_client":  customer.Client,
		"p24_address": customer.Address,
		"p24_zip":     customer.Zip,
		"p24_city":    customer.City,
		"p24_country": customer.Country,
	} {
		if value != "" {
			params[key] = value
		}
	}

	email := customer.Email
	if email == "" {
		email = c.cfg.DefaultEmail
	}
	if email == "" {
		return Registration{}, &ConfigurationError{
			Reason: "payment requires a customer email; provide it through the customer data provider or P24_DEFAULT_EMAIL",
		}
	}
	params["p24_email"] = email

	if lang, ok := acceptedLanguage(customer.Language); ok {
		params["p24_language"] = lang
	} else if lang, ok := acceptedLanguage(c.cfg.Lang); ok {
		params["p24_language"] = lang
	}

	params["p24_sign"] = Sign(RegisterSignFields, params, c.cfg.CRC)
	params["p24_api_version"] = c.cfg.APIVersion
	params["p24_url_return"] = c.cfg.SiteURL(ReturnPath(paymentID))
	params["p24_url_status"] = c.cfg.SiteURL(StatusPath)

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	log := c.log.With(
		zap.String("payment_id", paymentID),
		zap.String("session_id", params["p24_session_id"]),
	)

	body, err := c.post(ctx, c.cfg.RegisterURL(), form)
	if err != nil {
		log.Error("transaction registration failed", zap.String("url", c.cfg.RegisterURL()), zap.Error(err))
		return Registration{Outcome: RegistrationUnavailable}, nil
	}

	resp := ParseResponse(body)
	if resp.Rejected() {
		log.Warn("transaction registration rejected", zap.String("response", resp.String()))
		if _, err := payment.ChangeStatus(domain.PaymentFailed); err != nil {
			log.Warn("cannot mark payment failed", zap.Error(err))
		}
		return Registration{
			Outcome: RegistrationRejected,
			URL:     c.cfg.SiteURL(FailurePath(paymentID)),
			Method:  http.MethodGet,
		}, nil
	}

	token, ok := resp.Token()
	if !ok {
		log.Error("transaction registration returned no token", zap.String("response", resp.String()))
		return Registration{Outcome: RegistrationUnavailable}, nil
	}

	if _, err := payment.ChangeStatus(domain.PaymentInProgress); err != nil {
		log.Warn("cannot mark payment in progress", zap.Error(err))
	}
	log.Info("transaction registered")

	return Registration{
		Outcome: RegistrationAccepted,
		URL:     c.cfg.RequestURL() + token,
		Method:  http.MethodPost,
		Params:  form,
	}, nil
}

func (c *client) QueryStatus(ctx context.Context, payment *domain.Payment, q StatusQuery) StatusOutcome {
	log := c.log.With(
		zap.String("payment_id", payment.ID.String()),
		zap.String("session_id", q.SessionID),
		zap.String("order_id", q.OrderID),
	)

	minor, err := decimal.NewFromString(q.Amount)
	if err != nil {
		log.Error("notification amount is not a number", zap.String("amount", q.Amount), zap.Error(err))
		return StatusUnavailable
	}

	params := map[string]string{
		"p24_merchant_id": c.cfg.MerchantID,
		"p24_pos_id":      c.posID(),
		"p24_session_id":  q.SessionID,
		"p24_amount":      q.Amount,
		"p24_currency":    q.Currency,
		"p24_order_id":    q.OrderID,
	}
	params["p24_sign"] = Sign(StatusSignFields, params, c.cfg.CRC)

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	body, err := c.post(ctx, c.cfg.VerifyURL(), form)
	if err != nil {
		log.Error("payment status query failed", zap.String("url", c.cfg.VerifyURL()), zap.Error(err))
		return StatusUnavailable
	}

	payment.ExternalID = q.OrderID

	resp := ParseResponse(body)
	if resp.Succeeded() {
		paid := minor.Shift(-2)
		if _, err := payment.RecordPayment(paid, c.now()); err != nil {
			log.Warn("cannot record payment", zap.Error(err))
		}
		log.Info("payment accepted",
			zap.String("amount_paid", paid.String()),
			zap.String("status", string(payment.Status)),
		)
		return StatusConfirmed
	}

	log.Warn("payment rejected", zap.String("response", resp.String()))
	if _, err := payment.ChangeStatus(domain.PaymentFailed); err != nil {
		log.Warn("cannot mark payment failed", zap.Error(err))
	}
	return StatusRejected
}

func (c *client) post(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
}

// MinorUnits converts an amount to the integer the gateway expects,
// truncating anything below the minor unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).IntPart()
}

func acceptedLanguage(lang string) (string, bool) {
	lang = strings.ToLower(lang)
	if lang == "" || !slices.Contains(config.AcceptedLanguages, lang) {
		return "", false
	}
	return lang, true
}

func orderDescription(order domain.Order) string {
	if order.Description != "" {
		return order.Description
	}
	return "Order " + order.ID.String()
}
