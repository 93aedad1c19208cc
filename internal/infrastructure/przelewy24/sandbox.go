package przelewy24

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SandboxOutcome is what happened when a buyer reached the hosted payment page.
type SandboxOutcome string

const (
	SandboxPaid     SandboxOutcome = "PAID"
	SandboxDeclined SandboxOutcome = "DECLINED"
	// SandboxLagged: the money moved but the notification arrives late.
	SandboxLagged SandboxOutcome = "LAGGED"
)

var ErrUnknownToken = errors.New("unknown sandbox token")

type sandboxTxn struct {
	token     string
	sessionID string
	amount    string
	currency  string
	orderID   string
	statusURL string
	returnURL string
	paid      bool
}

// Sandbox is an in-process stand-in for the Przelewy24 endpoints. It checks
// signatures the way the real gateway does and posts signed notifications back
// to the registered p24_url_status.
type Sandbox struct {
	mu       sync.RWMutex
	crc      string
	byToken  map[string]*sandboxTxn
	bySessID map[string]*sandboxTxn
	nextID   int64

	// Chance returns 0..99 and decides the buyer outcome.
	Chance   func() int
	LagDelay time.Duration

	http *http.Client
	log  *zap.Logger
	wg   sync.WaitGroup
}

func NewSandbox(crc string, log *zap.Logger) *Sandbox {
	return &Sandbox{
		crc:      crc,
		byToken:  make(map[string]*sandboxTxn),
		bySessID: make(map[string]*sandboxTxn),
		nextID:   100000,
		Chance:   func() int { return rand.IntN(100) },
		LagDelay: 2 * time.Second,
		http:     &http.Client{Timeout: 5 * time.Second},
		log:      log.Named("p24-sandbox"),
	}
}

func (s *Sandbox) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /trnRegister", s.handleRegister)
	mux.HandleFunc("/trnRequest/{token}", s.handleRequest)
	mux.HandleFunc("POST /trnVerify", s.handleVerify)
	return mux
}

// Wait blocks until every pending notification has been delivered.
func (s *Sandbox) Wait() {
	s.wg.Wait()
}

func (s *Sandbox) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeForm(w, url.Values{"error": {"1"}, "errorMessage": {"bad form"}})
		return
	}
	values := formValues(r.PostForm)
	if !Verify(RegisterSignFields, values, s.crc, values["p24_sign"]) {
		writeForm(w, url.Values{"error": {"1"}, "errorMessage": {"p24_sign"}})
		return
	}
	if values["p24_email"] == "" {
		writeForm(w, url.Values{"error": {"1"}, "errorMessage": {"p24_email"}})
		return
	}

	txn := &sandboxTxn{
		token:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		sessionID: values["p24_session_id"],
		amount:    values["p24_amount"],
		currency:  values["p24_currency"],
		statusURL: values["p24_url_status"],
		returnURL: values["p24_url_return"],
	}

	s.mu.Lock()
	s.byToken[txn.token] = txn
	s.bySessID[txn.sessionID] = txn
	s.mu.Unlock()

	writeForm(w, url.Values{"error": {"0"}, "token": {txn.token}})
}

func (s *Sandbox) handleRequest(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	outcome, err := s.Pay(r.Context(), token)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	s.mu.RLock()
	returnURL := s.byToken[token].returnURL
	s.mu.RUnlock()

	s.log.Debug("buyer finished on hosted page", zap.String("token", token), zap.String("outcome", string(outcome)))
	http.Redirect(w, r, returnURL, http.StatusFound)
}

// Pay plays the buyer on the hosted page for the transaction behind token.
func (s *Sandbox) Pay(ctx context.Context, token string) (SandboxOutcome, error) {
	s.mu.Lock()
	txn, ok := s.byToken[token]
	if !ok {
		s.mu.Unlock()
		return "", ErrUnknownToken
	}
	if txn.paid {
		s.mu.Unlock()
		return SandboxPaid, nil
	}

	chance := s.Chance()
	var outcome SandboxOutcome
	switch {
	case chance < 70:
		outcome = SandboxPaid
	case chance < 90:
		outcome = SandboxDeclined
	default:
		outcome = SandboxLagged
	}

	if outcome == SandboxDeclined {
		s.mu.Unlock()
		return outcome, nil
	}

	txn.paid = true
	s.nextID++
	txn.orderID = strconv.FormatInt(s.nextID, 10)
	note := url.Values{
		"p24_session_id": {txn.sessionID},
		"p24_order_id":   {txn.orderID},
		"p24_amount":     {txn.amount},
		"p24_currency":   {txn.currency},
	}
	statusURL := txn.statusURL
	s.mu.Unlock()

	note.Set("p24_sign", Sign(StatusSignFields, formValues(note), s.crc))

	delay := time.Duration(0)
	if outcome == SandboxLagged {
		delay = s.LagDelay
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		time.Sleep(delay)
		s.notify(statusURL, note)
	}()

	return outcome, nil
}

func (s *Sandbox) notify(statusURL string, note url.Values) {
	resp, err := s.http.PostForm(statusURL, note)
	if err != nil {
		s.log.Warn("notification delivery failed", zap.String("url", statusURL), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	s.log.Debug("notification delivered",
		zap.String("session_id", note.Get("p24_session_id")),
		zap.Int("status", resp.StatusCode),
	)
}

func (s *Sandbox) handleVerify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeForm(w, url.Values{"error": {"1"}, "errorMessage": {"bad form"}})
		return
	}
	values := formValues(r.PostForm)
	if !Verify(StatusSignFields, values, s.crc, values["p24_sign"]) {
		writeForm(w, url.Values{"error": {"1"}, "errorMessage": {"p24_sign"}})
		return
	}

	s.mu.RLock()
	txn, ok := s.bySessID[values["p24_session_id"]]
	var valid bool
	if ok {
		valid = txn.paid &&
			txn.orderID == values["p24_order_id"] &&
			txn.amount == values["p24_amount"] &&
			txn.currency == values["p24_currency"]
	}
	s.mu.RUnlock()

	if !valid {
		writeForm(w, url.Values{"error": {"1"}, "errorMessage": {"transaction"}})
		return
	}
	writeForm(w, url.Values{"error": {"0"}})
}

func formValues(form url.Values) map[string]string {
	values := make(map[string]string, len(form))
	for k := range form {
		values[k] = form.Get(k)
	}
	return values
}

func writeForm(w http.ResponseWriter, v url.Values) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(v.Encode()))
}
