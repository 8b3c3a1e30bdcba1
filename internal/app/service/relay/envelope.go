package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatflowers/gachapon/pkg/errs"
	"github.com/fatflowers/gachapon/pkg/types"
)

type Domain string

const (
	DomainPayment Domain = "payment"
	DomainQR      Domain = "qr"
	DomainSystem  Domain = "system"
)

type MessageType string

const (
	TypePing                MessageType = "PING"
	TypePong                MessageType = "PONG"
	TypeError               MessageType = "ERROR"
	TypeQRCodeGenerated     MessageType = "QR_CODE_GENERATED"
	TypeQRCodeScanned       MessageType = "QR_CODE_SCANNED"
	TypeRedirectToPayment   MessageType = "REDIRECT_TO_PAYMENT"
	TypePaymentStatusUpdate MessageType = "PAYMENT_STATUS_UPDATE"
	TypePaymentCompleted    MessageType = "PAYMENT_COMPLETED"
	TypePaymentFailed       MessageType = "PAYMENT_FAILED"
)

// Message is the payload of an envelope. The set of implementations is closed:
// only the types in this file satisfy it.
type Message interface {
	Type() MessageType
	Domain() Domain
	sealed()
}

type Ping struct{}

type Pong struct{}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type QRCodeGenerated struct {
	QRID      string    `json:"qr_id"`
	Code      string    `json:"code"`
	MachineID string    `json:"machine_id"`
	PaymentID string    `json:"payment_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type QRCodeScanned struct {
	QRID                string    `json:"qr_id"`
	MachineID           string    `json:"machine_id"`
	MachineName         string    `json:"machine_name"`
	MachineSerialNumber string    `json:"machine_serial_number"`
	ScannedAt           time.Time `json:"scanned_at"`
}

type RedirectToPayment struct {
	MachineID           string `json:"machine_id"`
	MachineName         string `json:"machine_name"`
	MachineSerialNumber string `json:"machine_serial_number"`
	PricePerDraw        string `json:"price_per_draw"`
	Currency            string `json:"currency"`
	UserID              string `json:"user_id"`
	SessionToken        string `json:"session_token"`
}

type PaymentStatusUpdate struct {
	PaymentID string              `json:"payment_id"`
	Status    types.PaymentStatus `json:"status"`
	Message   string              `json:"message,omitempty"`
}

type PaymentCompleted struct {
	PaymentID     string               `json:"payment_id"`
	MachineID     string               `json:"machine_id"`
	CreditsAdded  int                  `json:"credits_added"`
	EarnedRewards []types.EarnedReward `json:"earned_rewards"`
}

type PaymentFailed struct {
	PaymentID    string `json:"payment_id"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (Ping) Type() MessageType                { return TypePing }
func (Pong) Type() MessageType                { return TypePong }
func (Error) Type() MessageType               { return TypeError }
func (QRCodeGenerated) Type() MessageType     { return TypeQRCodeGenerated }
func (QRCodeScanned) Type() MessageType       { return TypeQRCodeScanned }
func (RedirectToPayment) Type() MessageType   { return TypeRedirectToPayment }
func (PaymentStatusUpdate) Type() MessageType { return TypePaymentStatusUpdate }
func (PaymentCompleted) Type() MessageType    { return TypePaymentCompleted }
func (PaymentFailed) Type() MessageType       { return TypePaymentFailed }

func (Ping) Domain() Domain                { return DomainSystem }
func (Pong) Domain() Domain                { return DomainSystem }
func (Error) Domain() Domain               { return DomainSystem }
func (QRCodeGenerated) Domain() Domain     { return DomainQR }
func (QRCodeScanned) Domain() Domain       { return DomainQR }
func (RedirectToPayment) Domain() Domain   { return DomainQR }
func (PaymentStatusUpdate) Domain() Domain { return DomainPayment }
func (PaymentCompleted) Domain() Domain    { return DomainPayment }
func (PaymentFailed) Domain() Domain       { return DomainPayment }

func (Ping) sealed()                {}
func (Pong) sealed()                {}
func (Error) sealed()               {}
func (QRCodeGenerated) sealed()     {}
func (QRCodeScanned) sealed()       {}
func (RedirectToPayment) sealed()   {}
func (PaymentStatusUpdate) sealed() {}
func (PaymentCompleted) sealed()    {}
func (PaymentFailed) sealed()       {}

// Envelope is one notification. UserID routes it to a single user; an empty
// UserID broadcasts. UserID is not part of the wire shape.
type Envelope struct {
	Data      Message
	Timestamp time.Time
	UserID    string
}

// NewEnvelope wraps msg for userID, stamped at.
func NewEnvelope(msg Message, userID string, at time.Time) Envelope {
	return Envelope{Data: msg, Timestamp: at, UserID: userID}
}

func (e Envelope) Type() MessageType { return e.Data.Type() }
func (e Envelope) Domain() Domain    { return e.Data.Domain() }

// For reports whether the envelope should reach userID.
func (e Envelope) For(userID string) bool {
	return e.UserID == "" || e.UserID == userID
}

type wireEnvelope struct {
	Domain    Domain          `json:"domain"`
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Data == nil {
		return nil, fmt.Errorf("%w: envelope without payload", errs.ErrInvalid)
	}
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{Domain: e.Domain(), Type: e.Type(), Data: data, Timestamp: e.Timestamp})
}

// DecodeEnvelope parses the wire shape. Unknown types and domains that do not
// match the type are rejected.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(b, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: envelope: %v", errs.ErrInvalid, err)
	}
	msg, err := newMessage(w.Type)
	if err != nil {
		return Envelope{}, err
	}
	if len(w.Data) > 0 && string(w.Data) != "null" {
		if err := json.Unmarshal(w.Data, msg); err != nil {
			return Envelope{}, fmt.Errorf("%w: %s payload: %v", errs.ErrInvalid, w.Type, err)
		}
	}
	out := Envelope{Data: deref(msg), Timestamp: w.Timestamp}
	if w.Domain != "" && w.Domain != out.Domain() {
		return Envelope{}, fmt.Errorf("%w: %s does not belong to domain %s", errs.ErrInvalid, w.Type, w.Domain)
	}
	return out, nil
}

func newMessage(t MessageType) (any, error) {
	switch t {
	case TypePing:
		return &Ping{}, nil
	case TypePong:
		return &Pong{}, nil
	case TypeError:
		return &Error{}, nil
	case TypeQRCodeGenerated:
		return &QRCodeGenerated{}, nil
	case TypeQRCodeScanned:
		return &QRCodeScanned{}, nil
	case TypeRedirectToPayment:
		return &RedirectToPayment{}, nil
	case TypePaymentStatusUpdate:
		return &PaymentStatusUpdate{}, nil
	case TypePaymentCompleted:
		return &PaymentCompleted{}, nil
	case TypePaymentFailed:
		return &PaymentFailed{}, nil
	}
	return nil, fmt.Errorf("%w: unknown message type %q", errs.ErrInvalid, t)
}

func deref(v any) Message {
	switch m := v.(type) {
	case *Ping:
		return *m
	case *Pong:
		return *m
	case *Error:
		return *m
	case *QRCodeGenerated:
		return *m
	case *QRCodeScanned:
		return *m
	case *RedirectToPayment:
		return *m
	case *PaymentStatusUpdate:
		return *m
	case *PaymentCompleted:
		return *m
	case *PaymentFailed:
		return *m
	}
	panic(fmt.Sprintf("relay: unhandled message %T", v))
}
