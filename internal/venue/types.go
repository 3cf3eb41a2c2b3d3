package venue

import "fmt"

// Side is the order direction. Exactly two values exist; anything else is
// a caller error, rejected before any network call.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// ParseSide normalizes a caller-supplied side string.
func ParseSide(raw string) (Side, error) {
	switch Side(raw) {
	case SideBuy, "buy":
		return SideBuy, nil
	case SideSell, "sell":
		return SideSell, nil
	default:
		return "", fmt.Errorf("invalid side %q: must be BUY or SELL", raw)
	}
}

// Order status values reported by the venue.
const (
	StatusOpen            = "OPEN"
	StatusFilled          = "FILLED"
	StatusPartiallyFilled = "PARTIALLY_FILLED"
	StatusCancelled       = "CANCELLED"
	StatusRejected        = "REJECTED"
	StatusPendingCancel   = "PENDING_CANCEL"
)

// Account is one venue holding. Balance fields are numeric-as-string and
// default to "0" when the venue omits them.
type Account struct {
	UUID             string         `json:"uuid"`
	Name             string         `json:"name"`
	Currency         string         `json:"currency"`
	AvailableBalance map[string]any `json:"available_balance"`
	Default          bool           `json:"default"`
	Active           bool           `json:"active"`
	CreatedAt        string         `json:"created_at"`
	UpdatedAt        string         `json:"updated_at"`
}

// Product is one tradable pair. Venues omit numeric fields for inactive
// instruments, so those default to "0" rather than failing the parse.
type Product struct {
	ID                        string `json:"id"`
	BaseCurrency              string `json:"base_currency"`
	QuoteCurrency             string `json:"quote_currency"`
	BaseDisplaySymbol         string `json:"base_display_symbol"`
	QuoteDisplaySymbol        string `json:"quote_display_symbol"`
	BaseIncrement             string `json:"base_increment"`
	QuoteIncrement            string `json:"quote_increment"`
	DisplayName               string `json:"display_name"`
	Status                    string `json:"status"`
	Price                     string `json:"price"`
	PricePercentageChange24h  string `json:"price_percentage_change_24h"`
	Volume24h                 string `json:"volume_24h"`
	VolumePercentageChange24h string `json:"volume_percentage_change_24h"`
	BaseMaxSize               string `json:"base_max_size"`
	BaseMinSize               string `json:"base_min_size"`
	QuoteMaxSize              string `json:"quote_max_size"`
	QuoteMinSize              string `json:"quote_min_size"`
}

func (p *Product) normalize() {
	defaultZero(&p.Price)
	defaultZero(&p.PricePercentageChange24h)
	defaultZero(&p.Volume24h)
	defaultZero(&p.VolumePercentageChange24h)
	defaultZero(&p.BaseMaxSize)
	defaultZero(&p.BaseMinSize)
	defaultZero(&p.QuoteMaxSize)
	defaultZero(&p.QuoteMinSize)
}

// Ticker is the current top-of-book snapshot for one product.
type Ticker struct {
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Time      string `json:"time"`
	TradeID   string `json:"trade_id"`
	Ask       string `json:"ask"`
	Bid       string `json:"bid"`
	Volume    string `json:"volume"`
}

func (t *Ticker) normalize() {
	defaultZero(&t.Price)
	defaultZero(&t.Ask)
	defaultZero(&t.Bid)
	defaultZero(&t.Volume)
}

// Order is the venue's view of a submitted order. Reads never mutate a
// locally cached copy; every poll re-parses the venue response.
type Order struct {
	OrderID            string         `json:"order_id"`
	ClientOrderID      string         `json:"client_order_id"`
	ProductID          string         `json:"product_id"`
	UserID             string         `json:"user_id"`
	OrderConfiguration map[string]any `json:"order_configuration"`
	Side               string         `json:"side"`
	TimeInForce        string         `json:"time_in_force"`
	PostOnly           bool           `json:"post_only"`
	CreationTime       string         `json:"creation_time"`
	CompletionTime     string         `json:"completion_time,omitempty"`
	OrderType          string         `json:"order_type"`
	FilledSize         string         `json:"filled_size"`
	AverageFilledPrice string         `json:"average_filled_price"`
	Fee                string         `json:"fee"`
	NumberOfFills      int            `json:"number_of_fills"`
	FilledValue        string         `json:"filled_value"`
	PendingCancelReason string        `json:"pending_cancel_reason,omitempty"`
	RejectReason       string         `json:"reject_reason,omitempty"`
	Settled            bool           `json:"settled"`
	Status             string         `json:"status"`
}

func (o *Order) normalize() {
	defaultZero(&o.FilledSize)
	defaultZero(&o.AverageFilledPrice)
	defaultZero(&o.Fee)
	defaultZero(&o.FilledValue)
}

// Fill is one execution record from the venue's history endpoint.
type Fill struct {
	EntryID   string `json:"entry_id"`
	TradeID   string `json:"trade_id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
	Fee       string `json:"commission"`
	TradeTime string `json:"trade_time"`
}

func defaultZero(field *string) {
	if *field == "" {
		*field = "0"
	}
}
