package gateway

// UpstreamStatus is the supplier's order status vocabulary, reported both in
// webhooks and by the order-info endpoint. Values are case-sensitive.
type UpstreamStatus string

const (
	StatusCompleted      UpstreamStatus = "Completed"
	StatusPending        UpstreamStatus = "Pending"
	StatusQueued         UpstreamStatus = "Queued"
	StatusQueuedDeferred UpstreamStatus = "Queued_Deferred"
	StatusProcessing     UpstreamStatus = "Processing"
	StatusError          UpstreamStatus = "Error"
	StatusCancelled      UpstreamStatus = "Cancelled"
)

// Order type tags on the supplier side.
const (
	TypeGamepass  = "gamepass_order"
	TypeVipServer = "vip_server"
)

// OrderError is the structured failure reason attached to a failed order.
type OrderError struct {
	Reason  string  `json:"reason"`
	Message *string `json:"message"`
}

// CreateOrderRequest is the body for both order-creation endpoints.
// VIP server orders ignore CheckOwnership.
type CreateOrderRequest struct {
	OrderID        string `json:"orderId"`
	Username       string `json:"robloxUsername"`
	Amount         int64  `json:"robuxAmount"`
	PlaceID        int64  `json:"placeId"`
	IsPreOrder     bool   `json:"isPreOrder,omitempty"`
	CheckOwnership bool   `json:"checkOwnership,omitempty"`
}

// CreateOrderData is the payload of a successful order creation.
type CreateOrderData struct {
	OrderID    string         `json:"orderId"`
	Username   string         `json:"robloxUsername"`
	UserID     int64          `json:"robloxUserId"`
	Amount     int64          `json:"robuxAmount"`
	Status     UpstreamStatus `json:"status"`
	UniverseID int64          `json:"universeId"`
	PlaceID    int64          `json:"placeId"`
}

type createOrderResponse struct {
	Success bool            `json:"success"`
	Data    CreateOrderData `json:"data"`
}

// OrderInfo is the supplier's view of an order, returned by the info and
// cancel endpoints.
type OrderInfo struct {
	Type     string         `json:"type"`
	UUID     string         `json:"uuid"`
	Price    float64        `json:"price"`
	VendorID string         `json:"vendorId"`
	Amount   int64          `json:"robuxAmount"`
	Status   UpstreamStatus `json:"status"`
	UserID   int64          `json:"robloxUserId"`
	Username string         `json:"robloxUsername"`
	Error    *OrderError    `json:"error,omitempty"`
}

// StockSummary is the coarse availability report.
type StockSummary struct {
	Available    int64 `json:"robuxAvailable"`
	MaxAvailable int64 `json:"maxRobuxAvailable"`
}

// StockOffer is one supplier inventory bucket from the detailed report.
// Rate may be quoted per unit or per 1000 units depending on the bucket.
type StockOffer struct {
	Rate          float64 `json:"rate"`
	AccountsCount int     `json:"accountsCount"`
	MaxInstant    int64   `json:"maxInstantOrder"`
	TotalAmount   int64   `json:"totalRobuxAmount"`
}

// Balance is our account balance at the supplier.
type Balance struct {
	Balance float64 `json:"balance"`
}

// Webhook is the supplier callback body. Sign is the detached signature over
// the rest of the payload.
type Webhook struct {
	Type          string         `json:"type"`
	UUID          string         `json:"uuid"`
	OrderID       string         `json:"orderId"`
	Price         float64        `json:"price"`
	Rate          float64        `json:"rate"`
	VendorID      string         `json:"vendorId"`
	Amount        int64          `json:"robuxAmount"`
	Status        UpstreamStatus `json:"status"`
	UserID        int64          `json:"robloxUserId"`
	Username      string         `json:"robloxUsername"`
	BuyerID       *int64         `json:"buyerRobloxId"`
	BuyerUsername *string        `json:"buyerRobloxUsername"`
	Error         *OrderError    `json:"error"`
	Sign          string         `json:"sign"`
}
